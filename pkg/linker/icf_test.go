package linker

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

func textShdr() Shdr {
	return Shdr{
		Type:  uint32(elf.SHT_PROGBITS),
		Flags: uint64(elf.SHF_ALLOC) | uint64(elf.SHF_EXECINSTR),
	}
}

func TestIcfNoneModeSkipsFolding(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.ICFMode = ICFNone

	obj := &ObjectFile{}
	obj.ElfSections = []Shdr{textShdr(), textShdr()}
	a := &InputSection{File: obj, Shndx: 0, IsAlive: true, Contents: []byte{0x90, 0xc3}, Rels: []Rela{}}
	b := &InputSection{File: obj, Shndx: 1, IsAlive: true, Contents: []byte{0x90, 0xc3}, Rels: []Rela{}}
	obj.Sections = []*InputSection{a, b}
	ctx.Objs = []*ObjectFile{obj}

	Icf(ctx)

	require.True(t, a.IsAlive)
	require.True(t, b.IsAlive, "ICFNone must never fold, even identical sections")
}

func TestIcfFoldsIdenticalSections(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.ICFMode = ICFAll

	obj := &ObjectFile{}
	obj.ElfSections = []Shdr{textShdr(), textShdr(), textShdr()}
	leader := &InputSection{File: obj, Shndx: 0, IsAlive: true, Contents: []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}, Rels: []Rela{}}
	dup := &InputSection{File: obj, Shndx: 1, IsAlive: true, Contents: []byte{0x55, 0x48, 0x89, 0xe5, 0xc3}, Rels: []Rela{}}
	distinct := &InputSection{File: obj, Shndx: 2, IsAlive: true, Contents: []byte{0x90, 0x90, 0x90, 0x90, 0xc3}, Rels: []Rela{}}
	obj.Sections = []*InputSection{leader, dup, distinct}

	dupUser := NewSymbol("dup_user")
	dupUser.File = obj
	dupUser.InputSection = dup
	obj.Symbols = []*Symbol{dupUser}

	ctx.Objs = []*ObjectFile{obj}

	Icf(ctx)

	require.True(t, leader.IsAlive)
	require.False(t, dup.IsAlive, "byte-identical section with no relocations must fold away")
	require.True(t, distinct.IsAlive, "distinct contents must never fold")
	require.Same(t, leader, dupUser.InputSection, "symbols pointing at the folded duplicate must be redirected")
}

func TestIcfSafeModeExcludesAddressTakenSections(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.ICFMode = ICFSafe

	obj := &ObjectFile{}
	obj.ElfSections = []Shdr{textShdr(), textShdr()}
	a := &InputSection{File: obj, Shndx: 0, IsAlive: true, Contents: []byte{0x01, 0x02}, Rels: []Rela{}}
	b := &InputSection{File: obj, Shndx: 1, IsAlive: true, Contents: []byte{0x01, 0x02}, Rels: []Rela{}}
	obj.Sections = []*InputSection{a, b}

	exported := NewSymbol("public_fn")
	exported.File = obj
	exported.InputSection = a
	exported.IsExported = true
	obj.Symbols = []*Symbol{exported}

	ctx.Objs = []*ObjectFile{obj}

	Icf(ctx)

	require.True(t, a.IsAlive, "address-taken section is excluded from safe-mode folding candidates")
	require.True(t, b.IsAlive, "with its only possible partner excluded, b has nothing to fold into")
}
