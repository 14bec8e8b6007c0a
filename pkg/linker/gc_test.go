package linker

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildGcFixture wires three sections into one synthetic object file:
// secA is a GC root (SHT_NOTE), secA relocates into secB, and secC is
// unreferenced. It mirrors the shape GcSections is expected to sweep.
func buildGcFixture() (*ObjectFile, *InputSection, *InputSection, *InputSection) {
	obj := &ObjectFile{}
	obj.ElfSections = []Shdr{
		{Type: uint32(elf.SHT_NOTE), Flags: uint64(elf.SHF_ALLOC)},
		{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC)},
		{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC)},
	}

	symB := NewSymbol("b_target")
	symB.File = obj

	secA := &InputSection{File: obj, Shndx: 0, Rels: []Rela{{Sym: 0, Type: 1}}}
	secB := &InputSection{File: obj, Shndx: 1, Rels: []Rela{}}
	secC := &InputSection{File: obj, Shndx: 2, Rels: []Rela{}}
	symB.InputSection = secB

	obj.Sections = []*InputSection{secA, secB, secC}
	obj.Symbols = []*Symbol{symB}

	return obj, secA, secB, secC
}

func TestGcSectionsDisabledKeepsEverythingUntouched(t *testing.T) {
	ctx := NewContext()
	obj, secA, secB, secC := buildGcFixture()
	secA.IsAlive, secB.IsAlive, secC.IsAlive = true, true, true
	ctx.Objs = []*ObjectFile{obj}

	GcSections(ctx)

	require.True(t, secA.IsAlive)
	require.True(t, secB.IsAlive)
	require.True(t, secC.IsAlive)
}

func TestGcSectionsSweepsUnreachableSections(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.GcSections = true
	obj, secA, secB, secC := buildGcFixture()
	ctx.Objs = []*ObjectFile{obj}

	GcSections(ctx)

	require.True(t, secA.IsAlive, "SHT_NOTE is a root")
	require.True(t, secB.IsAlive, "reachable from secA's relocation")
	require.False(t, secC.IsAlive, "never a root and never referenced")
}

func TestGcSectionsKeepsExportedSymbolTargets(t *testing.T) {
	ctx := NewContext()
	ctx.Arg.GcSections = true
	obj := &ObjectFile{}
	obj.ElfSections = []Shdr{
		{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC)},
		{Type: uint32(elf.SHT_PROGBITS), Flags: uint64(elf.SHF_ALLOC)},
	}
	exported := &InputSection{File: obj, Shndx: 0, Rels: []Rela{}}
	unreferenced := &InputSection{File: obj, Shndx: 1, Rels: []Rela{}}
	obj.Sections = []*InputSection{exported, unreferenced}

	sym := NewSymbol("public_api")
	sym.File = obj
	sym.IsExported = true
	sym.InputSection = exported
	obj.Symbols = []*Symbol{sym}

	ctx.Objs = []*ObjectFile{obj}
	GcSections(ctx)

	require.True(t, exported.IsAlive)
	require.False(t, unreferenced.IsAlive)
}
