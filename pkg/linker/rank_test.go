package linker

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

func rankSym(bind uint8, shndx uint16) *Sym {
	s := &Sym{Info: bind << 4}
	s.Shndx = shndx
	return s
}

// TestGetRankOrdering pins the precedence GetRank encodes for the resolver's
// "lower rank wins" comparison (spec.md §8's multiple-definition and
// common-symbol scenarios): a strong definition beats a weak one, any
// definition beats a lazy (unloaded-archive) reference, and common symbols
// are weaker than either.
func TestGetRankOrdering(t *testing.T) {
	strongDefined := GetRank(&ObjectFile{}, rankSym(uint8(elf.STB_GLOBAL), 1), false)
	weakDefined := GetRank(&ObjectFile{}, rankSym(uint8(elf.STB_WEAK), 1), false)
	strongLazy := GetRank(&ObjectFile{}, rankSym(uint8(elf.STB_GLOBAL), 1), true)
	weakLazy := GetRank(&ObjectFile{}, rankSym(uint8(elf.STB_WEAK), 1), true)
	commonDefined := GetRank(&ObjectFile{}, rankSym(uint8(elf.STB_GLOBAL), uint16(elf.SHN_COMMON)), false)
	commonLazy := GetRank(&ObjectFile{}, rankSym(uint8(elf.STB_GLOBAL), uint16(elf.SHN_COMMON)), true)

	require.Less(t, strongDefined, weakDefined)
	require.Less(t, weakDefined, strongLazy)
	require.Less(t, strongLazy, weakLazy)
	require.Less(t, weakLazy, commonDefined)
	require.Less(t, commonDefined, commonLazy)
}

func TestGetRankBreaksTiesByFilePriority(t *testing.T) {
	first := &ObjectFile{}
	first.Priority = 10
	second := &ObjectFile{}
	second.Priority = 20

	r1 := GetRank(first, rankSym(uint8(elf.STB_GLOBAL), 1), false)
	r2 := GetRank(second, rankSym(uint8(elf.STB_GLOBAL), 1), false)

	require.Less(t, r1, r2, "an earlier command-line position (lower Priority) must win a same-strength tie")
}
