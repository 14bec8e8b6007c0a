package linker

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyVersionScriptHidesLocalMatches(t *testing.T) {
	ctx := NewContext()
	obj := &ObjectFile{}

	exported := NewSymbol("foo_public")
	exported.File = obj
	hidden := NewSymbol("internal_helper")
	hidden.File = obj
	untouched := NewSymbol("bar")
	untouched.File = obj

	obj.Symbols = []*Symbol{exported, hidden, untouched}
	ctx.Objs = []*ObjectFile{obj}

	ctx.VersionPatterns = []versionPattern{
		{Pattern: "foo_*", Local: false},
		{Pattern: "*", Local: true},
	}

	ApplyVersionScript(ctx)

	require.Equal(t, uint8(elf.STV_DEFAULT), exported.Visibility, "matched by the global foo_* pattern first")
	require.Equal(t, uint8(elf.STV_HIDDEN), hidden.Visibility, "falls through to the local wildcard")
	require.Equal(t, uint8(elf.STV_HIDDEN), untouched.Visibility)
}

func TestApplyVersionScriptLiteralBeatsGlob(t *testing.T) {
	ctx := NewContext()
	obj := &ObjectFile{}

	sym := NewSymbol("keep_me")
	sym.File = obj
	obj.Symbols = []*Symbol{sym}
	ctx.Objs = []*ObjectFile{obj}

	// A literal global match must win even though a broader local glob
	// would also match the same name.
	ctx.VersionPatterns = []versionPattern{
		{Pattern: "*", Local: true},
		{Pattern: "keep_me", Local: false},
	}

	ApplyVersionScript(ctx)

	require.Equal(t, uint8(elf.STV_DEFAULT), sym.Visibility)
}

func TestApplyVersionScriptNoopWithoutPatterns(t *testing.T) {
	ctx := NewContext()
	obj := &ObjectFile{}
	sym := NewSymbol("anything")
	sym.File = obj
	obj.Symbols = []*Symbol{sym}
	ctx.Objs = []*ObjectFile{obj}

	ApplyVersionScript(ctx)

	require.Equal(t, uint8(elf.STV_DEFAULT), sym.Visibility)
}
