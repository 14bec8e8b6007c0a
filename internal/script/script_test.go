package script

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseInputAndGroup(t *testing.T) {
	s, err := Parse(`
		GROUP ( libc.a AS_NEEDED ( libgcc.a ) libm.a )
		OUTPUT(a.out)
		SEARCH_DIR("/usr/lib")
		ENTRY(_start)
	`)
	require.NoError(t, err)
	require.Equal(t, "a.out", s.Output)
	require.Equal(t, []string{"/usr/lib"}, s.SearchDirs)
	require.Equal(t, "_start", s.Entry)

	require.Len(t, s.Inputs, 3)
	require.Equal(t, "libc.a", s.Inputs[0].Name)
	require.False(t, s.Inputs[0].AsNeeded)
	require.Equal(t, "libgcc.a", s.Inputs[1].Name)
	require.True(t, s.Inputs[1].AsNeeded)
	require.Equal(t, "libm.a", s.Inputs[2].Name)
}

func TestParseAssertAndProvide(t *testing.T) {
	s, err := Parse(`
		ASSERT(DEFINED(foo), "foo must be defined");
		PROVIDE(bar = .);
		PROVIDE_HIDDEN(baz = ORIGIN(ram) + 4);
	`)
	require.NoError(t, err)
	require.Len(t, s.Asserts, 1)
	require.Equal(t, "foo must be defined", s.Asserts[0].Message)

	require.Len(t, s.Provides, 2)
	require.Equal(t, "bar", s.Provides[0].Name)
	require.False(t, s.Provides[0].Hidden)
	require.Equal(t, "baz", s.Provides[1].Name)
	require.True(t, s.Provides[1].Hidden)
}

func TestParseVersionScript(t *testing.T) {
	s, err := Parse(`
		VERS_1.0 {
			global:
				foo_*;
				bar;
			local:
				*;
		};
	`)
	require.NoError(t, err)
	require.Len(t, s.Versions, 1)
	node := s.Versions[0]
	require.Equal(t, "VERS_1.0", node.Name)

	var globals, locals []string
	for _, p := range node.Patterns {
		if p.Local {
			locals = append(locals, p.Pattern)
		} else {
			globals = append(globals, p.Pattern)
		}
	}
	require.ElementsMatch(t, []string{"foo_*", "bar"}, globals)
	require.ElementsMatch(t, []string{"*"}, locals)
}

func TestParseAnonymousVersionScript(t *testing.T) {
	s, err := Parse(`
		{
			global: *;
		};
	`)
	require.NoError(t, err)
	require.Len(t, s.Versions, 1)
	require.Equal(t, "", s.Versions[0].Name)
	require.Len(t, s.Versions[0].Patterns, 1)
	require.Equal(t, "*", s.Versions[0].Patterns[0].Pattern)
}

func TestParseSections(t *testing.T) {
	s, err := Parse(`
		SECTIONS {
			.text : { *(.text .text.*) }
			.data : { *(.data) }
		}
	`)
	require.NoError(t, err)
	require.Len(t, s.OutputSecs, 2)
	require.Equal(t, ".text", s.OutputSecs[0].Name)
	require.Equal(t, ".data", s.OutputSecs[1].Name)
}

func TestParseMemoryAndPhdrs(t *testing.T) {
	s, err := Parse(`
		MEMORY {
			ram (rwx) : ORIGIN = 0x10000, LENGTH = 0x1000
		}
		PHDRS {
			text PT_LOAD FLAGS(5);
		}
	`)
	require.NoError(t, err)
	require.Len(t, s.Memory, 1)
	require.Equal(t, "ram", s.Memory[0].Name)
	require.Equal(t, "rwx", s.Memory[0].Attr)

	require.Len(t, s.Phdrs, 1)
	require.Equal(t, "text", s.Phdrs[0].Name)
	require.Equal(t, "PT_LOAD", s.Phdrs[0].Type)
	require.Equal(t, "5", s.Phdrs[0].Flags)
}
