package linker

import (
	"debug/elf"
	"os"
	"path"

	"github.com/emberlink/eld/internal/script"
	"github.com/emberlink/eld/pkg/utils"
)

// LoadVersionScript reads ctx.Arg.VersionScript (if set) and flattens its
// global/local pattern lists into ctx.VersionPatterns, recording with each
// pattern the name of the version node it came from; no version index is
// assigned. Symbol/version-index binding for `.gnu.version` is out of scope
// here (spec.md's dynamic-linking non-goals exclude runtime loading);
// what this drives is purely link-time visibility: which symbols get
// STV_HIDDEN and therefore never enter .dynsym as exported.
func LoadVersionScript(ctx *Context) {
	if ctx.Arg.VersionScript == "" {
		return
	}

	data, err := os.ReadFile(ctx.Arg.VersionScript)
	if err != nil {
		utils.Fatal("version script: " + err.Error())
	}

	s, err := script.Parse(string(data))
	if err != nil {
		utils.Fatal("version script: " + err.Error())
	}

	for _, node := range s.Versions {
		name := node.Name
		for _, pat := range node.Patterns {
			ctx.VersionPatterns = append(ctx.VersionPatterns, versionPattern{
				Pattern: pat.Pattern,
				Version: name,
				Local:   pat.Local,
			})
		}
	}
}

// ApplyVersionScript walks every resolved global symbol and, for the
// first pattern that matches its name (most-specific literal match
// first, then globs in file order — the same precedence GNU ld
// documents), sets its visibility to hidden when the pattern was under
// `local:`, keeping it out of the dynamic symbol table entirely.
func ApplyVersionScript(ctx *Context) {
	if len(ctx.VersionPatterns) == 0 {
		return
	}

	match := func(name string) (versionPattern, bool) {
		for _, vp := range ctx.VersionPatterns {
			if vp.Pattern == name {
				return vp, true
			}
		}
		for _, vp := range ctx.VersionPatterns {
			if ok, _ := path.Match(vp.Pattern, name); ok {
				return vp, true
			}
		}
		return versionPattern{}, false
	}

	for _, file := range ctx.Objs {
		for _, sym := range file.Symbols {
			if sym.File != file || sym.Name == "" {
				continue
			}
			vp, ok := match(sym.Name)
			if !ok {
				continue
			}
			if vp.Local {
				sym.Visibility = uint8(elf.STV_HIDDEN)
			}
		}
	}
}
