package linker

import "fmt"

// CheckMultipleDefinitions implements spec.md §4.4 rule 2: when two live
// object files each provide a strong (non-weak, non-common) definition of
// the same global symbol, GetRank's file-priority tie-break still quietly
// picks one of them as the winner so layout can proceed deterministically,
// but that silent pick is exactly the case the resolver is required to
// reject. This pass runs after ResolveSymbols/MarkLiveObjects have settled
// which object files actually survived archive extraction, so it only
// ever sees the files that really end up in the link.
func CheckMultipleDefinitions(ctx *Context) {
	type definer struct {
		file *ObjectFile
		esym *Sym
	}

	definers := make(map[string][]definer)

	for _, file := range ctx.Objs {
		if !file.IsAlive || file == ctx.InternalObj {
			continue
		}
		for i := file.FirstGlobal; i < int64(len(file.ElfSyms)); i++ {
			esym := &file.ElfSyms[i]
			if esym.IsUndef() || esym.IsCommon() || esym.IsWeak() {
				continue
			}
			name := file.Symbols[i].Name
			if name == "" {
				continue
			}
			definers[name] = append(definers[name], definer{file, esym})
		}
	}

	for name, ds := range definers {
		if len(ds) < 2 {
			continue
		}

		msg := fmt.Sprintf("multiple definition of %q: %s and %s",
			name, ds[0].file.File.Name, ds[1].file.File.Name)

		if ctx.Arg.AllowMultipleDefinition {
			ctx.Diag.Warn(ds[0].file.File.Name, name, 0, "%s", msg)
			continue
		}
		ctx.Diag.Error(ds[0].file.File.Name, name, 0, "%s", msg)
	}

	ctx.Diag.CheckBarrier("symbol resolution")
}
