package linker

import "debug/elf"

// GcSections implements --gc-sections. Input sections default to IsAlive
// (set in NewInputSection), so most of the pipeline never has to think
// about liveness; gc-sections is the one pass that revisits that default,
// demoting every section to dead unless it is a root or is transitively
// reachable from one through a relocation.
func GcSections(ctx *Context) {
	if !ctx.Arg.GcSections {
		return
	}

	isRoot := func(isec *InputSection) bool {
		shdr := isec.Shdr()
		if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 {
			return false
		}
		switch shdr.Type {
		case uint32(elf.SHT_INIT_ARRAY), uint32(elf.SHT_FINI_ARRAY), uint32(elf.SHT_PREINIT_ARRAY):
			return true
		case uint32(elf.SHT_NOTE):
			return true
		}
		if shdr.Flags&uint64(elf.SHF_TLS) != 0 {
			return true
		}
		return false
	}

	var all []*InputSection
	for _, file := range ctx.Objs {
		for _, isec := range file.Sections {
			if isec != nil {
				all = append(all, isec)
				isec.IsAlive = false
			}
		}
	}

	var worklist []*InputSection
	keep := func(isec *InputSection) {
		if !isec.IsAlive {
			isec.IsAlive = true
			worklist = append(worklist, isec)
		}
	}

	for _, isec := range all {
		if isRoot(isec) {
			keep(isec)
		}
	}
	for _, file := range ctx.Objs {
		for _, sym := range file.Symbols {
			if sym.File != file {
				continue
			}
			if (sym.IsExported || sym.Name == ctx.Arg.Entry) && sym.InputSection != nil {
				keep(sym.InputSection)
			}
		}
	}

	for len(worklist) > 0 {
		isec := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]

		for _, rel := range isec.GetRels() {
			if rel.Type == 0 {
				continue
			}
			sym := isec.File.Symbols[rel.Sym]
			if sym == nil || sym.InputSection == nil {
				continue
			}
			keep(sym.InputSection)
		}
	}
}
