package linker

// Thunk is a range-extension trampoline inserted between an output section
// and a call site whose target falls outside the ISA's direct branch
// range. Neither x86-64 nor riscv64 need one at the sizes this linker
// targets (both report Target.NeedsThunks() == false), but the type is
// kept so a future narrow-branch target (arm, the spec's scenario 3) only
// has to implement the Target methods, not a new pipeline stage.
type Thunk struct {
	OutputSection *OutputSection
	Offset        uint64
	Syms          []*Symbol
}

// CreateThunks scans every alive input section's relocations for branches
// to out-of-range targets and, when ctx.Target.NeedsThunks is true,
// records one Thunk per output section holding such branches in
// ctx.Thunks. It is a no-op for both implemented targets.
func CreateThunks(ctx *Context) {
	if !ctx.Target.NeedsThunks() {
		return
	}

	for _, osec := range ctx.OutputSections {
		var pending []*Symbol
		for _, isec := range osec.Members {
			for _, rel := range isec.GetRels() {
				sym := isec.File.Symbols[rel.Sym]
				if sym.File == nil {
					continue
				}
				if !ctx.Target.InRange(isec.GetAddr()+rel.Offset, sym.GetAddr(ctx)) {
					pending = append(pending, sym)
				}
			}
		}
		if len(pending) > 0 {
			ctx.Thunks = append(ctx.Thunks, &Thunk{OutputSection: osec, Syms: pending})
		}
	}
}

func (t *Thunk) Size(ctx *Context) int64 {
	return int64(len(t.Syms)) * ctx.Target.ThunkSize()
}

func (t *Thunk) CopyBuf(ctx *Context, buf []byte) {
	for i, sym := range t.Syms {
		off := int64(i) * ctx.Target.ThunkSize()
		ctx.Target.WriteThunk(buf[off:], t.OutputSection.Shdr.Addr+uint64(off), sym.GetAddr(ctx))
	}
}
