package linker

import "debug/elf"

// PltSection is .plt: one lazy-binding stub per imported function symbol
// that code calls through the PLT rather than directly, plus a shared
// PLT[0] header that jumps into the dynamic loader's resolver.
type PltSection struct {
	Chunk
	Syms []*Symbol
}

func NewPltSection() *PltSection {
	p := &PltSection{Chunk: NewChunk()}
	p.Name = ".plt"
	p.Shdr.Type = uint32(elf.SHT_PROGBITS)
	p.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_EXECINSTR)
	p.Shdr.AddrAlign = 16
	return p
}

func (p *PltSection) AddSymbol(ctx *Context, sym *Symbol) {
	if sym.GetPltIdx(ctx) != -1 {
		return
	}
	idx := int32(len(p.Syms))
	sym.SetPltIdx(ctx, idx)
	p.Syms = append(p.Syms, sym)

	if ctx.GotPlt != nil {
		ctx.GotPlt.AddSymbol(ctx, sym)
	}
	if ctx.RelaPlt != nil {
		ctx.RelaPlt.AddSymbol(ctx, sym)
	}
	if ctx.Dynsym != nil {
		ctx.Dynsym.AddSymbol(ctx, sym)
	}
}

func (p *PltSection) UpdateShdr(ctx *Context) {
	p.Shdr.Size = ctx.Target.PltHeaderSize() + uint64(len(p.Syms))*ctx.Target.PltEntrySize()
}

func (p *PltSection) CopyBuf(ctx *Context) {
	if p.Shdr.Size == 0 {
		return
	}
	buf := ctx.Buf[p.Shdr.Offset:]
	ctx.Target.WritePltHeader(ctx, buf)

	hdrSize := ctx.Target.PltHeaderSize()
	entSize := ctx.Target.PltEntrySize()
	for i, sym := range p.Syms {
		ctx.Target.WritePltEntry(ctx, buf[hdrSize+uint64(i)*entSize:], int64(i), sym)
	}
}
