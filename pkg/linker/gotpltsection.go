package linker

import (
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

// GotPltSection is .got.plt: one 8-byte slot per PLT symbol (plus three
// reserved slots for the loader: a pointer to .dynamic, and two reserved
// for the resolver). Initial contents point back into .plt so the first
// call through each stub falls into the lazy-binding path.
type GotPltSection struct {
	Chunk
	Syms []*Symbol
}

const gotPltReservedEntries = 3

func NewGotPltSection() *GotPltSection {
	g := &GotPltSection{Chunk: NewChunk()}
	g.Name = ".got.plt"
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	return g
}

func (g *GotPltSection) AddSymbol(ctx *Context, sym *Symbol) {
	g.Syms = append(g.Syms, sym)
}

func (g *GotPltSection) UpdateShdr(ctx *Context) {
	g.Shdr.Size = uint64(gotPltReservedEntries+len(g.Syms)) * 8
}

func (g *GotPltSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[g.Shdr.Offset:]
	for i := 0; i < gotPltReservedEntries; i++ {
		utils.Write[uint64](buf[i*8:], 0)
	}
	if ctx.Dynamic != nil {
		utils.Write[uint64](buf[0:], ctx.Dynamic.Shdr.Addr)
	}

	for i := range g.Syms {
		utils.Write[uint64](buf[(gotPltReservedEntries+i)*8:], ctx.Target.GotPltEntryValue(ctx, int64(i)))
	}
}
