package linker

import (
	"debug/elf"
	"unsafe"

	"github.com/emberlink/eld/pkg/utils"
)

// RelaPltSection is .rela.plt: one JUMP_SLOT relocation per lazily-bound
// PLT symbol, pointing at that symbol's .got.plt slot.
type RelaPltSection struct {
	Chunk
	Syms []*Symbol
}

func NewRelaPltSection() *RelaPltSection {
	r := &RelaPltSection{Chunk: NewChunk()}
	r.Name = ".rela.plt"
	r.Shdr.Type = uint32(elf.SHT_RELA)
	r.Shdr.Flags = uint64(elf.SHF_ALLOC)
	r.Shdr.EntSize = uint64(unsafe.Sizeof(Rela{}))
	r.Shdr.AddrAlign = 8
	r.Shdr.Info = 0 // PLT relocations apply to .got.plt as a whole, not one section
	return r
}

func (r *RelaPltSection) AddSymbol(ctx *Context, sym *Symbol) {
	r.Syms = append(r.Syms, sym)
}

func (r *RelaPltSection) UpdateShdr(ctx *Context) {
	r.Shdr.Size = uint64(len(r.Syms)) * r.Shdr.EntSize
	if ctx.Dynsym != nil {
		r.Shdr.Link = uint32(ctx.Dynsym.Shndx)
	}
	if ctx.GotPlt != nil {
		r.Shdr.Info = uint32(ctx.GotPlt.Shndx)
	}
}

func (r *RelaPltSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[r.Shdr.Offset:]
	for i, sym := range r.Syms {
		gotPltAddr := ctx.GotPlt.Shdr.Addr + uint64(gotPltReservedEntries+i)*8
		e := Rela{
			Offset: gotPltAddr,
			Type:   ctx.Target.DynRelJumpSlot(),
			Sym:    uint32(sym.GetDynsymIdx(ctx)),
		}
		utils.Write[Rela](buf[i*int(r.Shdr.EntSize):], e)
	}
}
