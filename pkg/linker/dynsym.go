package linker

import (
	"debug/elf"
	"unsafe"

	"github.com/emberlink/eld/pkg/utils"
)

// DynsymSection is .dynsym: the subset of the global symbol table that the
// dynamic loader needs at load time (exported definitions, imports resolved
// from a DSO, and copy-relocated objects). Entry 0 is always the null
// symbol, matching the static .symtab convention.
type DynsymSection struct {
	Chunk
	Syms []*Symbol
}

func NewDynsymSection() *DynsymSection {
	d := &DynsymSection{Chunk: NewChunk()}
	d.Name = ".dynsym"
	d.Shdr.Type = uint32(elf.SHT_DYNSYM)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC)
	d.Shdr.EntSize = uint64(unsafe.Sizeof(Sym{}))
	d.Shdr.AddrAlign = 8
	d.Shdr.Info = 1 // one local symbol: the null entry
	return d
}

func (d *DynsymSection) AddSymbol(ctx *Context, sym *Symbol) {
	if sym.GetDynsymIdx(ctx) != -1 {
		return
	}
	idx := int32(len(d.Syms) + 1)
	sym.SetDynsymIdx(ctx, idx)
	d.Syms = append(d.Syms, sym)
	ctx.Dynstr.Add(sym.Name)
}

func (d *DynsymSection) UpdateShdr(ctx *Context) {
	d.Shdr.Size = uint64(len(d.Syms)+1) * d.Shdr.EntSize
	if ctx.Dynstr != nil {
		d.Shdr.Link = uint32(ctx.Dynstr.Shndx)
	}
}

func (d *DynsymSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[d.Shdr.Offset:]
	utils.Write[Sym](buf, Sym{})

	for i, sym := range d.Syms {
		esym := sym.ElfSym()
		out := Sym{
			Name:  ctx.Dynstr.Add(sym.Name),
			Info:  esym.Info,
			Other: esym.Other,
			Val:   sym.GetAddr(ctx),
			Size:  esym.Size,
		}
		if sym.IsImported {
			out.Shndx = uint16(elf.SHN_UNDEF)
		} else if sym.InputSection != nil || sym.SectionFragment != nil || sym.OutputSection != nil {
			out.Shndx = uint16(elf.SHN_ABS)
		}
		utils.Write[Sym](buf[(i+1)*int(d.Shdr.EntSize):], out)
	}
}
