package linker

import (
	"debug/elf"
	"unsafe"

	"github.com/emberlink/eld/pkg/utils"
)

// DynamicSection is .dynamic: the DT_* tag/value array the loader reads
// first to find every other dynamic-linking structure (spec.md §4.13).
type DynamicSection struct {
	Chunk
	Needed []string
	Soname string
}

func NewDynamicSection() *DynamicSection {
	d := &DynamicSection{Chunk: NewChunk()}
	d.Name = ".dynamic"
	d.Shdr.Type = uint32(elf.SHT_DYNAMIC)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	d.Shdr.EntSize = uint64(unsafe.Sizeof(Dyn{}))
	d.Shdr.AddrAlign = 8
	return d
}

func (d *DynamicSection) entries(ctx *Context) []Dyn {
	var e []Dyn
	add := func(tag int64, val uint64) { e = append(e, Dyn{Tag: tag, Val: val}) }

	for _, lib := range d.Needed {
		add(int64(elf.DT_NEEDED), uint64(ctx.Dynstr.Add(lib)))
	}
	if d.Soname != "" {
		add(int64(elf.DT_SONAME), uint64(ctx.Dynstr.Add(d.Soname)))
	}
	if ctx.RelaDyn != nil && ctx.RelaDyn.Shdr.Size > 0 {
		add(int64(elf.DT_RELA), ctx.RelaDyn.Shdr.Addr)
		add(int64(elf.DT_RELASZ), ctx.RelaDyn.Shdr.Size)
		add(int64(elf.DT_RELAENT), ctx.RelaDyn.Shdr.EntSize)
	}
	if ctx.RelaPlt != nil && ctx.RelaPlt.Shdr.Size > 0 {
		add(int64(elf.DT_JMPREL), ctx.RelaPlt.Shdr.Addr)
		add(int64(elf.DT_PLTRELSZ), ctx.RelaPlt.Shdr.Size)
		add(int64(elf.DT_PLTREL), uint64(elf.DT_RELA))
		add(int64(elf.DT_PLTGOT), ctx.GotPlt.Shdr.Addr)
	}
	if ctx.GnuHash != nil {
		add(int64(elf.DT_GNU_HASH), ctx.GnuHash.Shdr.Addr)
	}
	if ctx.Dynsym != nil {
		add(int64(elf.DT_SYMTAB), ctx.Dynsym.Shdr.Addr)
		add(int64(elf.DT_SYMENT), ctx.Dynsym.Shdr.EntSize)
	}
	if ctx.Dynstr != nil {
		add(int64(elf.DT_STRTAB), ctx.Dynstr.Shdr.Addr)
		add(int64(elf.DT_STRSZ), ctx.Dynstr.Shdr.Size)
	}
	if ctx.Arg.OutputType == OutputDyn {
		add(int64(elf.DT_FLAGS_1), 0x1) // DF_1_NOW
	}
	add(int64(elf.DT_NULL), 0)
	return e
}

func (d *DynamicSection) UpdateShdr(ctx *Context) {
	d.Shdr.Size = uint64(len(d.entries(ctx))) * d.Shdr.EntSize
	if ctx.Dynstr != nil {
		d.Shdr.Link = uint32(ctx.Dynstr.Shndx)
	}
}

func (d *DynamicSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[d.Shdr.Offset:]
	for i, e := range d.entries(ctx) {
		utils.Write[Dyn](buf[i*int(d.Shdr.EntSize):], e)
	}
}
