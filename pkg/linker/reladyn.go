package linker

import (
	"debug/elf"
	"unsafe"

	"github.com/emberlink/eld/pkg/utils"
)

// RelaDynSection is .rela.dyn: relocations the dynamic loader must apply at
// load time (GOT relative fixups in a PIE/shared object, copy relocations,
// TLS module/offset pairs). Entries come from CopyRelSection (Reserve/Fill)
// and from GotSection's CopyBuf (Add), and are serialized last.
type RelaDynSection struct {
	Chunk
	entries []Rela
	// pending holds the symbol each entries[i] needs its dynsym index
	// from; CopyBuf looks the index up when it writes the entry.
	pending []*Symbol
}

func NewRelaDynSection() *RelaDynSection {
	r := &RelaDynSection{Chunk: NewChunk()}
	r.Name = ".rela.dyn"
	r.Shdr.Type = uint32(elf.SHT_RELA)
	r.Shdr.Flags = uint64(elf.SHF_ALLOC)
	r.Shdr.EntSize = uint64(unsafe.Sizeof(Rela{}))
	r.Shdr.AddrAlign = 8
	return r
}

func (r *RelaDynSection) Add(addr uint64, typ uint32, sym *Symbol, addend int64) {
	r.entries = append(r.entries, Rela{Offset: addr, Type: typ, Addend: addend})
	r.pending = append(r.pending, sym)
}

// Reserve claims a slot before the entry's final address is known, so
// UpdateShdr's size (computed from len(entries), which runs before
// layout) already accounts for it. Fill patches the reserved slot once
// layout has settled the real address. CopyRelSection uses this because
// its symbol count is known as soon as ScanRels finishes, well before
// sizing; GOT's own dynamic relocations still call Add lazily from
// CopyBuf instead (see DESIGN.md for the sizing gap that leaves open).
func (r *RelaDynSection) Reserve() int {
	idx := len(r.entries)
	r.entries = append(r.entries, Rela{})
	r.pending = append(r.pending, nil)
	return idx
}

func (r *RelaDynSection) Fill(idx int, addr uint64, typ uint32, sym *Symbol, addend int64) {
	r.entries[idx] = Rela{Offset: addr, Type: typ, Addend: addend}
	r.pending[idx] = sym
}

func (r *RelaDynSection) UpdateShdr(ctx *Context) {
	r.Shdr.Size = uint64(len(r.entries)) * r.Shdr.EntSize
	if ctx.Dynsym != nil {
		r.Shdr.Link = uint32(ctx.Dynsym.Shndx)
	}
}

func (r *RelaDynSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[r.Shdr.Offset:]
	for i, e := range r.entries {
		if sym := r.pending[i]; sym != nil {
			e.Sym = uint32(sym.GetDynsymIdx(ctx))
		}
		utils.Write[Rela](buf[i*int(r.Shdr.EntSize):], e)
	}
}
