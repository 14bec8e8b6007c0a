package linker

import "debug/elf"

// DynstrSection is .dynstr: the flat, NUL-separated string pool that
// .dynsym and .dynamic's DT_NEEDED/DT_SONAME/DT_RPATH entries index into.
type DynstrSection struct {
	Chunk
	strs   []string
	offset map[string]uint32
}

func NewDynstrSection() *DynstrSection {
	d := &DynstrSection{Chunk: NewChunk(), offset: make(map[string]uint32)}
	d.Name = ".dynstr"
	d.Shdr.Type = uint32(elf.SHT_STRTAB)
	d.Shdr.Flags = uint64(elf.SHF_ALLOC)
	d.Shdr.AddrAlign = 1
	d.Shdr.Size = 1 // slot 0 is always the empty string
	return d
}

func (d *DynstrSection) Add(s string) uint32 {
	if off, ok := d.offset[s]; ok {
		return off
	}
	off := uint32(d.Shdr.Size)
	d.offset[s] = off
	d.strs = append(d.strs, s)
	d.Shdr.Size += uint64(len(s)) + 1
	return off
}

func (d *DynstrSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[d.Shdr.Offset:]
	buf[0] = 0
	pos := uint64(1)
	for _, s := range d.strs {
		copy(buf[pos:], s)
		buf[pos+uint64(len(s))] = 0
		pos += uint64(len(s)) + 1
	}
}
