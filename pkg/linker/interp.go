package linker

import "debug/elf"

// InterpSection emits PT_INTERP / .interp: the path to the dynamic loader
// that the kernel execs before handing control to the program's entry
// point (spec.md §4.13 dynamic linking).
type InterpSection struct {
	Chunk
	Path string
}

const defaultInterp = "/lib64/ld-linux-x86-64.so.2"

func NewInterpSection() *InterpSection {
	i := &InterpSection{Chunk: NewChunk(), Path: defaultInterp}
	i.Name = ".interp"
	i.Shdr.Type = uint32(elf.SHT_PROGBITS)
	i.Shdr.Flags = uint64(elf.SHF_ALLOC)
	i.Shdr.AddrAlign = 1
	return i
}

func (i *InterpSection) SetPath(ctx *Context, path string) {
	if path == "" {
		switch ctx.Target.Machine() {
		case elf.EM_RISCV:
			i.Path = "/lib/ld-linux-riscv64-lp64d.so.1"
		default:
			i.Path = defaultInterp
		}
		return
	}
	i.Path = path
}

func (i *InterpSection) UpdateShdr(ctx *Context) {
	i.Shdr.Size = uint64(len(i.Path)) + 1
}

func (i *InterpSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[i.Shdr.Offset:]
	copy(buf, i.Path)
	buf[len(i.Path)] = 0
}
