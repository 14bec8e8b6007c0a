package linker

import (
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

// CopyRelSection is .bss.rel.ro: zero-initialized (SHT_NOBITS) space
// holding one slot per symbol that needs a copy relocation (spec.md
// §4.10, R_*_COPY). A main executable can't take a DSO's address
// directly for a data object without PIC, so it instead reserves a slot
// here, redirects the symbol to it, and emits a dynamic relocation the
// loader resolves at load time by copying the DSO's initial contents in.
// lld and gold use this same section name for the same purpose.
type CopyRelSection struct {
	Chunk
	Syms     []*Symbol
	offsets  []uint64
	relaIdxs []int
}

func NewCopyRelSection() *CopyRelSection {
	c := &CopyRelSection{Chunk: NewChunk()}
	c.Name = ".bss.rel.ro"
	c.Shdr.Type = uint32(elf.SHT_NOBITS)
	c.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	c.Shdr.AddrAlign = 16
	return c
}

// AddSymbol reserves sym.CopySize bytes and registers its .dynsym entry
// and the R_*_COPY relocation that binds it. The symbol's real address
// (its Value once layout has run) is fixed up in FixCopyRelSymbols,
// mirroring FixSyntheticSymbols' two-step reserve-then-patch shape.
func (c *CopyRelSection) AddSymbol(ctx *Context, sym *Symbol) {
	align := uint64(16)
	off := utils.AlignTo(c.Shdr.Size, align)
	c.offsets = append(c.offsets, off)
	c.Syms = append(c.Syms, sym)
	c.Shdr.Size = off + sym.CopySize

	if ctx.Dynsym != nil {
		ctx.Dynsym.AddSymbol(ctx, sym)
	}
	if ctx.RelaDyn != nil {
		c.relaIdxs = append(c.relaIdxs, ctx.RelaDyn.Reserve())
	} else {
		c.relaIdxs = append(c.relaIdxs, -1)
	}
}

func (c *CopyRelSection) UpdateShdr(ctx *Context) {}

// CopyBuf is a no-op: SHT_NOBITS sections occupy no file space.
func (c *CopyRelSection) CopyBuf(ctx *Context) {}

// FixCopyRelSymbols redirects each copy-relocated symbol's address into
// its reserved slot and emits its R_*_COPY entry, run once this section's
// address is final (spec.md §4.9 layout has to happen first).
func FixCopyRelSymbols(ctx *Context) {
	if ctx.CopyRel == nil {
		return
	}
	for i, sym := range ctx.CopyRel.Syms {
		sym.SetOutputSection(ctx.CopyRel)
		sym.Value = ctx.CopyRel.Shdr.Addr + ctx.CopyRel.offsets[i]
		// The copy now makes this executable the symbol's real definition:
		// direct references (and the DSO's own future lookups) must bind
		// here, not back to the DSO's SHN_UNDEF placeholder.
		sym.IsImported = false
		sym.IsExported = true
		if idx := ctx.CopyRel.relaIdxs[i]; idx >= 0 && ctx.RelaDyn != nil {
			ctx.RelaDyn.Fill(idx, sym.Value, ctx.Target.DynRelCopy(), sym, 0)
		}
	}
}
