package linker

import (
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

type GotSection struct {
	Chunk
	GotSyms   []*Symbol
	GotTpSyms []*Symbol
	TlsGdSyms []*Symbol
}

func NewGotSection() *GotSection {
	g := &GotSection{Chunk: NewChunk()}
	g.Name = ".got"
	g.Shdr.Type = uint32(elf.SHT_PROGBITS)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC | elf.SHF_WRITE)
	g.Shdr.AddrAlign = 8
	return g
}

func (g *GotSection) AddGotSymbol(ctx *Context, sym *Symbol) {
	sym.SetGotIdx(ctx, int32(g.Shdr.Size/8))
	g.Shdr.Size += 8
	g.GotSyms = append(g.GotSyms, sym)
}

func (g *GotSection) AddGotTpSymbol(ctx *Context, sym *Symbol) {
	sym.SetGotTpIdx(ctx, int32(g.Shdr.Size/8))
	g.Shdr.Size += 8
	g.GotTpSyms = append(g.GotTpSyms, sym)
}

func (g *GotSection) AddTlsGdSymbol(ctx *Context, sym *Symbol) {
	idx := int32(g.Shdr.Size / 8)
	ctx.SymbolsAux[sym.AuxIdx].TlsGdIdx = idx
	g.Shdr.Size += 16 // module id + offset, two GOT slots
	g.TlsGdSyms = append(g.TlsGdSyms, sym)
}

// GotEntry describes a single 8-byte GOT slot. Type == 0 means the value
// is resolved at link time and written directly; any other value names a
// dynamic relocation type that the loader must apply at load time, which
// GotSection.CopyBuf adds to .rela.dyn when it writes the GOT
// (spec.md §4.13 dynamic linking).
type GotEntry struct {
	Idx int64
	Val uint64
	Sym *Symbol
	Type uint32
}

func (e GotEntry) IsRel() bool { return e.Type != 0 }

func (g *GotSection) GetEntries(ctx *Context) []GotEntry {
	entries := make([]GotEntry, 0, len(g.GotSyms)+len(g.GotTpSyms)+2*len(g.TlsGdSyms))

	needsRel := ctx.Arg.Shared || ctx.Arg.Pie

	for _, sym := range g.GotSyms {
		idx := sym.GetGotIdx(ctx)
		if sym.IsImported || (needsRel && sym.IsExported) {
			entries = append(entries, GotEntry{int64(idx), 0, sym, ctx.Target.DynRelGlobDat()})
			continue
		}
		if needsRel {
			entries = append(entries, GotEntry{int64(idx), sym.GetAddr(ctx), nil, ctx.Target.DynRelRelative()})
			continue
		}
		entries = append(entries, GotEntry{int64(idx), sym.GetAddr(ctx), nil, 0})
	}

	for _, sym := range g.GotTpSyms {
		idx := sym.GetGotTpIdx(ctx)
		entries = append(entries, GotEntry{int64(idx), sym.GetAddr(ctx) - ctx.TpAddr, nil, 0})
	}

	for _, sym := range g.TlsGdSyms {
		idx := int64(ctx.SymbolsAux[sym.AuxIdx].TlsGdIdx)
		entries = append(entries, GotEntry{idx, 1, sym, ctx.Target.DynRelTPOff()})
	}

	return entries
}

func (g *GotSection) UpdateShdr(ctx *Context) {
	if g.Shdr.Size == 0 {
		g.Shdr.Size = 8
	}
}

func (g *GotSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[g.Shdr.Offset:]
	for i := uint64(0); i < g.Shdr.Size; i++ {
		buf[i] = 0
	}

	for _, ent := range g.GetEntries(ctx) {
		if !ent.IsRel() {
			utils.Write[uint64](buf[ent.Idx*8:], ent.Val)
			continue
		}
		if ctx.RelaDyn != nil {
			ctx.RelaDyn.Add(g.Shdr.Addr+uint64(ent.Idx)*8, ent.Type, ent.Sym, int64(ent.Val))
		}
	}
}
