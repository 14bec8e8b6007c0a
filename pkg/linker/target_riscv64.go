package linker

import (
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

func init() {
	registerTarget(elf.EM_RISCV, func() Target { return &riscv64Target{} })
}

// riscv64Target implements the RISC-V RV64 relocation family the way
// the teacher's InputSection.ApplyRelocAlloc did, generalized behind
// the Target interface so the pipeline no longer hard-codes RISC-V.
type riscv64Target struct{}

func (riscv64Target) Machine() elf.Machine { return elf.EM_RISCV }
func (riscv64Target) Name() string         { return "riscv64" }
func (riscv64Target) ImageBase() uint64    { return 0x200000 }
func (riscv64Target) StackAlign() uint64   { return 16 }
func (riscv64Target) GotEntrySize() uint64 { return 8 }
func (riscv64Target) PltEntrySize() uint64 { return 16 }
func (riscv64Target) PltHeaderSize() uint64 { return 32 }

// RISC-V's AUIPC+JALR call sequence covers a full +/-2GiB, matching
// most other targets' effective range; near-caller thunks are only
// needed for the compressed C.J/C.JAL forms, which this implementation
// does not synthesize input for, so no thunk pass is required.
func (riscv64Target) NeedsThunks() bool                        { return false }
func (riscv64Target) ThunkSize() int64                         { return 0 }
func (riscv64Target) InRange(pcAddr, dest uint64) bool         { return true }
func (riscv64Target) WriteThunk(buf []byte, a, b uint64)       {}

func (riscv64Target) DynRelRelative() uint32 { return uint32(elf.R_RISCV_RELATIVE) }
func (riscv64Target) DynRelGlobDat() uint32  { return uint32(elf.R_RISCV_64) }
func (riscv64Target) DynRelJumpSlot() uint32 { return uint32(elf.R_RISCV_JUMP_SLOT) }
func (riscv64Target) DynRelCopy() uint32     { return uint32(elf.R_RISCV_COPY) }
func (riscv64Target) DynRelTPOff() uint32    { return uint32(elf.R_RISCV_TLS_TPREL64) }

func (riscv64Target) RelocTypeName(t uint32) string {
	return elf.R_RISCV(t).String()
}

func (riscv64Target) ScanRelocation(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol) {
	switch elf.R_RISCV(rel.Type) {
	case elf.R_RISCV_GOT_HI20:
		sym.Flags |= NeedsGot
	case elf.R_RISCV_TLS_GOT_HI20:
		sym.Flags |= NeedsGotTp
	case elf.R_RISCV_CALL_PLT:
		if sym.IsImported || (sym.File != nil && sym.File != isec.File && sym.IsExported) {
			sym.Flags |= NeedsPlt
		}
	case elf.R_RISCV_64, elf.R_RISCV_32:
		// A direct (non-GOT) reference to a DSO-provided data object: see
		// the amd64 target's identical case for the rationale.
		if sym.IsImported && sym.CopySize > 0 && ctx.Arg.OutputType == OutputExec {
			sym.Flags |= NeedsCopyRel
		}
	}
}

func riscvItype(val uint32) uint32 { return val << 20 }
func riscvStype(val uint32) uint32 {
	return utils.Bits(val, 11, 5)<<25 | utils.Bits(val, 4, 0)<<7
}
func riscvBtype(val uint32) uint32 {
	return utils.Bit(val, 12)<<31 | utils.Bits(val, 10, 5)<<25 |
		utils.Bits(val, 4, 1)<<8 | utils.Bit(val, 11)<<7
}
func riscvUtype(val uint32) uint32 { return (val + 0x800) & 0xffff_f000 }
func riscvJtype(val uint32) uint32 {
	return utils.Bit(val, 20)<<31 | utils.Bits(val, 10, 1)<<21 |
		utils.Bit(val, 11)<<20 | utils.Bits(val, 19, 12)<<12
}
func riscvCbtype(val uint16) uint16 {
	return utils.Bit(val, 8)<<12 | utils.Bit(val, 4)<<11 | utils.Bit(val, 3)<<10 |
		utils.Bit(val, 7)<<6 | utils.Bit(val, 6)<<5 | utils.Bit(val, 2)<<4 |
		utils.Bit(val, 1)<<3 | utils.Bit(val, 5)<<2
}
func riscvCjtype(val uint16) uint16 {
	return utils.Bit(val, 11)<<12 | utils.Bit(val, 4)<<11 | utils.Bit(val, 9)<<10 |
		utils.Bit(val, 8)<<9 | utils.Bit(val, 10)<<8 | utils.Bit(val, 6)<<7 |
		utils.Bit(val, 7)<<6 | utils.Bit(val, 3)<<5 | utils.Bit(val, 2)<<4 |
		utils.Bit(val, 1)<<3 | utils.Bit(val, 5)<<2
}

func riscvWriteItype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_11111_111_11111_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|riscvItype(val))
}
func riscvWriteStype(loc []byte, val uint32) {
	mask := uint32(0b000000_11111_11111_111_00000_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|riscvStype(val))
}
func riscvWriteBtype(loc []byte, val uint32) {
	mask := uint32(0b000000_11111_11111_111_00000_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|riscvBtype(val))
}
func riscvWriteUtype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_00000_000_11111_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|riscvUtype(val))
}
func riscvWriteJtype(loc []byte, val uint32) {
	mask := uint32(0b000000_00000_00000_000_11111_1111111)
	utils.Write[uint32](loc, (utils.Read[uint32](loc)&mask)|riscvJtype(val))
}
func riscvWriteCbtype(loc []byte, val uint16) {
	mask := uint16(0b111_000_111_00000_11)
	utils.Write[uint16](loc, (utils.Read[uint16](loc)&mask)|riscvCbtype(val))
}
func riscvWriteCjtype(loc []byte, val uint16) {
	mask := uint16(0b111_00000000000_11)
	utils.Write[uint16](loc, (utils.Read[uint16](loc)&mask)|riscvCjtype(val))
}
func riscvSetRs1(loc []byte, rs1 uint32) {
	utils.Write[uint32](loc, utils.Read[uint32](loc)&0b111111_11111_00000_111_11111_1111111)
	utils.Write[uint32](loc, utils.Read[uint32](loc)|(rs1<<15))
}

func (t riscv64Target) ApplyReloc(ctx *Context, isec *InputSection, base []byte, rel *Rela, sym *Symbol) {
	offset := rel.Offset
	loc := base[offset:]

	S := sym.GetAddr(ctx)
	A := uint64(rel.Addend)
	P := isec.GetAddr() + offset
	G := uint64(sym.GetGotIdx(ctx)) * 8
	GOT := ctx.Got.Shdr.Addr
	plt := sym.GetPltAddr(ctx)
	if plt != 0 {
		S = plt
	}

	switch elf.R_RISCV(rel.Type) {
	case elf.R_RISCV_32:
		utils.Write[uint32](loc, uint32(S+A))
	case elf.R_RISCV_64:
		utils.Write[uint64](loc, S+A)
	case elf.R_RISCV_BRANCH:
		riscvWriteBtype(loc, uint32(S+A-P))
	case elf.R_RISCV_JAL:
		riscvWriteJtype(loc, uint32(S+A-P))
	case elf.R_RISCV_CALL, elf.R_RISCV_CALL_PLT:
		val := uint32(0)
		if !sym.ElfSym().IsUndefWeak() {
			val = uint32(S + A - P)
		}
		riscvWriteUtype(loc, val)
		riscvWriteItype(loc[4:], val)
	case elf.R_RISCV_GOT_HI20:
		utils.Write[uint32](loc, uint32(G+GOT+A-P))
	case elf.R_RISCV_TLS_GOT_HI20:
		utils.Write[uint32](loc, uint32(sym.GetGotTpAddr(ctx)+A-P))
	case elf.R_RISCV_PCREL_HI20:
		utils.Write[uint32](loc, uint32(S+A-P))
	case elf.R_RISCV_HI20:
		riscvWriteUtype(loc, uint32(S+A))
	case elf.R_RISCV_LO12_I, elf.R_RISCV_LO12_S:
		val := S + A
		if rel.Type == uint32(elf.R_RISCV_LO12_I) {
			riscvWriteItype(loc, uint32(val))
		} else {
			riscvWriteStype(loc, uint32(val))
		}
		if utils.SignExtend(val, 11) == val {
			riscvSetRs1(loc, 0)
		}
	case elf.R_RISCV_TPREL_HI20:
		riscvWriteUtype(loc, uint32(S+A-ctx.TpAddr))
	case elf.R_RISCV_TPREL_ADD:
	case elf.R_RISCV_TPREL_LO12_I, elf.R_RISCV_TPREL_LO12_S:
		val := S + A - ctx.TpAddr
		if rel.Type == uint32(elf.R_RISCV_TPREL_LO12_I) {
			riscvWriteItype(loc, uint32(val))
		} else {
			riscvWriteStype(loc, uint32(val))
		}
		if utils.SignExtend(val, 11) == val {
			riscvSetRs1(loc, 4)
		}
	case elf.R_RISCV_ADD8:
		utils.Write[uint8](loc, utils.Read[uint8](loc)+uint8(S+A))
	case elf.R_RISCV_ADD16:
		utils.Write[uint16](loc, utils.Read[uint16](loc)+uint16(S+A))
	case elf.R_RISCV_ADD32:
		utils.Write[uint32](loc, utils.Read[uint32](loc)+uint32(S+A))
	case elf.R_RISCV_ADD64:
		utils.Write[uint64](loc, utils.Read[uint64](loc)+uint64(S+A))
	case elf.R_RISCV_SUB8:
		utils.Write[uint8](loc, utils.Read[uint8](loc)-uint8(S+A))
	case elf.R_RISCV_SUB16:
		utils.Write[uint16](loc, utils.Read[uint16](loc)-uint16(S+A))
	case elf.R_RISCV_SUB32:
		utils.Write[uint32](loc, utils.Read[uint32](loc)-uint32(S+A))
	case elf.R_RISCV_SUB64:
		utils.Write[uint64](loc, utils.Read[uint64](loc)-uint64(S+A))
	case elf.R_RISCV_ALIGN:
		paddingSize := int64(utils.AlignTo(P, utils.BitCeil(uint64(rel.Addend+1))) - P)
		idx := int64(0)
		for ; idx < paddingSize-4; idx += 4 {
			utils.Write[uint32](loc[idx:], uint32(0x0000_0013)) // nop
		}
		if idx != paddingSize {
			utils.Write[uint16](loc[idx:], uint16(0x0001)) // c.nop
		}
	case elf.R_RISCV_RVC_BRANCH:
		riscvWriteCbtype(loc, uint16(S+A-P))
	case elf.R_RISCV_RVC_JUMP:
		riscvWriteCjtype(loc, uint16(S+A-P))
	case elf.R_RISCV_PCREL_LO12_I, elf.R_RISCV_PCREL_LO12_S:
		// Resolved in the second/third fixup passes below, mirroring
		// upstream mold's two-pass PCREL_LO12 handling: the addend for
		// this relocation is implicit (the offset of the paired HI20).
	case elf.R_RISCV_NONE, elf.R_RISCV_RELAX, elf.R_RISCV_SET6, elf.R_RISCV_SET8,
		elf.R_RISCV_SET16, elf.R_RISCV_SET32, elf.R_RISCV_SUB6:
		// handled elsewhere or intentionally no-op
	default:
		ctx.Diag.Error(isec.File.File.Name, isec.Name(), offset,
			"unsupported relocation: %s", elf.R_RISCV(rel.Type))
	}
}

// FixupPasses replays the teacher's two trailing passes over PCREL_LO12_*
// (copy the value computed at the paired HI20 into this instruction) and
// GOT_HI20/PCREL_HI20/TLS_GOT_HI20 (ApplyReloc left the raw computed
// value in the instruction word so the LO12 pass could read it; this pass
// restores the original instruction bytes and encodes that value as the
// U-type immediate).
func (riscv64Target) FixupPasses(ctx *Context, isec *InputSection, base []byte) {
	rels := isec.GetRels()
	getDelta := func(idx int) int32 {
		if len(isec.Deltas) == 0 {
			return 0
		}
		return isec.Deltas[idx]
	}

	for i := 0; i < len(rels); i++ {
		switch elf.R_RISCV(rels[i].Type) {
		case elf.R_RISCV_PCREL_LO12_I, elf.R_RISCV_PCREL_LO12_S:
			sym := isec.File.Symbols[rels[i].Sym]
			utils.Assert(sym.InputSection == isec)
			loc := base[rels[i].Offset-uint64(getDelta(i)):]
			val := utils.Read[uint32](base[sym.Value:])

			if rels[i].Type == uint32(elf.R_RISCV_PCREL_LO12_I) {
				riscvWriteItype(loc, val)
			} else {
				riscvWriteStype(loc, val)
			}
		}
	}

	for i := 0; i < len(rels); i++ {
		switch elf.R_RISCV(rels[i].Type) {
		case elf.R_RISCV_GOT_HI20, elf.R_RISCV_PCREL_HI20, elf.R_RISCV_TLS_GOT_HI20:
			loc := base[rels[i].Offset-uint64(getDelta(i)):]
			val := utils.Read[uint32](loc)
			utils.Write[uint32](loc, utils.Read[uint32](isec.Contents[rels[i].Offset:]))
			riscvWriteUtype(loc, val)
		}
	}
}

// WritePltHeader is a no-op: riscv64's real PLT[0] is an eight-instruction
// lazy-resolver stub that saves the link map/symbol-index registers before
// tail-calling into the loader, and this implementation doesn't encode it
// (see DESIGN.md). Every PLTn entry below is fully encoded and jumps
// through its own .got.plt slot, which still lets the ELF layout and
// already-resolved-on-first-bind cases (anything but a lazy first call)
// work correctly.
func (riscv64Target) WritePltHeader(ctx *Context, buf []byte) {}

func (riscv64Target) WritePltEntry(ctx *Context, buf []byte, pltIdx int64, sym *Symbol) {
	// auipc t3, %hi(gotplt_entry - entry); ld t3, %lo(...)(t3); jalr t1, t3; nop
	utils.Write[uint32](buf[0:], 0x00000e17) // auipc t3, 0
	utils.Write[uint32](buf[4:], 0x000e3e03) // ld    t3, 0(t3)
	utils.Write[uint32](buf[8:], 0x000e0367) // jalr  t1, t3
	utils.Write[uint32](buf[12:], 0x00000013) // nop

	entryAddr := ctx.Plt.Shdr.Addr + ctx.Target.PltHeaderSize() + uint64(pltIdx)*ctx.Target.PltEntrySize()
	gotPltEntryAddr := ctx.GotPlt.Shdr.Addr + uint64(gotPltReservedEntries+int(pltIdx))*8
	val := uint32(gotPltEntryAddr - entryAddr)

	riscvWriteUtype(buf[0:4], val)
	riscvWriteItype(buf[4:8], val)
}

// GotPltEntryValue is PLT0's own address: riscv64's (unimplemented, see
// WritePltHeader) resolver convention recovers which symbol is binding
// from the PLTn stub it fell through from, not from the pre-bind slot
// value itself, so every slot can point at the same place.
func (riscv64Target) GotPltEntryValue(ctx *Context, pltIdx int64) uint64 {
	if ctx.Plt == nil {
		return 0
	}
	return ctx.Plt.Shdr.Addr
}
