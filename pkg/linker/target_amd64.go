package linker

import (
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

func init() {
	registerTarget(elf.EM_X86_64, func() Target { return &amd64Target{} })
}

// amd64Target implements the x86-64 relocation family and its
// GOT/PLT/TLS conventions, added alongside riscv64 to prove the Target
// abstraction is not single-ISA (see SPEC_FULL.md §4.14).
type amd64Target struct{}

func (amd64Target) Machine() elf.Machine  { return elf.EM_X86_64 }
func (amd64Target) Name() string          { return "x86_64" }
func (amd64Target) ImageBase() uint64     { return 0x200000 }
func (amd64Target) StackAlign() uint64    { return 16 }
func (amd64Target) GotEntrySize() uint64  { return 8 }
func (amd64Target) PltEntrySize() uint64  { return 16 }
func (amd64Target) PltHeaderSize() uint64 { return 16 }

// x86-64's CALL rel32/JMP rel32 cover +/-2GiB, which this implementation
// treats as unlimited for any realistically sized link.
func (amd64Target) NeedsThunks() bool                { return false }
func (amd64Target) ThunkSize() int64                 { return 0 }
func (amd64Target) InRange(pcAddr, dest uint64) bool { return true }
func (amd64Target) WriteThunk(buf []byte, a, b uint64) {}

func (amd64Target) DynRelRelative() uint32 { return uint32(elf.R_X86_64_RELATIVE) }
func (amd64Target) DynRelGlobDat() uint32  { return uint32(elf.R_X86_64_GLOB_DAT) }
func (amd64Target) DynRelJumpSlot() uint32 { return uint32(elf.R_X86_64_JMP_SLOT) }
func (amd64Target) DynRelCopy() uint32     { return uint32(elf.R_X86_64_COPY) }
func (amd64Target) DynRelTPOff() uint32    { return uint32(elf.R_X86_64_TPOFF64) }

func (amd64Target) RelocTypeName(t uint32) string {
	return elf.R_X86_64(t).String()
}

func (amd64Target) ScanRelocation(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol) {
	switch elf.R_X86_64(rel.Type) {
	case elf.R_X86_64_GOT32, elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX,
		elf.R_X86_64_REX_GOTPCRELX, elf.R_X86_64_GOTTPOFF:
		sym.Flags |= NeedsGot
	case elf.R_X86_64_PLT32:
		if sym.IsImported || (sym.File != nil && sym.File != isec.File && sym.IsExported) {
			sym.Flags |= NeedsPlt
		}
	case elf.R_X86_64_TLSGD:
		sym.Flags |= NeedsTlsGd
	case elf.R_X86_64_TLSLD:
		ctx.NeedsTlsLd = true
	case elf.R_X86_64_64, elf.R_X86_64_32, elf.R_X86_64_32S:
		// A direct (non-GOT) reference to a DSO-provided data object: the
		// executable can't take the DSO's address without PIC, so it
		// reserves its own copy and redirects the symbol there instead
		// (spec.md §4.10's copy relocations). Shared objects never get
		// this treatment; they're expected to be position-independent.
		if sym.IsImported && sym.CopySize > 0 && ctx.Arg.OutputType == OutputExec {
			sym.Flags |= NeedsCopyRel
		}
	}
}

func (t amd64Target) ApplyReloc(ctx *Context, isec *InputSection, base []byte, rel *Rela, sym *Symbol) {
	offset := rel.Offset
	loc := base[offset:]

	S := sym.GetAddr(ctx)
	A := uint64(rel.Addend)
	P := isec.GetAddr() + offset
	G := uint64(sym.GetGotIdx(ctx)) * 8
	GOT := ctx.Got.Shdr.Addr
	if plt := sym.GetPltAddr(ctx); plt != 0 && (elf.R_X86_64(rel.Type) == elf.R_X86_64_PLT32 ||
		elf.R_X86_64(rel.Type) == elf.R_X86_64_PC32) {
		S = plt
	}

	switch elf.R_X86_64(rel.Type) {
	case elf.R_X86_64_NONE:
	case elf.R_X86_64_64:
		utils.Write[uint64](loc, S+A)
	case elf.R_X86_64_32:
		utils.Write[uint32](loc, uint32(S+A))
	case elf.R_X86_64_32S:
		utils.Write[uint32](loc, uint32(int32(S+A)))
	case elf.R_X86_64_16:
		utils.Write[uint16](loc, uint16(S+A))
	case elf.R_X86_64_8:
		utils.Write[uint8](loc, uint8(S+A))
	case elf.R_X86_64_PC32, elf.R_X86_64_PLT32:
		utils.Write[uint32](loc, uint32(S+A-P))
	case elf.R_X86_64_PC64:
		utils.Write[uint64](loc, S+A-P)
	case elf.R_X86_64_PC16:
		utils.Write[uint16](loc, uint16(S+A-P))
	case elf.R_X86_64_PC8:
		utils.Write[uint8](loc, uint8(S+A-P))
	case elf.R_X86_64_GOTPCREL, elf.R_X86_64_GOTPCRELX, elf.R_X86_64_REX_GOTPCRELX:
		utils.Write[uint32](loc, uint32(GOT+G+A-P))
	case elf.R_X86_64_GOT32:
		utils.Write[uint32](loc, uint32(G+A))
	case elf.R_X86_64_GOTOFF64:
		utils.Write[uint64](loc, S+A-GOT)
	case elf.R_X86_64_GOTPC32:
		utils.Write[uint32](loc, uint32(GOT+A-P))
	case elf.R_X86_64_TPOFF32:
		utils.Write[uint32](loc, uint32(S+A-ctx.TpAddr))
	case elf.R_X86_64_TPOFF64:
		utils.Write[uint64](loc, S+A-ctx.TpAddr)
	case elf.R_X86_64_GOTTPOFF:
		utils.Write[uint32](loc, uint32(GOT+G+A-P))
	case elf.R_X86_64_DTPOFF32:
		utils.Write[uint32](loc, uint32(S+A))
	case elf.R_X86_64_DTPOFF64:
		utils.Write[uint64](loc, S+A)
	case elf.R_X86_64_SIZE32:
		utils.Write[uint32](loc, uint32(sym.ElfSym().Size)+uint32(A))
	case elf.R_X86_64_SIZE64:
		utils.Write[uint64](loc, sym.ElfSym().Size+A)
	default:
		ctx.Diag.Error(isec.File.File.Name, isec.Name(), offset,
			"unsupported relocation: %s", elf.R_X86_64(rel.Type))
	}
}

func (amd64Target) FixupPasses(ctx *Context, isec *InputSection, buf []byte) {}

func (amd64Target) WritePltHeader(ctx *Context, buf []byte) {
	// push *GOT+8(%rip); jmp *GOT+16(%rip); nop*4 — the standard lazy
	// PLT[0] stub used by the base ELF ABI, wired to .got.plt entries 1/2.
	copy(buf, []byte{
		0xff, 0x35, 0, 0, 0, 0, // push GOTPLT+8(%rip)
		0xff, 0x25, 0, 0, 0, 0, // jmp *GOTPLT+16(%rip)
		0x0f, 0x1f, 0x40, 0x00, // nopl 0(%rax)
	})

	plt0 := ctx.Plt.Shdr.Addr
	gotplt := ctx.GotPlt.Shdr.Addr

	utils.Write[uint32](buf[2:], uint32(gotplt+8-(plt0+6)))
	utils.Write[uint32](buf[8:], uint32(gotplt+16-(plt0+12)))
}

func (amd64Target) WritePltEntry(ctx *Context, buf []byte, pltIdx int64, sym *Symbol) {
	// jmp *GOTPLT(%rip); push idx; jmp PLT[0]
	copy(buf, []byte{
		0xff, 0x25, 0, 0, 0, 0, // jmp *GOTPLT_ENTRY(%rip)
		0x68, 0, 0, 0, 0, // push pltIdx
		0xe9, 0, 0, 0, 0, // jmp PLT[0]
	})
	utils.Write[uint32](buf[7:], uint32(pltIdx))

	entryAddr := ctx.Plt.Shdr.Addr + ctx.Target.PltHeaderSize() + uint64(pltIdx)*ctx.Target.PltEntrySize()
	gotPltEntryAddr := ctx.GotPlt.Shdr.Addr + uint64(gotPltReservedEntries+int(pltIdx))*8

	utils.Write[uint32](buf[2:], uint32(gotPltEntryAddr-(entryAddr+6)))
	utils.Write[uint32](buf[12:], uint32(ctx.Plt.Shdr.Addr-(entryAddr+16)))
}

// GotPltEntryValue returns the address of this entry's own "push idx"
// instruction, six bytes into its PLTn stub: x86-64's PLT0 resolver reads
// the pushed index straight off the stack rather than deriving it from
// where the jump came from, so the pre-bind .got.plt slot must point
// there and not at PLT0 itself.
func (amd64Target) GotPltEntryValue(ctx *Context, pltIdx int64) uint64 {
	entryAddr := ctx.Plt.Shdr.Addr + ctx.Target.PltHeaderSize() + uint64(pltIdx)*ctx.Target.PltEntrySize()
	return entryAddr + 6
}
