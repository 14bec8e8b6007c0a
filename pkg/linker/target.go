package linker

import (
	"debug/elf"
	"fmt"

	"github.com/emberlink/eld/pkg/utils"
)

// Target is the capability-table abstraction spec.md §9 recommends in
// place of compile-time monomorphization: one implementation per ELF
// machine, holding every piece of target-parametric behavior the
// pipeline needs (relocation scanning/application, GOT/PLT geometry,
// thunk emission). Passes never switch on elf.Machine themselves; they
// call through ctx.Target.
type Target interface {
	Machine() elf.Machine
	Name() string
	ImageBase() uint64
	StackAlign() uint64

	GotEntrySize() uint64
	PltEntrySize() uint64
	PltHeaderSize() uint64

	// NeedsThunks reports whether this target has a limited-range direct
	// branch that may require range-extension stubs (spec.md §4.9 step 2).
	NeedsThunks() bool
	ThunkSize() int64
	// InRange reports whether a branch at pcAddr to target dest is
	// directly encodable without a thunk.
	InRange(pcAddr, dest uint64) bool
	WriteThunk(buf []byte, thunkAddr, targetAddr uint64)

	// ScanRelocation sets symbol flags (NeedsGot etc) for one relocation,
	// run before GOT/PLT/thunk sizes are finalized (spec.md §4.10).
	ScanRelocation(ctx *Context, isec *InputSection, rel *Rela, sym *Symbol)

	// ApplyReloc patches the bytes of one relocation into buf, the
	// output-image slice starting at this InputSection's address.
	ApplyReloc(ctx *Context, isec *InputSection, buf []byte, rel *Rela, sym *Symbol)

	// FixupPasses runs after every relocation in the section has been
	// applied once, for targets whose encoding needs a second pass over
	// paired relocations (riscv64's PCREL_LO12/HI20 pairing). Targets
	// without such coupling leave this empty.
	FixupPasses(ctx *Context, isec *InputSection, buf []byte)

	WritePltHeader(ctx *Context, buf []byte)
	WritePltEntry(ctx *Context, buf []byte, pltIdx int64, sym *Symbol)

	// GotPltEntryValue is the value a .got.plt slot holds before its
	// symbol's first lazy bind, i.e. where PLTn's jmp *GOTPLT_ENTRY(%rip)
	// lands on the very first call. Every ISA's PLT0 resolver expects a
	// different thing here (spec.md §4.10): x86-64 wants the address of
	// the "push idx" instruction inside the symbol's own PLTn stub, while
	// riscv64's resolver recovers the symbol index from register state
	// after a direct jump to PLT0 itself.
	GotPltEntryValue(ctx *Context, pltIdx int64) uint64

	RelocTypeName(t uint32) string

	DynRelRelative() uint32
	DynRelGlobDat() uint32
	DynRelJumpSlot() uint32
	DynRelCopy() uint32
	DynRelTPOff() uint32
}

var targetRegistry = map[elf.Machine]func() Target{}

func registerTarget(m elf.Machine, factory func() Target) {
	targetRegistry[m] = factory
}

// LookupTarget returns the Target for an ELF e_machine value, or nil if
// this build has no implementation for it (spec.md's twenty-target list
// is represented by the interface, not by every relocation table).
func LookupTarget(m elf.Machine) Target {
	if factory, ok := targetRegistry[m]; ok {
		return factory()
	}
	return nil
}

func MustLookupTarget(m elf.Machine) Target {
	t := LookupTarget(m)
	if t == nil {
		utils.Fatal(fmt.Sprintf("unsupported or unimplemented target machine: %s", m))
	}
	return t
}

// GetMachineFromContents sniffs e_machine/EI_CLASS straight from a
// mapped file's bytes, before any InputFile has been constructed —
// used by the classifier to pick the link's target from the first
// recognizable input (spec.md §4.1).
func GetMachineFromContents(contents []byte) (elf.Machine, bool) {
	ft := GetFileType(contents)
	switch ft {
	case FileTypeObject, FileTypeDso:
		if len(contents) < 20 {
			return 0, false
		}
		machine := elf.Machine(uint16(contents[18]) | uint16(contents[19])<<8)
		return machine, true
	}
	return 0, false
}
