package linker

import "debug/elf"

// SharedFile represents one input DSO (a "-lfoo" resolving to a .so, or a
// .so named directly on the command line). Only the pieces the static
// linker needs at link time are read: the dynamic symbol table, so that
// its exported names can satisfy undefined references and get recorded
// as DT_NEEDED/PLT imports (spec.md §4.13 dynamic linking, non-goal list
// excludes runtime loading, not link-time DSO resolution).
type SharedFile struct {
	InputFile
	Soname    string
	Versions  []string
	IsNeeded  bool
}

func NewSharedFile(ctx *Context, file *File) *SharedFile {
	f := &SharedFile{InputFile: *NewInputFile(file)}
	f.IsAlive = ctx.Arg.Static == false

	dynsymSec := f.FindSection(uint32(elf.SHT_DYNSYM))
	if dynsymSec == nil {
		return f
	}

	f.FirstGlobal = int64(dynsymSec.Info)
	f.FillUpElfSyms(dynsymSec)
	f.SymbolStrtab = f.GetBytesFromIdx(int64(dynsymSec.Link))

	f.Soname = file.Name
	if dynSec := f.FindSection(uint32(elf.SHT_DYNAMIC)); dynSec != nil {
		f.readDynamic(dynSec)
	}

	f.Symbols = make([]*Symbol, len(f.ElfSyms))
	for i := int64(0); i < int64(len(f.ElfSyms)); i++ {
		esym := &f.ElfSyms[i]
		name := getName(f.SymbolStrtab, esym.Name)
		if name == "" {
			continue
		}
		f.Symbols[i] = GetSymbolByName(ctx, name)
	}

	return f
}

func (f *SharedFile) readDynamic(dynSec *Shdr) {
	bs := f.GetBytesFromShdr(dynSec)
	strtabSec := &f.ElfSections[dynSec.Link]
	strtab := f.GetBytesFromShdr(strtabSec)

	for len(bs) >= 16 {
		tag := int64(uint64(bs[0]) | uint64(bs[1])<<8 | uint64(bs[2])<<16 | uint64(bs[3])<<24 |
			uint64(bs[4])<<32 | uint64(bs[5])<<40 | uint64(bs[6])<<48 | uint64(bs[7])<<56)
		val := uint64(bs[8]) | uint64(bs[9])<<8 | uint64(bs[10])<<16 | uint64(bs[11])<<24 |
			uint64(bs[12])<<32 | uint64(bs[13])<<40 | uint64(bs[14])<<48 | uint64(bs[15])<<56
		bs = bs[16:]

		if tag == int64(elf.DT_NULL) {
			break
		}
		if tag == int64(elf.DT_SONAME) {
			f.Soname = getName(strtab, uint32(val))
		}
	}
}

// ExportedSymbolNames returns every defined global symbol this DSO
// provides, for resolution against undefined references in object files.
func (f *SharedFile) ExportedSymbolNames() []string {
	var names []string
	for i := f.FirstGlobal; i < int64(len(f.ElfSyms)); i++ {
		esym := &f.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}
		names = append(names, getName(f.SymbolStrtab, esym.Name))
	}
	return names
}

// ResolveSymbols walks the symbols this DSO defines but changes none of
// them: a definition from a regular object file always wins, and symbols
// still undefined are bound to the DSO later, by ClaimImports.
func (f *SharedFile) ResolveSymbols(ctx *Context) {
	for i := f.FirstGlobal; i < int64(len(f.ElfSyms)); i++ {
		esym := &f.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}
		sym := f.Symbols[i]
		if sym == nil || sym.File != nil {
			continue
		}
		sym.File = nil // left unresolved until claimed
	}
}

// ClaimImports binds any symbol still undefined after every object file
// has resolved, to this DSO, marking it IsImported so ScanRels routes it
// through the GOT/PLT instead of a direct relocation.
//
// A claimed symbol is reassigned to ctx.InternalObj rather than to this
// SharedFile, so it also has to be appended into ctx.InternalObj.Symbols
// and given a fresh slot in ctx.InternalEsyms (mirroring AddSyntheticSymbols'
// pattern): ScanRels only discovers a symbol by walking file.Symbols for
// file == sym.File, and Symbol.ElfSym indexes File.ElfSyms by SymIdx, so
// without both of these an imported symbol is invisible to GOT/PLT/Dynsym
// registration and to .dynsym's Info/Other/Size fields.
func (f *SharedFile) ClaimImports(ctx *Context) {
	for i := f.FirstGlobal; i < int64(len(f.ElfSyms)); i++ {
		esym := &f.ElfSyms[i]
		if esym.IsUndef() {
			continue
		}
		sym := f.Symbols[i]
		if sym == nil || sym.File != nil {
			continue
		}
		sym.File = ctx.InternalObj
		sym.IsImported = true
		sym.IsExported = false
		sym.Value = esym.Val
		sym.VerIdx = ctx.DefaultVersion
		sym.Flags |= NeedsDynSym
		sym.SymIdx = int32(len(ctx.InternalEsyms))
		if esym.Type() == uint8(elf.STT_OBJECT) {
			sym.CopySize = esym.Size
		}

		ctx.InternalEsyms = append(ctx.InternalEsyms, *esym)
		ctx.InternalObj.Symbols = append(ctx.InternalObj.Symbols, sym)
	}

	ctx.InternalObj.ElfSyms = ctx.InternalEsyms
}
