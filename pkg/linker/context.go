package linker

import (
	"log/slog"
	"runtime"

	"github.com/emberlink/eld/internal/diag"
	"github.com/emberlink/eld/pkg/utils"
)

// ICFMode selects how aggressively Identical Code Folding treats
// address-taken sections (spec.md §4.6).
type ICFMode int

const (
	ICFNone ICFMode = iota
	ICFAll
	ICFSafe
)

// OutputType mirrors the three ELF output kinds spec.md §2 step 6 names.
type OutputType int

const (
	OutputExec OutputType = iota
	OutputDyn
	OutputRel // -r, relocatable output
)

type ContextArg struct {
	Output     string
	OutputType OutputType

	LibraryPaths  []string
	Entry         string
	SonameOpt     string
	Shared        bool
	Pie           bool
	Static        bool
	GcSections    bool
	ICFMode       ICFMode
	BuildID       string // "none", "fast", "md5", "sha1", "sha256", "uuid"
	VersionScript string
	Defsyms       map[string]string
	Wraps         []string
	FatalWarnings bool
	PrintMap      bool
	AllowMultipleDefinition bool
	CompressDebug string // "none", "zlib", "zstd"
	NumWorkers    int
}

type Context struct {
	Arg ContextArg

	Target Target
	Diag   *diag.Bag
	Log    *slog.Logger

	SymbolMap  *utils.ShardedMap[*Symbol]
	SymbolsAux []SymbolAux

	Ehdr *OutputEhdr
	Shdr *OutputShdr
	Phdr *OutputPhdr
	Got  *GotSection

	Dynamic      *DynamicSection
	Dynsym       *DynsymSection
	Dynstr       *DynstrSection
	RelaDyn      *RelaDynSection
	RelaPlt      *RelaPltSection
	Plt          *PltSection
	GotPlt       *GotPltSection
	Interp       *InterpSection
	GnuHash      *GnuHashSection
	BuildIDChunk *BuildIDSection
	CopyRel      *CopyRelSection

	Buf []byte

	FilePriority int64
	Visited      utils.MapSet[string]

	Objs []*ObjectFile
	Dsos []*SharedFile

	InternalObj   *ObjectFile
	InternalEsyms []Sym

	Chunks []Chunker

	MergedSections []*MergedSection
	OutputSections []*OutputSection

	DefaultVersion  uint16
	VersionPatterns []versionPattern

	TpAddr     uint64
	NeedsTlsLd bool

	Thunks []*Thunk

	__InitArrayStart    *Symbol
	__InitArrayEnd      *Symbol
	__FiniArrayStart    *Symbol
	__FiniArrayEnd      *Symbol
	__PreinitArrayStart *Symbol
	__PreinitArrayEnd   *Symbol
	__GlobalPointer     *Symbol
}

type versionPattern struct {
	Pattern string
	Version string
	Local   bool
}

func NewContext() *Context {
	bag := diag.NewBag(slog.Default())
	bag.Install()
	ctx := &Context{
		Arg: ContextArg{
			Output:        "a.out",
			BuildID:       "fast",
			NumWorkers:    runtime.NumCPU(),
			Defsyms:       make(map[string]string),
			CompressDebug: "none",
		},
		Diag:           bag,
		Log:            slog.Default(),
		SymbolMap:      utils.NewShardedMap[*Symbol](runtime.NumCPU() * 4),
		Visited:        utils.NewMapSet[string](),
		FilePriority:   10000,
		DefaultVersion: VER_NDX_GLOBAL,
	}
	return ctx
}
