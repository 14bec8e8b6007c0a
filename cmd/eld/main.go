package main

import (
	"debug/elf"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/emberlink/eld/pkg/linker"
	"github.com/emberlink/eld/pkg/utils"
)

var version string

func main() {
	ctx := linker.NewContext()
	remaining := parseArgs(ctx)

	if len(remaining) == 0 {
		utils.Fatal("no input files")
	}

	if ctx.Target == nil {
		for _, filename := range remaining {
			if strings.HasPrefix(filename, "-l") {
				continue
			}
			file := linker.MustNewFile(filename)
			if m, ok := linker.GetMachineFromContents(file.Contents); ok {
				ctx.Target = linker.MustLookupTarget(m)
				break
			}
		}
	}
	if ctx.Target == nil {
		utils.Fatal("unknown emulation; pass -m or an ELF input eld can identify")
	}

	ctx.Log.Info("starting link", "target", ctx.Target.Name(), "output", ctx.Arg.Output)

	linker.LoadVersionScript(ctx)

	linker.ReadInputFiles(ctx, remaining)
	linker.CreateInternalFile(ctx)
	linker.ResolveSymbols(ctx)
	linker.CheckMultipleDefinitions(ctx)
	linker.ApplyVersionScript(ctx)
	linker.RegisterSectionPieces(ctx)
	linker.ComputeImportExport(ctx)
	linker.GcSections(ctx)
	linker.Icf(ctx)
	linker.ComputeMergedSectionSizes(ctx)
	linker.CreateSyntheticSections(ctx)
	linker.BinSections(ctx)
	ctx.Chunks = append(ctx.Chunks, linker.CollectOutputSections(ctx)...)
	linker.AddSyntheticSymbols(ctx)
	linker.ClaimUnresolvedSymbols(ctx)
	linker.ScanRels(ctx)
	linker.ComputeSectionSizes(ctx)
	linker.SortOutputSections(ctx)

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}

	ctx.Chunks = utils.RemoveIf[linker.Chunker](ctx.Chunks, func(chunk linker.Chunker) bool {
		return chunk.Kind() != linker.ChunkKindOutputSection && chunk.GetShdr().Size == 0
	})

	shndx := int64(1)
	for i := 0; i < len(ctx.Chunks); i++ {
		if ctx.Chunks[i].Kind() != linker.ChunkKindHeader {
			ctx.Chunks[i].SetShndx(shndx)
			shndx++
		}
	}

	for _, chunk := range ctx.Chunks {
		chunk.UpdateShdr(ctx)
	}

	linker.SetOsecOffsets(ctx)
	fileSize := linker.ResizeSections(ctx)
	linker.FixSyntheticSymbols(ctx)
	linker.FixCopyRelSymbols(ctx)

	w := linker.OpenWriter(ctx, fileSize)

	if err := linker.CopyChunksParallel(ctx); err != nil {
		utils.Fatal(err.Error())
	}

	if ctx.BuildIDChunk != nil {
		ctx.BuildIDChunk.HashBuf(ctx)
		ctx.BuildIDChunk.CopyBuf(ctx)
	}

	if err := w.Close(); err != nil {
		utils.Fatal(err.Error())
	}

	ctx.Diag.Flush()
}

func parseArgs(ctx *linker.Context) []string {
	flags := pflag.NewFlagSet("eld", pflag.ExitOnError)
	flags.SortFlags = false
	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] file...\n", os.Args[0])
		flags.PrintDefaults()
	}

	output := flags.StringP("output", "o", "a.out", "output file path")
	emulation := flags.StringP("m", "m", "", "target emulation (elf64lriscv, elf_x86_64)")
	entry := flags.String("entry", "", "entry point symbol")
	soname := flags.String("soname", "", "DT_SONAME for a shared object")
	shared := flags.Bool("shared", false, "build a shared object (ET_DYN)")
	pie := flags.Bool("pie", false, "build a position-independent executable")
	relocatable := flags.BoolP("relocatable", "r", false, "merge inputs into a relocatable output (ET_REL)")
	static := flags.Bool("static", false, "disallow linking against shared objects")
	gcSections := flags.Bool("gc-sections", false, "remove unreferenced input sections")
	icf := flags.String("icf", "none", "identical code folding mode: none, all, safe")
	buildID := flags.String("build-id", "fast", "build-id note style: none, fast, sha1, sha256, md5, uuid")
	versionScript := flags.String("version-script", "", "path to a version script")
	fatalWarnings := flags.Bool("fatal-warnings", false, "treat warnings as errors")
	printMap := flags.Bool("print-map", false, "accepted for command-line compatibility; no link map is printed")
	allowMultiDef := flags.Bool("allow-multiple-definition", false, "do not error on multiply-defined symbols")
	compressDebug := flags.String("compress-debug-sections", "none", "accepted for command-line compatibility; output sections are written uncompressed")
	libraryPaths := flags.StringArrayP("library-path", "L", nil, "add a library search directory")
	libs := flags.StringArrayP("library", "l", nil, "link against libNAME")
	defsyms := flags.StringArray("defsym", nil, "name=value, checked for its form; no symbol is defined from it")
	wraps := flags.StringArray("wrap", nil, "accepted for command-line compatibility; no call is redirected")
	sysroot := flags.String("sysroot", "", "ignored, accepted for command-line compatibility")
	hashStyle := flags.String("hash-style", "gnu", "ignored, accepted for command-line compatibility")
	asNeeded := flags.Bool("as-needed", false, "ignored, accepted for command-line compatibility")
	wholeArchive := flags.Bool("whole-archive", false, "ignored, accepted for command-line compatibility; archive members are still pulled in only when referenced")
	startGroup := flags.Bool("start-group", false, "ignored, accepted for command-line compatibility; every archive is already searched until no new member is pulled in")
	endGroup := flags.Bool("end-group", false, "ignored, accepted for command-line compatibility")
	showVersion := flags.BoolP("version", "v", false, "print version and exit")

	_ = sysroot
	_ = hashStyle
	_ = asNeeded
	_ = wholeArchive
	_ = startGroup
	_ = endGroup

	utils.MustNo(flags.Parse(os.Args[1:]))

	if *showVersion {
		fmt.Printf("eld %s\n", version)
		os.Exit(0)
	}

	ctx.Arg.Output = *output
	ctx.Arg.Entry = *entry
	ctx.Arg.SonameOpt = *soname
	ctx.Arg.Shared = *shared
	ctx.Arg.Pie = *pie
	ctx.Arg.Static = *static
	ctx.Arg.GcSections = *gcSections
	ctx.Arg.BuildID = *buildID
	ctx.Arg.VersionScript = *versionScript
	ctx.Arg.FatalWarnings = *fatalWarnings
	ctx.Arg.PrintMap = *printMap
	ctx.Arg.AllowMultipleDefinition = *allowMultiDef
	ctx.Arg.CompressDebug = *compressDebug
	ctx.Arg.Wraps = *wraps
	ctx.Diag.SetFatalWarnings(*fatalWarnings)

	switch *icf {
	case "all":
		ctx.Arg.ICFMode = linker.ICFAll
	case "safe":
		ctx.Arg.ICFMode = linker.ICFSafe
	default:
		ctx.Arg.ICFMode = linker.ICFNone
	}

	switch {
	case *relocatable:
		ctx.Arg.OutputType = linker.OutputRel
	case *shared:
		ctx.Arg.OutputType = linker.OutputDyn
	default:
		ctx.Arg.OutputType = linker.OutputExec
	}

	for _, dir := range *libraryPaths {
		ctx.Arg.LibraryPaths = append(ctx.Arg.LibraryPaths, filepath.Clean(dir))
	}

	for _, kv := range *defsyms {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			utils.Fatal("--defsym: expected name=value, got " + kv)
		}
		ctx.Arg.Defsyms[name] = value
	}

	switch *emulation {
	case "", "elf64lriscv":
		// auto-detect or riscv64 below
	case "elf_x86_64", "elf64-x86-64":
		ctx.Target = linker.MustLookupTarget(elf.EM_X86_64)
	default:
		utils.Fatal("unknown -m argument: " + *emulation)
	}
	if *emulation == "elf64lriscv" {
		ctx.Target = linker.MustLookupTarget(elf.EM_RISCV)
	}

	remaining := make([]string, 0, flags.NArg()+len(*libs))
	for _, l := range *libs {
		remaining = append(remaining, "-l"+l)
	}
	remaining = append(remaining, flags.Args()...)
	return remaining
}
