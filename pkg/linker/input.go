package linker

import (
	"github.com/emberlink/eld/internal/script"
	"github.com/emberlink/eld/pkg/utils"
)

func ReadInputFiles(ctx *Context, args []string) {
	for _, arg := range args {
		var ok bool
		if arg, ok = utils.RemovePrefix(arg, "-l"); ok {
			ReadFile(ctx, FindLibrary(ctx, arg))
		} else {
			ReadFile(ctx, MustNewFile(arg))
		}
	}

	if len(ctx.Objs) == 0 {
		utils.Fatal("no input files")
	}
}

func ReadFile(ctx *Context, file *File) {
	if ctx.Visited.Contains(file.Name) {
		return
	}

	ft := GetFileType(file.Contents)
	switch ft {
	case FileTypeObject:
		ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, file, ""))
	case FileTypeDso:
		CheckFileCompatibility(ctx, file)
		ctx.Dsos = append(ctx.Dsos, NewSharedFile(ctx, file))
	case FileTypeThinAr, FileTypeAr:
		for _, child := range ReadArchiveMembers(file) {
			switch GetFileType(child.Contents) {
			case FileTypeObject:
				ctx.Objs = append(ctx.Objs, CreateObjectFile(ctx, child, file.Name))
			default:
				utils.Fatal("unknown file type")
			}
		}
		ctx.Visited.Add(file.Name)
	case FileTypeText:
		ReadLinkerScript(ctx, file)
	default:
		utils.Fatal("unknown file type")
	}
}

// ReadLinkerScript parses a GNU-linker-script-formatted input (spec.md
// §6) and recursively reads every file it names via INPUT/GROUP, in the
// same left-to-right order the file itself lists them.
func ReadLinkerScript(ctx *Context, file *File) {
	s, err := script.Parse(string(file.Contents))
	if err != nil {
		utils.Fatal(err.Error())
	}

	if s.Entry != "" && ctx.Arg.Entry == "" {
		ctx.Arg.Entry = s.Entry
	}
	for _, dir := range s.SearchDirs {
		ctx.Arg.LibraryPaths = append(ctx.Arg.LibraryPaths, dir)
	}

	for _, ref := range s.Inputs {
		if lf, ok := utils.RemovePrefix(ref.Name, "-l"); ok {
			ReadFile(ctx, FindLibrary(ctx, lf))
			continue
		}
		if child := OpenLibrary(ctx, ref.Name); child != nil {
			ReadFile(ctx, child)
			continue
		}
		child := FindLibrary(ctx, ref.Name)
		if child == nil && !ref.AsNeeded {
			utils.Fatal("cannot find linker script input: " + ref.Name)
		}
		if child != nil {
			ReadFile(ctx, child)
		}
	}
}

func CreateObjectFile(ctx *Context, file *File, archiveName string) *ObjectFile {
	CheckFileCompatibility(ctx, file)

	inLib := len(archiveName) > 0
	obj := NewObjectFile(file, inLib)
	obj.Priority = uint32(ctx.FilePriority)
	ctx.FilePriority++

	obj.parse(ctx)
	return obj
}
