package linker

import (
	"github.com/emberlink/eld/pkg/utils"
	"os"
)

type File struct {
	Name     string
	Contents []byte

	Parent *File
}

func MustNewFile(filename string) *File {
	contents, err := os.ReadFile(filename)
	utils.MustNo(err)
	return &File{
		Name:     filename,
		Contents: contents,
	}
}

func OpenLibrary(ctx *Context, path string) *File {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	file := &File{Name: path, Contents: contents}
	if m, ok := GetMachineFromContents(file.Contents); ok && m != ctx.Target.Machine() {
		utils.Fatal("incompatible file: " + path)
	}
	return file
}

func FindLibrary(ctx *Context, name string) *File {
	for _, dir := range ctx.Arg.LibraryPaths {
		stem := dir + "/lib" + name
		if f := OpenLibrary(ctx, stem+".a"); f != nil {
			return f
		}
		if f := OpenLibrary(ctx, stem+".so"); f != nil && !ctx.Arg.Static {
			return f
		}
	}

	utils.Fatal("library not found: " + name)
	return nil
}
