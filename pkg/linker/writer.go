package linker

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/emberlink/eld/pkg/utils"
)

// Writer commits the fully laid-out output image to disk. Instead of
// building the whole file in a Go-heap byte slice and writing it with a
// single Write syscall, it truncates the output file to its final size
// and mmaps it, so every chunk's CopyBuf can scatter its bytes directly
// into the page cache. This is the same style x/sys/unix low-level file
// plumbing uses in elfwriter.go, applied here to the output side rather
// than the reader side.
type Writer struct {
	file *os.File
	buf  []byte
}

// OpenWriter creates (or truncates) the output file at ctx.Arg.Output,
// sizes it to size bytes and maps it writable. ctx.Buf is pointed at the
// mapping so every Chunker.CopyBuf call writes straight into the mmap.
func OpenWriter(ctx *Context, size uint64) *Writer {
	file, err := os.OpenFile(ctx.Arg.Output, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0777)
	utils.MustNo(err)

	if size == 0 {
		// unix.Mmap rejects a zero-length mapping; nothing to map.
		ctx.Buf = nil
		return &Writer{file: file}
	}

	if err := file.Truncate(int64(size)); err != nil {
		utils.MustNo(err)
	}

	buf, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	utils.MustNo(err)

	ctx.Buf = buf
	return &Writer{file: file, buf: buf}
}

// Close flushes the mapping to disk, unmaps it and marks the output file
// executable the way a linker's output normally is.
func (w *Writer) Close() error {
	if w.buf != nil {
		if err := unix.Msync(w.buf, unix.MS_SYNC); err != nil {
			return err
		}
		if err := unix.Munmap(w.buf); err != nil {
			return err
		}
	}
	if err := w.file.Chmod(0777); err != nil {
		return err
	}
	return w.file.Close()
}
