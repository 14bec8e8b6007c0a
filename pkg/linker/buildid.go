package linker

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/md5"
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

// BuildIDSection emits the PT_NOTE/.note.gnu.build-id note mold and GNU ld
// both generate by default: a content hash that lets debuggers and package
// managers correlate a binary with its separate debug info.
type BuildIDSection struct {
	Chunk
	Mode string
	hash []byte
}

const noteNameGNU = "GNU\x00"

func NewBuildIDSection(mode string) *BuildIDSection {
	b := &BuildIDSection{Chunk: NewChunk(), Mode: mode}
	b.Name = ".note.gnu.build-id"
	b.Shdr.Type = uint32(elf.SHT_NOTE)
	b.Shdr.Flags = uint64(elf.SHF_ALLOC)
	b.Shdr.AddrAlign = 4
	return b
}

func (b *BuildIDSection) hashSize() int {
	switch b.Mode {
	case "md5", "uuid":
		return md5.Size
	case "sha1", "fast":
		return sha1.Size
	case "sha256":
		return sha256.Size
	default:
		return sha1.Size
	}
}

func (b *BuildIDSection) UpdateShdr(ctx *Context) {
	nameSize := utils.AlignTo(uint64(12+len(noteNameGNU)), 4)
	descSize := utils.AlignTo(uint64(b.hashSize()), 4)
	b.Shdr.Size = nameSize + descSize
}

// HashBuf is called once the output buffer's non-buildid bytes are final,
// to hash the whole image the way the "fast" build-id mode hashes
// everything except its own note (the note's hash bytes are zero when
// this runs, so they don't feed back into themselves).
func (b *BuildIDSection) HashBuf(ctx *Context) {
	switch b.Mode {
	case "md5", "uuid":
		sum := md5.Sum(ctx.Buf)
		b.hash = sum[:]
	case "sha256":
		sum := sha256.Sum256(ctx.Buf)
		b.hash = sum[:]
	default: // "fast", "sha1"
		sum := sha1.Sum(ctx.Buf)
		b.hash = sum[:]
	}
}

func (b *BuildIDSection) CopyBuf(ctx *Context) {
	buf := ctx.Buf[b.Shdr.Offset:]
	nhdr := Nhdr{
		NameSize: uint32(len(noteNameGNU)),
		DescSize: uint32(b.hashSize()),
		Type:     uint32(3), // NT_GNU_BUILD_ID
	}
	utils.Write[Nhdr](buf, nhdr)
	copy(buf[12:], noteNameGNU)
	descOff := 12 + utils.AlignTo(uint64(len(noteNameGNU)), 4)
	if len(b.hash) == b.hashSize() {
		copy(buf[descOff:], b.hash)
	}
}
