package linker

import (
	"debug/elf"

	"github.com/emberlink/eld/pkg/utils"
)

// GnuHashSection implements .gnu.hash, the GNU-extension symbol hash table
// (bloom filter + bucket/chain) that modern loaders use instead of the
// legacy SysV .hash to skip most dynsym string compares during lookup.
type GnuHashSection struct {
	Chunk
	numBuckets int64
	symOffset  int64 // dynsym index of the first symbol covered by the table
	bloomShift int64
	bloomSize  int64
}

func NewGnuHashSection() *GnuHashSection {
	g := &GnuHashSection{Chunk: NewChunk(), numBuckets: 1, bloomSize: 1, bloomShift: 26}
	g.Name = ".gnu.hash"
	g.Shdr.Type = uint32(elf.SHT_GNU_HASH)
	g.Shdr.Flags = uint64(elf.SHF_ALLOC)
	g.Shdr.AddrAlign = 8
	return g
}

func gnuHash(name string) uint32 {
	h := uint32(5381)
	for i := 0; i < len(name); i++ {
		h = h*33 + uint32(name[i])
	}
	return h
}

func (g *GnuHashSection) UpdateShdr(ctx *Context) {
	if ctx.Dynsym == nil {
		return
	}
	g.symOffset = 1 // dynsym[0] is the null symbol, never hashed

	n := int64(len(ctx.Dynsym.Syms))
	g.numBuckets = utils.Max(int64(1), n)
	g.bloomSize = 1
	g.bloomShift = 26

	g.Shdr.Size = uint64(16 + g.bloomSize*8 + g.numBuckets*4 + n*4)
	g.Shdr.Link = uint32(ctx.Dynsym.Shndx)
}

func (g *GnuHashSection) CopyBuf(ctx *Context) {
	if ctx.Dynsym == nil {
		return
	}
	buf := ctx.Buf[g.Shdr.Offset:]
	syms := ctx.Dynsym.Syms
	n := int64(len(syms))

	utils.Write[uint32](buf[0:], uint32(g.numBuckets))
	utils.Write[uint32](buf[4:], uint32(g.symOffset))
	utils.Write[uint32](buf[8:], uint32(g.bloomSize))
	utils.Write[uint32](buf[12:], uint32(g.bloomShift))

	bloom := buf[16 : 16+g.bloomSize*8]
	buckets := buf[16+g.bloomSize*8 : 16+g.bloomSize*8+g.numBuckets*4]
	chain := buf[16+g.bloomSize*8+g.numBuckets*4:]

	hashes := make([]uint32, n)
	for i, sym := range syms {
		hashes[i] = gnuHash(sym.Name)
	}

	for i := int64(0); i < n; i++ {
		h := hashes[i]
		word := (h / 64) % uint32(g.bloomSize)
		bit1 := uint64(1) << (h % 64)
		bit2 := uint64(1) << ((h >> uint(g.bloomShift)) % 64)
		cur := utils.Read[uint64](bloom[word*8:])
		utils.Write[uint64](bloom[word*8:], cur|bit1|bit2)
	}

	bucketOf := func(h uint32) int64 { return int64(h) % g.numBuckets }
	lastInBucket := make(map[int64]int64)
	for i := int64(0); i < n; i++ {
		lastInBucket[bucketOf(hashes[i])] = i
	}

	firstInBucket := make(map[int64]int64)
	for i := int64(0); i < n; i++ {
		b := bucketOf(hashes[i])
		if _, ok := firstInBucket[b]; !ok {
			firstInBucket[b] = i
			utils.Write[uint32](buckets[b*4:], uint32(i+g.symOffset))
		}
	}

	for i := int64(0); i < n; i++ {
		v := hashes[i] &^ 1
		if lastInBucket[bucketOf(hashes[i])] == i {
			v |= 1
		}
		utils.Write[uint32](chain[i*4:], v)
	}
}
