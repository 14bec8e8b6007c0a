package linker

import (
	"crypto/sha256"
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// Icf implements identical code folding: .text sections with the same
// byte contents and the same relocation shape (same offsets/types/addends,
// referencing symbols that are themselves foldable to each other) are
// merged into one, and every symbol pointing at a folded duplicate is
// redirected to its surviving representative.
//
// Classes come from partition refinement: every round re-hashes a
// section's current class together with each relocation's offset, type,
// addend and target. A target inside a candidate section contributes that
// section's current class and the symbol's offset; any other target
// contributes the symbol's own identity. Rounds repeat until the number of
// classes stops growing, so two sections share a class only when no round
// can tell them apart.
func Icf(ctx *Context) {
	if ctx.Arg.ICFMode == ICFNone {
		return
	}

	var cands []*InputSection
	for _, file := range ctx.Objs {
		for _, isec := range file.Sections {
			if isec == nil || !isec.IsAlive {
				continue
			}
			shdr := isec.Shdr()
			if shdr.Flags&uint64(elf.SHF_ALLOC) == 0 || shdr.Flags&uint64(elf.SHF_EXECINSTR) == 0 {
				continue
			}
			if shdr.Flags&uint64(elf.SHF_WRITE) != 0 {
				continue
			}
			if ctx.Arg.ICFMode == ICFSafe && hasAddressTakenSymbol(isec) {
				continue
			}
			cands = append(cands, isec)
		}
	}
	if len(cands) < 2 {
		return
	}

	class := make(map[*InputSection]uint64, len(cands))
	for _, isec := range cands {
		class[isec] = icfInitialDigest(isec)
	}

	prev := 0
	for {
		next := make(map[*InputSection]uint64, len(cands))
		seen := make(map[uint64]bool, len(cands))
		for _, isec := range cands {
			h := sha256.New()
			var buf [8]byte
			binary.LittleEndian.PutUint64(buf[:], class[isec])
			h.Write(buf[:])
			for _, rel := range isec.GetRels() {
				sym := isec.File.Symbols[rel.Sym]
				binary.LittleEndian.PutUint64(buf[:], rel.Offset)
				h.Write(buf[:])
				binary.LittleEndian.PutUint32(buf[:4], rel.Type)
				h.Write(buf[:4])
				binary.LittleEndian.PutUint64(buf[:], uint64(rel.Addend))
				h.Write(buf[:])
				if sym != nil && sym.InputSection != nil {
					if c, ok := class[sym.InputSection]; ok {
						binary.LittleEndian.PutUint64(buf[:], c)
						h.Write(buf[:])
						binary.LittleEndian.PutUint64(buf[:], sym.Value)
						h.Write(buf[:])
						continue
					}
				}
				fmt.Fprintf(h, "%p", sym)
			}
			sum := h.Sum(nil)
			v := binary.LittleEndian.Uint64(sum)
			seen[v] = true
			next[isec] = v
		}
		class = next
		if len(seen) == prev {
			break
		}
		prev = len(seen)
	}

	buckets := make(map[uint64][]*InputSection)
	for _, isec := range cands {
		buckets[class[isec]] = append(buckets[class[isec]], isec)
	}

	for _, group := range buckets {
		if len(group) < 2 {
			continue
		}
		leader := group[0]
		for _, dup := range group[1:] {
			dup.IsAlive = false
			redirectToLeader(ctx, dup, leader)
		}
	}
}

func hasAddressTakenSymbol(isec *InputSection) bool {
	for _, sym := range isec.File.Symbols {
		if sym != nil && sym.InputSection == isec && sym.IsExported {
			return true
		}
	}
	return false
}

func icfInitialDigest(isec *InputSection) uint64 {
	h := sha256.Sum256(isec.Contents)
	return binary.LittleEndian.Uint64(h[:8])
}

func redirectToLeader(ctx *Context, dup, leader *InputSection) {
	for _, file := range ctx.Objs {
		for _, sym := range file.Symbols {
			if sym.InputSection == dup {
				sym.InputSection = leader
			}
		}
	}
}
