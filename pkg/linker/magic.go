package linker

import "bytes"

var elfMagic = []byte("\177ELF")

func CheckMagic(contents []byte) bool {
	return bytes.HasPrefix(contents, elfMagic)
}

func WriteMagic(dst []byte) {
	copy(dst, elfMagic)
}
