package ggmlmodel

import "unsafe"

// hostIsBigEndian reports whether the running process is big-endian. The
// on-disk model format is always little-endian; scalar reads already go
// through encoding/binary, and F32/F16 tensor payloads are decoded with
// explicit little-endian reads, so neither needs host-dependent handling.
func hostIsBigEndian() bool {
	var x uint16 = 1
	b := (*[2]byte)(unsafe.Pointer(&x))

	return b[0] == 0
}
