package ggmlmodel

import (
	"encoding/binary"
	"io"
	"math"
)

// reader wraps an io.Reader with little-endian decoding of scalars and
// float32 slices. The on-disk format is always little-endian; the explicit
// little-endian reads give the same values on any host, so nothing is
// byte-swapped.
type reader struct {
	r         io.Reader
	bigEndian bool
	scratch   [4]byte
}

func newReader(r io.Reader, bigEndianHost bool) *reader {
	return &reader{r: r, bigEndian: bigEndianHost}
}

func (rd *reader) readFull(buf []byte) error {
	_, err := io.ReadFull(rd.r, buf)
	if err != nil {
		return newErr(KindTruncatedStream, "readFull", err)
	}

	return nil
}

func (rd *reader) u32() (uint32, error) {
	if err := rd.readFull(rd.scratch[:4]); err != nil {
		return 0, err
	}

	return binary.LittleEndian.Uint32(rd.scratch[:4]), nil
}

// tryU32 reads a u32 at what the caller expects may be a clean record
// boundary. It returns ok=false (no error) on an immediate io.EOF with zero
// bytes consumed, distinguishing "stream ended here" from a truncated
// record.
func (rd *reader) tryU32() (v uint32, ok bool, err error) {
	n, rerr := io.ReadFull(rd.r, rd.scratch[:4])
	if rerr != nil {
		if rerr == io.EOF && n == 0 {
			return 0, false, nil
		}

		return 0, false, newErr(KindTruncatedStream, "tryU32", rerr)
	}

	return binary.LittleEndian.Uint32(rd.scratch[:4]), true, nil
}

func (rd *reader) i32() (int32, error) {
	v, err := rd.u32()
	return int32(v), err
}

func (rd *reader) f32() (float32, error) {
	v, err := rd.u32()
	if err != nil {
		return 0, err
	}

	return math.Float32frombits(v), nil
}

// bytes reads exactly n bytes verbatim (no scalar swapping — caller decides
// how to interpret the payload).
func (rd *reader) bytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	if err := rd.readFull(buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// string reads a u32-length-prefixed UTF-8 string.
func (rd *reader) string() (string, error) {
	n, err := rd.u32()
	if err != nil {
		return "", err
	}

	b, err := rd.bytes(int(n))
	if err != nil {
		return "", err
	}

	return string(b), nil
}

// f32Slice reads n little-endian float32 values; the explicit little-endian
// decode gives the same values on any host.
func (rd *reader) f32Slice(n int) ([]float32, error) {
	raw := make([]byte, n*4)
	if err := rd.readFull(raw); err != nil {
		return nil, err
	}

	out := make([]float32, n)
	for i := range out {
		off := i * 4
		u := binary.LittleEndian.Uint32(raw[off : off+4])
		out[i] = math.Float32frombits(u)
	}

	return out, nil
}

// swapPayload byte-swaps a raw tensor data block in place, treating it as an
// array of elemSize-byte scalars. The loader decodes F32 and F16 payloads
// with explicit little-endian reads, which are host-independent, so it does
// not call this for them; quantized block payloads are not decoded here.
func swapPayload(data []byte, elemSize int) {
	if elemSize <= 1 {
		return
	}

	for off := 0; off+elemSize <= len(data); off += elemSize {
		for i, j := off, off+elemSize-1; i < j; i, j = i+1, j-1 {
			data[i], data[j] = data[j], data[i]
		}
	}
}
