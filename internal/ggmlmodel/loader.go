// Package ggmlmodel loads the custom binary Whisper model format: a
// magic-prefixed header, eleven hyperparameters, a mel filterbank, a
// length-prefixed vocabulary, and a stream of named tensor records.
package ggmlmodel

import (
	"fmt"
	"io"
	"math"

	"github.com/example/whispergo/internal/runtime/tensor"
)

// Model is the fully materialized result of Load: hyperparameters,
// filterbank, vocabulary, and a resolver over every loaded tensor.
type Model struct {
	Hparams        Hyperparameters
	Filterbank     []float32 // row-major [n_mel, FilterbankCols]
	FilterbankCols int
	Vocab          *Vocab
	Tensors        *TensorMap
}

// Load parses r as a complete model stream. Any error returned is of type
// *Error with a Kind from the §4.1 failure taxonomy; no partial Model is
// retained by the caller on failure.
func Load(r io.Reader) (*Model, error) {
	rd := newReader(r, hostIsBigEndian())

	magic, err := rd.u32()
	if err != nil {
		return nil, err
	}

	if magic != Magic {
		return nil, newErr(KindInvalidMagic, "Load", fmt.Errorf("got 0x%x", magic))
	}

	h, err := readHparams(rd)
	if err != nil {
		return nil, err
	}

	nMel, nFFT, filterbank, err := readFilterbank(rd)
	if err != nil {
		return nil, err
	}

	if nMel != h.Mels {
		return nil, newErr(KindTensorShapeMismatch, "Load", fmt.Errorf("filterbank n_mel %d != hparams n_mels %d", nMel, h.Mels))
	}

	vocab, err := readVocabSection(rd, h.VocabSize)
	if err != nil {
		return nil, err
	}

	registry := buildRegistry(&h)

	tmap, err := readTensors(rd, registry)
	if err != nil {
		return nil, err
	}

	return &Model{
		Hparams:        h,
		Filterbank:     filterbank,
		FilterbankCols: int(nFFT),
		Vocab:          vocab,
		Tensors:        tmap,
	}, nil
}

func readHparams(rd *reader) (Hyperparameters, error) {
	var h Hyperparameters

	fields := []*int32{
		&h.VocabSize, &h.AudioCtx, &h.AudioState, &h.AudioHead, &h.AudioLayer,
		&h.TextCtx, &h.TextState, &h.TextHead, &h.TextLayer, &h.Mels, &h.FType,
	}

	for _, f := range fields {
		v, err := rd.i32()
		if err != nil {
			return h, err
		}

		*f = v
	}

	if err := h.derive(); err != nil {
		return h, err
	}

	return h, nil
}

func readFilterbank(rd *reader) (nMel, nFFT int32, data []float32, err error) {
	nMel, err = rd.i32()
	if err != nil {
		return 0, 0, nil, err
	}

	nFFT, err = rd.i32()
	if err != nil {
		return 0, 0, nil, err
	}

	n := int(nMel) * int(nFFT)

	data, err = rd.f32Slice(n)
	if err != nil {
		return 0, 0, nil, err
	}

	return nMel, nFFT, data, nil
}

// readVocabSection reads the on-disk vocab count and entries, then builds
// the full Vocab (including any synthesized ids up to nVocabHparam).
func readVocabSection(rd *reader, nVocabHparam int32) (*Vocab, error) {
	nOnDisk, err := rd.i32()
	if err != nil {
		return nil, err
	}

	return loadVocab(rd, nOnDisk, nVocabHparam)
}

// readTensors reads records until EOF, validating each against registry and
// populating a TensorMap. A record naming a tensor absent from registry is
// KindUnknownTensorName; a shape or byte-size mismatch is reported with the
// matching Kind.
func readTensors(rd *reader, registry map[string]tensorSpec) (*TensorMap, error) {
	tmap := newTensorMap()

	for {
		nDimsU, hasRecord, err := rd.tryU32()
		if err != nil {
			return nil, err
		}

		if !hasRecord {
			break
		}

		nDims := int32(nDimsU)

		nameLen, err := rd.i32()
		if err != nil {
			return nil, err
		}

		typ, err := rd.i32()
		if err != nil {
			return nil, err
		}

		shape := make([]int64, nDims)
		for i := range shape {
			v, err := rd.i32()
			if err != nil {
				return nil, err
			}

			shape[i] = int64(v)
		}

		nameBytes, err := rd.bytes(int(nameLen))
		if err != nil {
			return nil, err
		}

		name := string(nameBytes)

		spec, ok := registry[name]
		if !ok {
			return nil, newErr(KindUnknownTensorName, "readTensors", fmt.Errorf("%q", name))
		}

		if !equalShape(shape, spec.shape) {
			return nil, newErr(KindTensorShapeMismatch, "readTensors", fmt.Errorf("%q: got %v want %v", name, shape, spec.shape))
		}

		dt := DType(typ)

		t, err := readTensorData(rd, name, shape, dt)
		if err != nil {
			return nil, err
		}

		tmap.set(name, t, dt)
	}

	return tmap, nil
}

func readTensorData(rd *reader, name string, shape []int64, dt DType) (*tensor.Tensor, error) {
	n := shapeElemCount(shape)

	byteSize, err := dt.byteSize(n)
	if err != nil {
		return nil, err
	}

	switch dt {
	case DTypeF32:
		data, err := rd.f32Slice(int(n))
		if err != nil {
			return nil, err
		}

		return tensor.New(data, shape)

	case DTypeF16:
		raw, err := rd.bytes(int(byteSize))
		if err != nil {
			return nil, err
		}

		data := make([]float32, n)
		for i := range data {
			u := uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
			data[i] = float16ToFloat32(u)
		}

		return tensor.New(data, shape)

	default:
		// Quantized block formats are opaque: only the loader's size
		// validation applies here; dequantization is delegated to the
		// tensor compute shim, which this runtime does not implement.
		if _, err := rd.bytes(int(byteSize)); err != nil {
			return nil, err
		}

		return nil, newErr(KindUnknownQuantType, "readTensorData", fmt.Errorf("tensor %q: quant type %v not supported by this runtime", name, dt))
	}
}

func shapeElemCount(shape []int64) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= s
	}

	return n
}

// float16ToFloat32 converts an IEEE754 binary16 bit pattern to float32.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h>>15) & 0x1
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	var f uint32

	switch {
	case exp == 0 && frac == 0:
		f = sign << 31
	case exp == 0x1f:
		f = sign<<31 | 0xff<<23 | frac<<13
	case exp == 0:
		// Subnormal half → normalize into float32.
		e := -14
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}

		frac &= 0x3ff
		f = sign<<31 | uint32(e+127)<<23 | frac<<13
	default:
		f = sign<<31 | (exp-15+127)<<23 | frac<<13
	}

	return math.Float32frombits(f)
}
