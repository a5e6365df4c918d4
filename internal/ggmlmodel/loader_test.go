package ggmlmodel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// tinyHparams returns the smallest coherent hyperparameter set (1 encoder
// layer, 1 decoder layer, English-only vocab) used across these tests.
func tinyHparams() Hyperparameters {
	return Hyperparameters{
		VocabSize:  51864,
		AudioCtx:   4,
		AudioState: 8,
		AudioHead:  2,
		AudioLayer: 1,
		TextCtx:    4,
		TextState:  8,
		TextHead:   2,
		TextLayer:  1,
		Mels:       2,
		FType:      0,
	}
}

type builder struct {
	buf bytes.Buffer
}

func (b *builder) u32(v uint32) *builder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])

	return b
}

func (b *builder) i32(v int32) *builder { return b.u32(uint32(v)) }

func (b *builder) f32(v float32) *builder {
	return b.u32(math.Float32bits(v))
}

func (b *builder) str(s string) *builder {
	b.u32(uint32(len(s)))
	b.buf.WriteString(s)

	return b
}

func (b *builder) bytesRaw(p []byte) *builder {
	b.buf.Write(p)
	return b
}

func buildModelStream(t *testing.T, h Hyperparameters, vocabWords []string, tensors map[string][]int64) []byte {
	t.Helper()

	b := &builder{}
	b.u32(Magic)

	fields := []int32{
		h.VocabSize, h.AudioCtx, h.AudioState, h.AudioHead, h.AudioLayer,
		h.TextCtx, h.TextState, h.TextHead, h.TextLayer, h.Mels, h.FType,
	}
	for _, f := range fields {
		b.i32(f)
	}

	nFFT := int32(4)
	b.i32(h.Mels).i32(nFFT)

	for i := int32(0); i < h.Mels*nFFT; i++ {
		b.f32(float32(i) * 0.1)
	}

	b.i32(int32(len(vocabWords)))
	for _, w := range vocabWords {
		b.str(w)
	}

	registry := buildRegistry(&h)
	for name, shape := range tensors {
		spec, ok := registry[name]
		if !ok {
			t.Fatalf("test registered unknown tensor name %q", name)
		}

		if !equalShape(shape, spec.shape) {
			t.Fatalf("test tensor %q shape %v does not match registry %v", name, shape, spec.shape)
		}

		b.i32(int32(len(shape)))
		b.i32(int32(len(name)))
		b.i32(int32(DTypeF32))

		for _, s := range shape {
			b.i32(int32(s))
		}

		b.bytesRaw([]byte(name))

		n := int64(1)
		for _, s := range shape {
			n *= s
		}

		for i := int64(0); i < n; i++ {
			b.f32(float32(i))
		}
	}

	return b.buf.Bytes()
}

func allTensorNames(h Hyperparameters) map[string][]int64 {
	reg := buildRegistry(&h)
	out := make(map[string][]int64, len(reg))

	for name, spec := range reg {
		out[name] = spec.shape
	}

	return out
}

func TestLoadRoundTrip(t *testing.T) {
	h := tinyHparams()
	stream := buildModelStream(t, h, []string{"hello", "world"}, allTensorNames(h))

	m, err := Load(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if m.Hparams.VocabSize != h.VocabSize {
		t.Errorf("vocab size = %d, want %d", m.Hparams.VocabSize, h.VocabSize)
	}

	if m.Hparams.Size != SizeUnknown {
		t.Errorf("size class = %v, want unknown for 1-layer test model", m.Hparams.Size)
	}

	if !m.Tensors.Has("encoder.conv1.weight") {
		t.Error("expected encoder.conv1.weight to be loaded")
	}

	if got := len(m.Filterbank); got != int(h.Mels)*4 {
		t.Errorf("filterbank len = %d, want %d", got, int(h.Mels)*4)
	}
}

func TestLoadInvalidMagic(t *testing.T) {
	b := &builder{}
	b.u32(0xdeadbeef)

	_, err := Load(bytes.NewReader(b.buf.Bytes()))

	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != KindInvalidMagic {
		t.Fatalf("expected KindInvalidMagic, got %v", err)
	}
}

func TestLoadUnknownTensorName(t *testing.T) {
	h := tinyHparams()
	stream := buildModelStream(t, h, nil, map[string][]int64{"encoder.conv1.weight": {8, 2, 3}})

	b := bytes.NewBuffer(stream)
	// Append a bogus record naming an unregistered tensor.
	bad := &builder{}
	bad.i32(1).i32(int32(len("bogus.tensor"))).i32(int32(DTypeF32)).i32(1).bytesRaw([]byte("bogus.tensor")).f32(0)
	b.Write(bad.buf.Bytes())

	_, err := Load(b)

	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != KindUnknownTensorName {
		t.Fatalf("expected KindUnknownTensorName, got %v", err)
	}
}

func TestLoadTruncatedStream(t *testing.T) {
	h := tinyHparams()
	full := buildModelStream(t, h, []string{"a"}, allTensorNames(h))
	truncated := full[:len(full)-3]

	_, err := Load(bytes.NewReader(truncated))

	var gerr *Error
	if !errors.As(err, &gerr) || gerr.Kind != KindTruncatedStream {
		t.Fatalf("expected KindTruncatedStream, got %v", err)
	}
}

func TestVocabMultilingualReservedShift(t *testing.T) {
	mono := &Vocab{NVocab: 51864, Multilingual: false}
	mono.assignReserved()

	multi := &Vocab{NVocab: 51865, Multilingual: true}
	multi.assignReserved()

	if multi.TokenEOT-mono.TokenEOT != 1 {
		t.Errorf("expected multilingual eot to shift by 1, got delta %d", multi.TokenEOT-mono.TokenEOT)
	}

	if multi.TokenTranslate <= multi.TokenSOT {
		t.Errorf("translate token must come after sot+langs, got sot=%d translate=%d", multi.TokenSOT, multi.TokenTranslate)
	}
}
