package whisper

import (
	"testing"

	"github.com/example/whispergo/internal/mel"
)

func TestSliceMelWindow_WithinBounds(t *testing.T) {
	spec := &mel.Spectrogram{
		NMel:         2,
		NLenTotal:    5,
		NLenOriginal: 5,
		Data: []float32{
			0, 1, 2, 3, 4,
			10, 11, 12, 13, 14,
		},
	}

	out, err := sliceMelWindow(spec, 1, 3)
	if err != nil {
		t.Fatalf("sliceMelWindow: %v", err)
	}

	data := out.RawData()
	want := []float32{1, 2, 3, 11, 12, 13}
	for i, v := range want {
		if data[i] != v {
			t.Errorf("data[%d] = %v; want %v", i, data[i], v)
		}
	}
}

func TestSliceMelWindow_PastEndZeroFills(t *testing.T) {
	spec := &mel.Spectrogram{
		NMel:         1,
		NLenTotal:    3,
		NLenOriginal: 3,
		Data:         []float32{1, 2, 3},
	}

	out, err := sliceMelWindow(spec, 2, 4)
	if err != nil {
		t.Fatalf("sliceMelWindow: %v", err)
	}

	data := out.RawData()
	want := []float32{3, 0, 0, 0}
	for i, v := range want {
		if data[i] != v {
			t.Errorf("data[%d] = %v; want %v", i, data[i], v)
		}
	}
}

func TestSliceMelWindow_OffsetEntirelyPastEnd(t *testing.T) {
	spec := &mel.Spectrogram{
		NMel:         1,
		NLenTotal:    3,
		NLenOriginal: 3,
		Data:         []float32{1, 2, 3},
	}

	out, err := sliceMelWindow(spec, 10, 2)
	if err != nil {
		t.Fatalf("sliceMelWindow: %v", err)
	}

	data := out.RawData()
	for i, v := range data {
		if v != 0 {
			t.Errorf("data[%d] = %v; want 0 (all past end)", i, v)
		}
	}
}

func TestSliceMelWindow_NegativeOffsetErrors(t *testing.T) {
	spec := &mel.Spectrogram{NMel: 1, NLenTotal: 3, NLenOriginal: 3, Data: []float32{1, 2, 3}}

	if _, err := sliceMelWindow(spec, -1, 2); err == nil {
		t.Error("expected error for negative offset")
	}
}
