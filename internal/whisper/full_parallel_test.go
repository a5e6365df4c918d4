package whisper

import "testing"

func TestMergeParallelSegments_ShiftsAndConcatenatesInOrder(t *testing.T) {
	chunkStates := []*State{
		{segments: []Segment{{T0: 0, T1: 100, Text: "a"}, {T0: 100, T1: 200, Text: "b"}}},
		{segments: []Segment{{T0: 0, T1: 150, Text: "c"}}},
	}

	// Chunk 1 started samplesPerCentisecond*300 samples into the audio, i.e.
	// 300 centiseconds in.
	offsets := []int{0, samplesPerCentisecond * 300}

	got := mergeParallelSegments(chunkStates, offsets, 0)

	want := []struct {
		t0, t1 int64
		text   string
	}{
		{0, 100, "a"},
		{100, 200, "b"},
		{300, 450, "c"},
	}

	if len(got) != len(want) {
		t.Fatalf("len(merged) = %d; want %d", len(got), len(want))
	}

	for i, w := range want {
		if got[i].T0 != w.t0 || got[i].T1 != w.t1 || got[i].Text != w.text {
			t.Errorf("merged[%d] = %+v; want T0=%d T1=%d Text=%q", i, got[i], w.t0, w.t1, w.text)
		}
	}
}

func TestMergeParallelSegments_ClampsBackwardFirstSegment(t *testing.T) {
	chunkStates := []*State{
		{segments: []Segment{{T0: 0, T1: 500}}},
		// Chunk 1's first segment, after shifting, would start before
		// chunk 0's last t1 -- it must be clamped forward.
		{segments: []Segment{{T0: 0, T1: 50}, {T0: 50, T1: 100}}},
	}

	offsets := []int{0, samplesPerCentisecond * 100}

	got := mergeParallelSegments(chunkStates, offsets, 0)

	if got[1].T0 != 500 {
		t.Errorf("merged[1].T0 = %d; want clamped to 500", got[1].T0)
	}
	if got[1].T1 != 500 {
		t.Errorf("merged[1].T1 = %d; want 500 (t1 floored to the clamped t0)", got[1].T1)
	}
	// Only the first segment of a later chunk is clamped.
	if got[2].T0 != 150 {
		t.Errorf("merged[2].T0 = %d; want 150 (unclamped, shifted by 100cs)", got[2].T0)
	}
}

func TestMergeParallelSegments_AppliesBaseOffset(t *testing.T) {
	chunkStates := []*State{{segments: []Segment{{T0: 0, T1: 100}}}}

	got := mergeParallelSegments(chunkStates, []int{0}, 250)

	if got[0].T0 != 250 || got[0].T1 != 350 {
		t.Errorf("T0,T1 = %d,%d; want 250,350", got[0].T0, got[0].T1)
	}
}
