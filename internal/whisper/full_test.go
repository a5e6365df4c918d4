package whisper

import "testing"

func TestFull_EmptySamplesReturnsImmediately(t *testing.T) {
	state := &State{segments: []Segment{{Text: "stale"}}}

	code, err := Full(nil, state, Params{}, nil)
	if err != nil {
		t.Fatalf("Full(empty samples): %v", err)
	}
	if code != 0 {
		t.Errorf("code = %d; want 0", code)
	}
	if state.segments != nil {
		t.Errorf("segments = %v; want nil after empty-input reset", state.segments)
	}
}
