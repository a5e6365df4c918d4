package whisper

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/example/whispergo/internal/audio"
)

// samplesPerCentisecond converts a raw PCM sample offset to the centisecond
// unit segments are timestamped in (10ms hop at the model's fixed 16kHz).
const samplesPerCentisecond = audio.ExpectedSampleRate / centisecondsPerSecond

// FullParallel splits samples into nProcessors non-overlapping chunks and
// runs Full over each on its own cloned State concurrently via errgroup,
// then merges the resulting segments back into state in chunk order.
//
// ctx (model weights and vocabulary) is shared read-only across the chunk
// workers; each chunk gets its own State since a State is single-writer and
// decoding is not safe for concurrent use. Chunk boundaries fall on sample
// offsets, not window boundaries; a chunk's segment timestamps are shifted
// by its offset, and a later chunk's first segment t0 is clamped against
// the previous chunk's last t1 so the merged output stays monotonically
// non-decreasing, matching a single-chunk run's ordering guarantee.
//
// Below two chunks, or when samples don't give each chunk at least a second
// of audio, FullParallel degrades to a plain Full call.
func FullParallel(ctx *Context, state *State, params Params, samples []float32, nProcessors int) (int, error) {
	if nProcessors < 2 || len(samples) < nProcessors*audio.ExpectedSampleRate {
		return Full(ctx, state, params, samples)
	}

	baseCs := int64(params.OffsetMs / 10)

	offsetSamples := params.OffsetMs * audio.ExpectedSampleRate / 1000
	if offsetSamples > len(samples) {
		offsetSamples = len(samples)
	}

	trimmed := samples[offsetSamples:]

	if params.DurationMs > 0 {
		if durSamples := params.DurationMs * audio.ExpectedSampleRate / 1000; durSamples < len(trimmed) {
			trimmed = trimmed[:durSamples]
		}
	}

	chunkLen := len(trimmed) / nProcessors

	offsets := make([]int, nProcessors)
	chunkStates := make([]*State, nProcessors)

	for i := 0; i < nProcessors; i++ {
		offsets[i] = i * chunkLen

		st, err := NewState(ctx)
		if err != nil {
			return 1, err
		}

		chunkStates[i] = st
	}

	chunkParams := params
	chunkParams.OffsetMs = 0
	chunkParams.DurationMs = 0

	eg, _ := errgroup.WithContext(context.Background())

	for i := 0; i < nProcessors; i++ {
		i := i

		eg.Go(func() error {
			start := offsets[i]

			end := len(trimmed)
			if i+1 < nProcessors {
				end = offsets[i+1]
			}

			_, err := Full(ctx, chunkStates[i], chunkParams, trimmed[start:end])

			return err
		})
	}

	if err := eg.Wait(); err != nil {
		return 1, err
	}

	state.segments = mergeParallelSegments(chunkStates, offsets, baseCs)
	state.lang = chunkStates[0].lang

	return 0, nil
}

// mergeParallelSegments concatenates each chunk's segments in chunk order,
// shifting timestamps by the chunk's sample offset (plus the caller's
// original OffsetMs) and clamping each chunk's first segment t0 against the
// previous chunk's last t1.
func mergeParallelSegments(chunkStates []*State, offsets []int, baseCs int64) []Segment {
	var merged []Segment

	prevT1 := baseCs

	for i, st := range chunkStates {
		shift := baseCs + int64(offsets[i]/samplesPerCentisecond)

		for j, seg := range st.Segments() {
			seg.T0 += shift
			seg.T1 += shift

			if i > 0 && j == 0 && seg.T0 < prevT1 {
				seg.T0 = prevT1

				if seg.T1 < seg.T0 {
					seg.T1 = seg.T0
				}
			}

			merged = append(merged, seg)
			prevT1 = seg.T1
		}
	}

	return merged
}
