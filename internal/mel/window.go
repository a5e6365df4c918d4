package mel

import "math"

// hannWindow returns a periodic (not symmetric) Hann window of length n,
// matching the STFT convention used by the reference Whisper front end.
func hannWindow(n int) []float32 {
	w := make([]float32, n)
	if n <= 1 {
		for i := range w {
			w[i] = 1
		}

		return w
	}

	for i := range w {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n))))
	}

	return w
}
