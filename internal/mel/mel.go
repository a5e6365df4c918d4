// Package mel converts 16 kHz mono PCM into a log-mel spectrogram using a
// Hann-windowed STFT followed by mel-filterbank projection, matching the
// front end the Whisper encoder expects.
package mel

import (
	"fmt"
	"math"
	"sync"
)

const (
	sampleRate   = 16000
	frameSize    = 400 // n_fft frame length in samples
	hopSize      = 160
	padSamples   = frameSize / 2 // 200
	silencePad   = 30 * sampleRate
)

// Spectrogram is a row-major [n_mel, n_len_total] log-mel matrix.
type Spectrogram struct {
	NMel          int
	NLenTotal     int
	NLenOriginal  int
	Data          []float32 // len == NMel * NLenTotal
}

// Filterbank is the mel filter matrix loaded from the model file: NMel rows
// of NFreqBins columns each, where NFreqBins == fftSize/2+1 for the FFT size
// this package uses internally.
type Filterbank struct {
	NMel      int
	NFreqBins int
	Data      []float32 // row-major [NMel, NFreqBins]
}

// Compute converts samples to a log-mel spectrogram, parallelizing frame
// computation across nThreads workers (each worker owns columns i where
// i mod nThreads == workerID, so there is no write overlap).
func Compute(samples []float32, fb Filterbank, nThreads int) (*Spectrogram, error) {
	if fb.NMel <= 0 || fb.NFreqBins <= 0 {
		return nil, fmt.Errorf("mel: invalid filterbank dimensions %dx%d", fb.NMel, fb.NFreqBins)
	}

	fftSize := nextPow2(frameSize)
	if fb.NFreqBins != fftSize/2+1 {
		return nil, fmt.Errorf("mel: filterbank expects %d frequency bins, fft size %d produces %d", fb.NFreqBins, fftSize, fftSize/2+1)
	}

	padded := padSignal(samples)

	nSamples := len(samples)
	nLenOriginal := 1 + (nSamples+padSamples-frameSize)/hopSize
	if nSamples+padSamples < frameSize {
		nLenOriginal = 0
	}

	nLenTotal := (len(padded) - frameSize) / hopSize
	if nLenTotal < 0 {
		nLenTotal = 0
	}

	spec := &Spectrogram{
		NMel:         fb.NMel,
		NLenTotal:    nLenTotal,
		NLenOriginal: nLenOriginal,
		Data:         make([]float32, fb.NMel*nLenTotal),
	}

	if nLenTotal == 0 {
		return spec, nil
	}

	window := hannWindow(frameSize)
	tables := newFFTTables(fftSize)

	if nThreads < 1 {
		nThreads = 1
	}

	var wg sync.WaitGroup

	for worker := 0; worker < nThreads; worker++ {
		wg.Add(1)

		go func(workerID int) {
			defer wg.Done()

			re := make([]float32, fftSize)
			im := make([]float32, fftSize)
			power := make([]float32, fb.NFreqBins)

			for col := workerID; col < nLenTotal; col += nThreads {
				computeColumn(padded, col, window, tables, fftSize, re, im, power, fb, spec)
			}
		}(worker)
	}

	wg.Wait()

	normalize(spec.Data)

	return spec, nil
}

func computeColumn(padded []float32, col int, window []float32, tables *fftTables, fftSize int, re, im, power []float32, fb Filterbank, spec *Spectrogram) {
	start := col * hopSize

	for i := range re {
		re[i] = 0
		im[i] = 0
	}

	for i := 0; i < frameSize; i++ {
		re[i] = padded[start+i] * window[i]
	}

	tables.forward(re, im)

	for k := 0; k < fb.NFreqBins; k++ {
		power[k] = re[k]*re[k] + im[k]*im[k]
	}

	for m := 0; m < fb.NMel; m++ {
		filterRow := fb.Data[m*fb.NFreqBins : (m+1)*fb.NFreqBins]

		var sum float64
		for k, p := range power {
			sum += float64(filterRow[k]) * float64(p)
		}

		logVal := math.Log10(math.Max(sum, 1e-10))
		spec.Data[m*spec.NLenTotal+col] = float32(logVal)
	}
}

// padSignal prepends padSamples samples reflected from index 1, and appends
// silencePad zeros plus a trailing padSamples zeros.
func padSignal(samples []float32) []float32 {
	n := len(samples)
	out := make([]float32, 0, padSamples+n+silencePad+padSamples)

	for i := padSamples; i >= 1; i-- {
		idx := i
		if idx >= n {
			idx = n - 1
		}

		if idx < 0 {
			idx = 0
		}

		if n == 0 {
			out = append(out, 0)
			continue
		}

		out = append(out, samples[idx])
	}

	out = append(out, samples...)

	for i := 0; i < silencePad+padSamples; i++ {
		out = append(out, 0)
	}

	return out
}

// normalize clamps values below (max-8) up to (max-8), then applies
// (x+4)/4, matching the compression used before feeding the encoder.
func normalize(data []float32) {
	if len(data) == 0 {
		return
	}

	maxV := data[0]
	for _, v := range data {
		if v > maxV {
			maxV = v
		}
	}

	floor := maxV - 8

	for i, v := range data {
		if v < floor {
			v = floor
		}

		data[i] = (v + 4) / 4
	}
}
