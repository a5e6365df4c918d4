package whisper

import (
	"fmt"

	"github.com/example/whispergo/internal/mel"
	"github.com/example/whispergo/internal/runtime/tensor"
)

// sliceMelWindow extracts a [n_mel, length] window of mel columns starting
// at offset, zero-filling any columns past the end of the spectrogram.
func sliceMelWindow(spec *mel.Spectrogram, offset, length int) (*tensor.Tensor, error) {
	if offset < 0 {
		return nil, fmt.Errorf("mel window offset %d is negative", offset)
	}

	out, err := tensor.Zeros([]int64{int64(spec.NMel), int64(length)})
	if err != nil {
		return nil, err
	}

	data := out.RawData()

	avail := spec.NLenTotal - offset
	if avail > length {
		avail = length
	}

	if avail > 0 {
		for m := 0; m < spec.NMel; m++ {
			srcBase := m*spec.NLenTotal + offset
			dstBase := m * length
			copy(data[dstBase:dstBase+avail], spec.Data[srcBase:srcBase+avail])
		}
	}

	return out, nil
}
