package ggmlmodel

// Magic is the leading u32 every model stream must begin with.
const Magic uint32 = 0x67676d6c // "ggml"

// qntFactor separates the storage float type from the quantization version
// packed into the on-disk ftype field: type = ftype mod qntFactor,
// version = ftype / qntFactor.
const qntFactor = 1000

// DType identifies the on-disk storage format of a tensor's data block.
type DType int

const (
	DTypeF32 DType = iota
	DTypeF16
	DTypeQ4_0
	DTypeQ4_1
	dtypeReserved2
	dtypeReserved3
	DTypeQ5_0
	DTypeQ5_1
	DTypeQ8_0
)

// blockDescriptor describes the quantization block layout for a DType:
// blockSize elements are packed into bytesPerBlock bytes.
type blockDescriptor struct {
	blockSize     int
	bytesPerBlock int
}

var blockDescriptors = map[DType]blockDescriptor{
	DTypeF32:  {blockSize: 1, bytesPerBlock: 4},
	DTypeF16:  {blockSize: 1, bytesPerBlock: 2},
	DTypeQ4_0: {blockSize: 32, bytesPerBlock: 2 + 16},
	DTypeQ4_1: {blockSize: 32, bytesPerBlock: 2 + 2 + 16},
	DTypeQ5_0: {blockSize: 32, bytesPerBlock: 2 + 4 + 16},
	DTypeQ5_1: {blockSize: 32, bytesPerBlock: 2 + 2 + 4 + 16},
	DTypeQ8_0: {blockSize: 32, bytesPerBlock: 2 + 32},
}

func (d DType) valid() bool {
	_, ok := blockDescriptors[d]
	return ok
}

// byteSize returns the number of bytes required to store n elements of d,
// or an error if n is not a multiple of the type's block size.
func (d DType) byteSize(n int64) (int64, error) {
	desc, ok := blockDescriptors[d]
	if !ok {
		return 0, newErr(KindUnknownQuantType, "byteSize", nil)
	}

	if n%int64(desc.blockSize) != 0 {
		return 0, newErr(KindTensorSizeMismatch, "byteSize", nil)
	}

	blocks := n / int64(desc.blockSize)

	return blocks * int64(desc.bytesPerBlock), nil
}

// SizeClass classifies a model by its text-layer count, matching the
// tiny/base/small/medium/large family naming.
type SizeClass int

const (
	SizeUnknown SizeClass = iota
	SizeTiny
	SizeBase
	SizeSmall
	SizeMedium
	SizeLarge
)

func (s SizeClass) String() string {
	switch s {
	case SizeTiny:
		return "tiny"
	case SizeBase:
		return "base"
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	case SizeLarge:
		return "large"
	default:
		return "unknown"
	}
}

// sizeClassFromLayers infers the model family from the decoder layer count,
// per the {4,6,12,24,32} → {tiny,base,small,medium,large} table.
func sizeClassFromLayers(nTextLayer int32) SizeClass {
	switch nTextLayer {
	case 4:
		return SizeTiny
	case 6:
		return SizeBase
	case 12:
		return SizeSmall
	case 24:
		return SizeMedium
	case 32:
		return SizeLarge
	default:
		return SizeUnknown
	}
}

// Hyperparameters holds the eleven immutable i32 fields read from the model
// header, plus values derived from them.
type Hyperparameters struct {
	VocabSize     int32
	AudioCtx      int32
	AudioState    int32
	AudioHead     int32
	AudioLayer    int32
	TextCtx       int32
	TextState     int32
	TextHead      int32
	TextLayer     int32
	Mels          int32
	FType         int32

	DType        DType
	QuantVersion int32
	Size         SizeClass
	Multilingual bool
}

func (h *Hyperparameters) derive() error {
	dt := DType(h.FType % qntFactor)
	if !dt.valid() {
		return newErr(KindUnknownQuantType, "derive", nil)
	}

	h.DType = dt
	h.QuantVersion = h.FType / qntFactor
	h.Size = sizeClassFromLayers(h.TextLayer)
	h.Multilingual = h.VocabSize == 51865

	return nil
}
