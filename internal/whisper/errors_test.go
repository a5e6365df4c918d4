package whisper

import (
	"errors"
	"testing"
)

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		KindUnknown:              "unknown",
		KindModelLoad:            "model_load",
		KindMel:                  "mel",
		KindLanguageDetect:       "language_detect",
		KindAudioContextExceeded: "audio_context_exceeded",
		KindDecoderTooMany:       "decoder_too_many",
		KindKVCacheInit:          "kv_cache_init",
		KindEncode:               "encode",
		KindDecode:               "decode",
		Kind(999):                "unknown",
	}

	for k, want := range cases {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q; want %q", k, got, want)
		}
	}
}

func TestError_ErrorMessage(t *testing.T) {
	wrapped := errors.New("boom")
	e := newErr(KindMel, "PCMToMel", wrapped)

	msg := e.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}

	if !errors.Is(e, wrapped) {
		t.Error("Unwrap did not expose the wrapped error via errors.Is")
	}
}

func TestError_ErrorMessageWithoutWrapped(t *testing.T) {
	e := newErr(KindDecode, "Decode", nil)

	msg := e.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}

	if e.Unwrap() != nil {
		t.Errorf("Unwrap() = %v; want nil", e.Unwrap())
	}
}
