// Package testutil provides shared skip helpers for integration tests.
//
// Each helper calls t.Skip with a clear human-readable reason when the named
// prerequisite is absent, so integration tests remain runnable in partial
// environments without failing noisily.
//
// Typical usage:
//
//	func TestMyIntegration(t *testing.T) {
//	    path := testutil.RequireModelFile(t)
//	    ...
//	}
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ModelPathEnv is the environment variable integration tests consult for a
// real ggml model fixture on disk.
const ModelPathEnv = "WHISPERGO_TEST_MODEL"

// RequireModelFile skips the test unless a real ggml model file is available,
// either via the WHISPERGO_TEST_MODEL environment variable or at the
// conventional models/ggml-base.bin path relative to the working directory.
// Returns the resolved path.
func RequireModelFile(t testing.TB) string {
	t.Helper()

	if p := os.Getenv(ModelPathEnv); p != "" {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("%s=%q does not exist: %v", ModelPathEnv, p, err)
		}
		return p
	}

	fallback := filepath.Join("models", "ggml-base.bin")
	if _, err := os.Stat(fallback); err != nil {
		t.Skipf("no ggml model fixture found; set %s to a real model path", ModelPathEnv)
	}
	return fallback
}

// SilenceWAVPath returns the path, relative to the repository root, of the
// 100 ms silence fixture WAV that cmd/whispergo/testdata/gen.go writes; the
// file is produced by running gen.go and is not in the source tree. Callers should use this as a stand-in
// audio input when no real speech sample is configured.
func SilenceWAVPath() string {
	return filepath.Join("cmd", "whispergo", "testdata", "silence_100ms.wav")
}
