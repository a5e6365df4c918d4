package doctor_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/whispergo/internal/doctor"
)

func TestRun_AllChecksPass(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	cfg := doctor.Config{
		ModelPath:  modelPath,
		LoadModel:  func() (string, error) { return "vocab=51865 layers=6", nil },
		Threads:    4,
		MelWorkers: 2,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}
	if !strings.Contains(out.String(), "model file") {
		t.Error("output should mention model file")
	}
}

func TestRun_MissingModelFails(t *testing.T) {
	cfg := doctor.Config{
		ModelPath:  "/nonexistent/ggml-base.bin",
		Threads:    4,
		MelWorkers: 2,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when model file is not found")
	}
	if !hasFailureContaining(result.Failures(), "model file") {
		t.Errorf("expected failure mentioning model file, got: %v", result.Failures())
	}
}

func TestRun_UnconfiguredModelPathFails(t *testing.T) {
	cfg := doctor.Config{Threads: 4, MelWorkers: 2}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when model path is empty")
	}
}

func TestRun_ModelLoadErrorFails(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	cfg := doctor.Config{
		ModelPath:  modelPath,
		LoadModel:  func() (string, error) { return "", errLoadFailed },
		Threads:    4,
		MelWorkers: 2,
	}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure when model load fails")
	}
	if !hasFailureContaining(result.Failures(), "model load") {
		t.Errorf("expected failure mentioning model load, got: %v", result.Failures())
	}
}

func TestRun_InvalidThreadsFails(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	cfg := doctor.Config{ModelPath: modelPath, Threads: 0, MelWorkers: 2}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for zero threads")
	}
	if !hasFailureContaining(result.Failures(), "threads") {
		t.Errorf("expected failure mentioning threads, got: %v", result.Failures())
	}
}

func TestRun_InvalidMelWorkersFails(t *testing.T) {
	dir := t.TempDir()
	modelPath := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(modelPath, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}

	cfg := doctor.Config{ModelPath: modelPath, Threads: 4, MelWorkers: 0}

	var out strings.Builder
	result := doctor.Run(cfg, &out)

	if !result.Failed() {
		t.Fatal("expected failure for zero mel workers")
	}
	if !hasFailureContaining(result.Failures(), "mel workers") {
		t.Errorf("expected failure mentioning mel workers, got: %v", result.Failures())
	}
}

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	cfg := doctor.Config{ModelPath: "/nonexistent/ggml-base.bin", Threads: 4, MelWorkers: 2}

	var out strings.Builder
	doctor.Run(cfg, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) {
		t.Errorf("output missing pass marker %q:\n%s", doctor.PassMark, body)
	}
	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

var errLoadFailed = sentinelErr("load failed")

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}
