//go:build integration

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/whispergo/internal/testutil"
)

// runDoctorCapture executes the doctor command with the given extra args and
// returns the combined stdout output and the execution error (if any).
// The doctor command writes directly to os.Stdout/os.Stderr, so we redirect
// those descriptors via a pipe for the duration of the call.
func runDoctorCapture(t testing.TB, args ...string) (stdout string, err error) {
	t.Helper()

	pr, pw, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("os.Pipe: %v", pipeErr)
	}
	origStdout := os.Stdout
	origStderr := os.Stderr
	os.Stdout = pw
	os.Stderr = pw // capture stderr into the same buffer for simplicity

	root := NewRootCmd()
	root.SetArgs(append([]string{"doctor"}, args...))
	execErr := root.Execute()

	pw.Close()
	os.Stdout = origStdout
	os.Stderr = origStderr

	var buf bytes.Buffer
	if _, readErr := buf.ReadFrom(pr); readErr != nil {
		t.Fatalf("read pipe: %v", readErr)
	}
	pr.Close()

	return buf.String(), execErr
}

// TestDoctorPasses_ValidModel runs whispergo doctor against a real ggml
// model fixture and asserts exit 0 with "doctor checks passed" in output.
func TestDoctorPasses_ValidModel(t *testing.T) {
	modelPath := testutil.RequireModelFile(t)

	out, err := runDoctorCapture(t, "--paths-model-path", modelPath)
	if err != nil {
		t.Fatalf("doctor failed: %v\noutput:\n%s", err, out)
	}
	if !strings.Contains(out, "doctor checks passed") {
		t.Errorf("expected 'doctor checks passed' in output, got:\n%s", out)
	}
}

// TestDoctorFails_MissingModel points the doctor at a non-existent model
// file and asserts exit non-zero with a failure message in output.
func TestDoctorFails_MissingModel(t *testing.T) {
	tmp := t.TempDir()
	missing := filepath.Join(tmp, "does-not-exist.bin")

	out, err := runDoctorCapture(t, "--paths-model-path", missing)
	if err == nil {
		t.Fatalf("expected doctor to fail with missing model file, but it passed\noutput:\n%s", out)
	}
	lower := strings.ToLower(out)
	if !strings.Contains(lower, "not found") && !strings.Contains(lower, "fail") {
		t.Errorf("expected failure message about missing model file in output, got:\n%s", out)
	}
}

// TestDoctorFails_CorruptModel points the doctor at a file that exists but
// does not parse as a ggml model, and asserts the load failure is surfaced.
func TestDoctorFails_CorruptModel(t *testing.T) {
	tmp := t.TempDir()
	bad := filepath.Join(tmp, "ggml-bad.bin")
	if err := os.WriteFile(bad, []byte("not a real model"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	out, err := runDoctorCapture(t, "--paths-model-path", bad)
	if err == nil {
		t.Fatalf("expected doctor to fail with a corrupt model, but it passed\noutput:\n%s", out)
	}
	if !strings.Contains(strings.ToLower(out), "fail") {
		t.Errorf("expected failure message about model load in output, got:\n%s", out)
	}
}
