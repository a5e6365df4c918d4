// Package doctor provides environment preflight checks for whispergo.
package doctor

import (
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// ModelLoadFunc attempts to load the configured model and returns a short
// summary (e.g. layer/vocab counts) or an error describing why it failed.
type ModelLoadFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// ModelPath is the configured model file path, checked for existence.
	ModelPath string
	// LoadModel opens and parses the model header. nil disables the check.
	LoadModel ModelLoadFunc
	// Threads is the configured inference thread count.
	Threads int
	// MelWorkers is the configured mel-spectrogram worker count.
	MelWorkers int
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- model file ---------------------------------------------------
	if cfg.ModelPath == "" {
		res.fail("model path: not configured")
		fmt.Fprintf(w, "%s model path: not configured\n", FailMark)
	} else if _, err := os.Stat(cfg.ModelPath); err != nil {
		res.fail(fmt.Sprintf("model file %q: %v", cfg.ModelPath, err))
		fmt.Fprintf(w, "%s model file: not found at %s\n", FailMark, cfg.ModelPath)
	} else {
		fmt.Fprintf(w, "%s model file: %s\n", PassMark, cfg.ModelPath)
	}

	// ---- model load -----------------------------------------------------
	if cfg.LoadModel != nil {
		summary, err := cfg.LoadModel()
		if err != nil {
			res.fail(fmt.Sprintf("model load: %v", err))
			fmt.Fprintf(w, "%s model load: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s model load: %s\n", PassMark, summary)
		}
	}

	// ---- thread configuration ------------------------------------------
	if cfg.Threads < 1 {
		res.fail(fmt.Sprintf("runtime threads: %d is invalid, must be >= 1", cfg.Threads))
		fmt.Fprintf(w, "%s runtime threads: %d\n", FailMark, cfg.Threads)
	} else {
		fmt.Fprintf(w, "%s runtime threads: %d\n", PassMark, cfg.Threads)
	}

	if cfg.MelWorkers < 1 {
		res.fail(fmt.Sprintf("mel workers: %d is invalid, must be >= 1", cfg.MelWorkers))
		fmt.Fprintf(w, "%s mel workers: %d\n", FailMark, cfg.MelWorkers)
	} else {
		fmt.Fprintf(w, "%s mel workers: %d\n", PassMark, cfg.MelWorkers)
	}

	return res
}
