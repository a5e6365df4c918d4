package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/example/whispergo/internal/doctor"
	"github.com/example/whispergo/internal/ggmlmodel"
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run local runtime and model checks",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			dcfg := doctor.Config{
				ModelPath:  cfg.Paths.ModelPath,
				LoadModel:  func() (string, error) { return probeModel(cfg.Paths.ModelPath) },
				Threads:    cfg.Runtime.Threads,
				MelWorkers: cfg.Runtime.MelWorkers,
			}

			result := doctor.Run(dcfg, os.Stdout)

			if result.Failed() {
				for _, f := range result.Failures() {
					fmt.Fprintf(os.Stderr, "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(os.Stdout, "doctor checks passed")

			return nil
		},
	}

	return cmd
}

// probeModel opens the ggml model header and summarizes its hyperparameters.
func probeModel(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open model: %w", err)
	}
	defer f.Close()

	m, err := ggmlmodel.Load(f)
	if err != nil {
		return "", fmt.Errorf("parse model header: %w", err)
	}

	return fmt.Sprintf("vocab=%d layers=%d/%d multilingual=%t",
		m.Vocab.NVocab, m.Hparams.AudioLayer, m.Hparams.TextLayer, m.Vocab.Multilingual), nil
}
