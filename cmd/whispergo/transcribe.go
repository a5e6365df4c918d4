package main

import (
	"fmt"
	"os"

	"github.com/example/whispergo/internal/audio"
	"github.com/example/whispergo/internal/transcriber"
	"github.com/example/whispergo/internal/whisper"
	"github.com/spf13/cobra"
)

func newTranscribeCmd() *cobra.Command {
	var (
		wavPath  string
		language string
		strategy string
	)

	cmd := &cobra.Command{
		Use:   "transcribe",
		Short: "Transcribe a 16kHz mono WAV file to text",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if wavPath == "" {
				return fmt.Errorf("--wav is required")
			}
			if language != "" {
				cfg.Transcribe.Language = language
			}
			if strategy != "" {
				cfg.Transcribe.Strategy = strategy
			}

			data, err := os.ReadFile(wavPath)
			if err != nil {
				return fmt.Errorf("read wav: %w", err)
			}

			samples, err := audio.DecodeWAV(data)
			if err != nil {
				return fmt.Errorf("decode wav: %w", err)
			}

			f, err := os.Open(cfg.Paths.ModelPath)
			if err != nil {
				return fmt.Errorf("open model: %w", err)
			}
			defer f.Close()

			modelCtx, err := whisper.Load(f)
			if err != nil {
				return fmt.Errorf("load model: %w", err)
			}

			svc, err := transcriber.New(modelCtx, cfg.Transcribe)
			if err != nil {
				return fmt.Errorf("configure transcriber: %w", err)
			}

			segments, err := svc.Transcribe(cmd.Context(), samples)
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}

			for _, seg := range segments {
				fmt.Fprintf(os.Stdout, "[%s --> %s] %s\n",
					formatTimestamp(seg.T0), formatTimestamp(seg.T1), seg.Text)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "Path to a 16kHz mono 16-bit WAV file")
	cmd.Flags().StringVar(&language, "language", "", "Language code, or \"auto\" to detect (overrides config)")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Decoding strategy: greedy|beam_search (overrides config)")

	return cmd
}

// formatTimestamp renders a centisecond offset as HH:MM:SS,mmm.
func formatTimestamp(cs int64) string {
	ms := cs * 10
	h := ms / 3600000
	ms %= 3600000
	m := ms / 60000
	ms %= 60000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
