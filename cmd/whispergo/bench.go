package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/example/whispergo/internal/audio"
	"github.com/example/whispergo/internal/bench"
	"github.com/example/whispergo/internal/transcriber"
	"github.com/example/whispergo/internal/whisper"
	"github.com/spf13/cobra"
)

// benchRunner is the subset of transcriber.Service exercised by runBench,
// factored out so tests can substitute a stub instead of loading a real model.
type benchRunner interface {
	Transcribe(ctx context.Context, samples []float32) ([]whisper.Segment, error)
}

func newBenchCmd() *cobra.Command {
	var (
		wavPath      string
		runs         int
		format       string
		rtfThreshold float64
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark transcription latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if wavPath == "" {
				return fmt.Errorf("--wav is required for bench")
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			wavBytes, err := os.ReadFile(wavPath)
			if err != nil {
				return fmt.Errorf("read wav: %w", err)
			}
			audioDur, err := bench.WAVDuration(wavBytes)
			if err != nil {
				return fmt.Errorf("parse wav duration: %w", err)
			}

			samples, err := audio.DecodeWAV(wavBytes)
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

			results, err := runBench(cmd.Context(), svc, samples, audioDur, runs)
			if err != nil {
				return err
			}

			durations := make([]time.Duration, len(results))
			for i, r := range results {
				durations[i] = r.Duration
			}
			stats := bench.ComputeStats(durations)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, os.Stdout)
			default:
				bench.FormatTable(results, stats, os.Stdout)
			}

			var totalRTF float64
			for _, r := range results {
				totalRTF += r.RTF
			}
			meanRTF := totalRTF / float64(len(results))

			return bench.CheckRTFThreshold(meanRTF, rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "16kHz mono WAV file to transcribe repeatedly (required)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of transcription runs")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")

	return cmd
}

func runBench(ctx context.Context, svc benchRunner, samples []float32, audioDur time.Duration, runs int) ([]bench.RunResult, error) {
	results := make([]bench.RunResult, 0, runs)

	for i := range runs {
		start := time.Now()
		if _, err := svc.Transcribe(ctx, samples); err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}
		dur := time.Since(start)

		results = append(results, bench.RunResult{
			Index:       i,
			Cold:        i == 0,
			Duration:    dur,
			WAVDuration: audioDur,
			RTF:         bench.CalcRTF(dur, audioDur),
		})
	}

	return results, nil
}
