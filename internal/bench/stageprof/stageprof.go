package stageprof

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/pprof"
	"time"

	"github.com/example/whispergo/internal/audio"
	"github.com/example/whispergo/internal/config"
	"github.com/example/whispergo/internal/whisper"
)

type timings struct {
	mel     time.Duration
	decode  time.Duration
	total   time.Duration
	samples int
}

func Main() {
	var (
		wavPath    string
		runs       int
		warmup     int
		cpuprofile string
		threads    int
		debugLogs  bool
	)
	flag.StringVar(&wavPath, "wav", "", "16kHz mono WAV file to profile (required)")
	flag.IntVar(&runs, "runs", 5, "number of profiled runs")
	flag.IntVar(&warmup, "warmup", 1, "number of warmup runs")
	flag.StringVar(&cpuprofile, "cpuprofile", "", "write cpu profile")
	flag.IntVar(&threads, "threads", 4, "encoder/decoder matmul thread count")
	flag.BoolVar(&debugLogs, "debug-logs", false, "enable debug logs from pipeline stages")
	flag.Parse()

	if debugLogs {
		slog.SetDefault(
			slog.New(
				slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
			),
		)
	}

	if runs < 1 {
		fatalf("--runs must be >= 1")
	}
	if wavPath == "" {
		fatalf("--wav is required")
	}

	cfg := config.DefaultConfig()
	cfg.Runtime.Threads = threads

	wavBytes, err := os.ReadFile(wavPath)
	if err != nil {
		fatalf("read wav: %v", err)
	}

	samples, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		fatalf("decode wav: %v", err)
	}

	f, err := os.Open(cfg.Paths.ModelPath)
	if err != nil {
		fatalf("open model: %v", err)
	}
	defer f.Close()

	modelCtx, err := whisper.Load(f)
	if err != nil {
		fatalf("load model: %v", err)
	}

	params := whisper.DefaultParams(whisper.StrategyGreedy, cfg.Runtime.Threads)
	params.NThreads = cfg.Runtime.Threads

	ctx := context.Background()

	for i := range warmup {
		if _, err := runOnce(ctx, modelCtx, params, samples); err != nil {
			fatalf("warmup run %d failed: %v", i+1, err)
		}
	}

	if cpuprofile != "" {
		pf, err := os.Create(cpuprofile)
		if err != nil {
			fatalf("create cpuprofile: %v", err)
		}
		defer pf.Close()

		if err := pprof.StartCPUProfile(pf); err != nil {
			fatalf("start cpuprofile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	var agg timings

	for i := range runs {
		t, err := runOnce(ctx, modelCtx, params, samples)
		if err != nil {
			fatalf("profiled run %d failed: %v", i+1, err)
		}

		agg.mel += t.mel
		agg.decode += t.decode
		agg.total += t.total
		agg.samples = t.samples
	}

	div := float64(runs)
	avgMel := agg.mel.Seconds() * 1000 / div
	avgDecode := agg.decode.Seconds() * 1000 / div
	avgTotal := agg.total.Seconds() * 1000 / div

	audioMS := float64(agg.samples) * 1000.0 / float64(audio.ExpectedSampleRate)
	rtf := avgTotal / audioMS

	fmt.Printf("wav: %q\n", wavPath)
	fmt.Printf("runs: %d (warmup %d)\n", runs, warmup)
	fmt.Printf("threads: %d\n", cfg.Runtime.Threads)
	fmt.Printf("audio_ms: %.2f\n", audioMS)
	fmt.Printf("avg_mel_ms: %.2f\n", avgMel)
	fmt.Printf("avg_encode_decode_ms: %.2f\n", avgDecode)
	fmt.Printf("avg_total_ms: %.2f\n", avgTotal)
	fmt.Printf("rtf: %.3f\n", rtf)

	if avgTotal > 0 {
		fmt.Printf("share_mel_pct: %.2f\n", 100*avgMel/avgTotal)
		fmt.Printf("share_encode_decode_pct: %.2f\n", 100*avgDecode/avgTotal)
	}
}

// runOnce times the log-mel front end as its own stage, then the combined
// encode/decode-loop/emit pipeline driven by Full. Full recomputes the mel
// internally, so its reported "decode" share still includes a second,
// comparatively cheap mel pass.
func runOnce(ctx context.Context, modelCtx *whisper.Context, params whisper.Params, samples []float32) (timings, error) {
	var out timings
	startTotal := time.Now()

	state, err := whisper.NewState(modelCtx)
	if err != nil {
		return out, fmt.Errorf("new state: %w", err)
	}

	var melErr error
	pprof.Do(ctx, pprof.Labels("stage", "mel"), func(context.Context) {
		start := time.Now()
		melErr = state.PCMToMel(samples, params.NThreads)
		out.mel = time.Since(start)
	})
	if melErr != nil {
		return out, fmt.Errorf("compute mel: %w", melErr)
	}

	var decodeErr error
	pprof.Do(ctx, pprof.Labels("stage", "encode_decode"), func(context.Context) {
		start := time.Now()
		_, decodeErr = whisper.Full(modelCtx, state, params, samples)
		out.decode = time.Since(start)
	})
	if decodeErr != nil {
		return out, fmt.Errorf("transcribe: %w", decodeErr)
	}

	out.total = time.Since(startTotal)
	out.samples = len(samples)

	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
