// Package transcriber wires a loaded Whisper model to the HTTP and CLI
// surfaces behind the server.Transcriber interface.
package transcriber

import (
	"context"
	"fmt"
	"runtime"

	"github.com/example/whispergo/internal/config"
	"github.com/example/whispergo/internal/whisper"
)

// Service loads a ggml model once and serves Transcribe calls against it.
// A *whisper.Context is read-only after Load, so a single instance may be
// shared across concurrent requests; each call still gets its own *whisper.State.
type Service struct {
	ctx         *whisper.Context
	params      whisper.Params
	nProcessors int
}

// New builds a Service from an already-loaded model context and the
// transcription defaults from cfg.
func New(ctx *whisper.Context, cfg config.TranscribeConfig) (*Service, error) {
	strategy, err := parseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	params := whisper.DefaultParams(strategy, runtime.NumCPU())
	applyConfig(&params, cfg)

	nProcessors := cfg.NProcessors
	if nProcessors < 1 {
		nProcessors = 1
	}

	return &Service{ctx: ctx, params: params, nProcessors: nProcessors}, nil
}

func parseStrategy(s string) (whisper.Strategy, error) {
	switch s {
	case "", "greedy":
		return whisper.StrategyGreedy, nil
	case "beam_search":
		return whisper.StrategyBeamSearch, nil
	default:
		return 0, fmt.Errorf("unknown decoding strategy %q", s)
	}
}

func applyConfig(p *whisper.Params, cfg config.TranscribeConfig) {
	if cfg.Language != "" {
		p.Language = cfg.Language
	}
	if cfg.Language == "auto" {
		p.DetectLanguage = true
		p.Language = ""
	}
	p.Translate = cfg.Translate
	if cfg.BeamSize > 0 {
		p.BeamSize = cfg.BeamSize
	}
	if cfg.BestOf > 0 {
		p.BestOf = cfg.BestOf
	}
	p.Temperature = float32(cfg.Temperature)
	p.TemperatureInc = float32(cfg.TemperatureInc)
	p.EntropyThold = float32(cfg.EntropyThold)
	p.LogprobThold = float32(cfg.LogprobThold)
	p.NoSpeechThold = float32(cfg.NoSpeechThold)
	p.MaxLen = cfg.MaxLen
	p.SplitOnWord = cfg.SplitOnWord
	p.TokenTimestamps = cfg.TokenTimestamps
}

// Transcribe runs the full sliding-window pipeline over samples (16kHz mono
// PCM) and returns the emitted segments. Each call gets its own decode
// state so concurrent requests never share KV caches.
func (s *Service) Transcribe(ctx context.Context, samples []float32) ([]whisper.Segment, error) {
	state, err := whisper.NewState(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("new decode state: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.nProcessors > 1 {
		if _, err := whisper.FullParallel(s.ctx, state, s.params, samples, s.nProcessors); err != nil {
			return nil, fmt.Errorf("transcribe: %w", err)
		}
	} else if _, err := whisper.Full(s.ctx, state, s.params, samples); err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	return state.Segments(), nil
}
