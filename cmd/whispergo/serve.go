package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/whispergo/internal/config"
	"github.com/example/whispergo/internal/server"
	"github.com/example/whispergo/internal/transcriber"
	"github.com/example/whispergo/internal/whisper"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the whispergo transcription HTTP server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
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

			srv := server.New(cfg, svc).
				WithShutdownTimeout(time.Duration(cfg.Server.ShutdownTimeout) * time.Second)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Start(ctx)
		},
	}

	defaults := config.DefaultConfig()
	config.RegisterFlags(cmd.Flags(), defaults)

	return cmd
}
