package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the process-wide configuration surface: model/runtime paths,
// inference thread tuning, server bind addresses, and transcription
// defaults, loaded from flags, environment, and an optional config file in
// that precedence order.
type Config struct {
	Paths     PathsConfig     `mapstructure:"paths"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Server    ServerConfig    `mapstructure:"server"`
	Transcribe TranscribeConfig `mapstructure:"transcribe"`
	LogLevel  string          `mapstructure:"log_level"`
}

type PathsConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

type RuntimeConfig struct {
	Threads     int `mapstructure:"threads"`
	MelWorkers  int `mapstructure:"mel_workers"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout_secs"`
	MaxAudioBytes   int    `mapstructure:"max_audio_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout_secs"`
}

// TranscribeConfig mirrors the Params defaults a caller would otherwise
// have to pass on every request.
type TranscribeConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	Language       string  `mapstructure:"language"`
	Translate      bool    `mapstructure:"translate"`
	BeamSize       int     `mapstructure:"beam_size"`
	BestOf         int     `mapstructure:"best_of"`
	Temperature    float64 `mapstructure:"temperature"`
	TemperatureInc float64 `mapstructure:"temperature_inc"`
	EntropyThold   float64 `mapstructure:"entropy_thold"`
	LogprobThold   float64 `mapstructure:"logprob_thold"`
	NoSpeechThold  float64 `mapstructure:"no_speech_thold"`
	MaxLen         int     `mapstructure:"max_len"`
	SplitOnWord    bool    `mapstructure:"split_on_word"`
	TokenTimestamps bool   `mapstructure:"token_timestamps"`
	NProcessors    int     `mapstructure:"n_processors"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ModelPath: "models/ggml-base.bin",
		},
		Runtime: RuntimeConfig{
			Threads:    4,
			MelWorkers: 2,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			ShutdownTimeout: 30,
			MaxAudioBytes:   64 << 20,
			RequestTimeout:  120,
		},
		Transcribe: TranscribeConfig{
			Strategy:       "greedy",
			Language:       "en",
			Translate:      false,
			BeamSize:       2,
			BestOf:         2,
			Temperature:    0,
			TemperatureInc: 0.4,
			EntropyThold:   2.4,
			LogprobThold:   -1.0,
			NoSpeechThold:  0.6,
			MaxLen:         0,
			SplitOnWord:    false,
			TokenTimestamps: false,
			NProcessors:    1,
		},
		LogLevel: "info",
	}
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Path to the ggml-style Whisper model file")
	fs.Int("runtime-threads", defaults.Runtime.Threads, "Encoder/decoder matmul thread count")
	fs.Int("runtime-mel-workers", defaults.Runtime.MelWorkers, "Parallel goroutines for log-mel computation")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent transcription jobs for the serve command")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain timeout in seconds")
	fs.Int("max-audio-bytes", defaults.Server.MaxAudioBytes, "Maximum POST /transcribe audio payload size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeout, "Per-request transcription timeout in seconds")
	fs.String("strategy", defaults.Transcribe.Strategy, "Decoding strategy (greedy|beam_search)")
	fs.String("language", defaults.Transcribe.Language, `Language code, or "auto" to detect`)
	fs.Bool("translate", defaults.Transcribe.Translate, "Translate non-English audio to English")
	fs.Int("beam-size", defaults.Transcribe.BeamSize, "Beam width for beam_search strategy")
	fs.Int("best-of", defaults.Transcribe.BestOf, "Candidate count for greedy strategy at non-zero temperature")
	fs.Float64("temperature", defaults.Transcribe.Temperature, "Initial sampling temperature")
	fs.Float64("temperature-inc", defaults.Transcribe.TemperatureInc, "Temperature step for the fallback schedule")
	fs.Float64("entropy-thold", defaults.Transcribe.EntropyThold, "Entropy threshold below which a long result is rejected")
	fs.Float64("logprob-thold", defaults.Transcribe.LogprobThold, "Average logprob threshold below which a result falls back")
	fs.Float64("no-speech-thold", defaults.Transcribe.NoSpeechThold, "no_speech token probability above which a segment is treated as silence")
	fs.Int("max-len", defaults.Transcribe.MaxLen, "Maximum characters per emitted segment line (0 disables wrapping)")
	fs.Bool("split-on-word", defaults.Transcribe.SplitOnWord, "Wrap segment lines on word boundaries instead of mid-word")
	fs.Bool("token-timestamps", defaults.Transcribe.TokenTimestamps, "Carry per-token timestamps through to the result")
	fs.Int("n-processors", defaults.Transcribe.NProcessors, "Split audio into this many chunks and transcribe them concurrently")
	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("WHISPERGO")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("whispergo")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("runtime.threads", c.Runtime.Threads)
	v.SetDefault("runtime.mel_workers", c.Runtime.MelWorkers)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeout)
	v.SetDefault("server.max_audio_bytes", c.Server.MaxAudioBytes)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeout)
	v.SetDefault("transcribe.strategy", c.Transcribe.Strategy)
	v.SetDefault("transcribe.language", c.Transcribe.Language)
	v.SetDefault("transcribe.translate", c.Transcribe.Translate)
	v.SetDefault("transcribe.beam_size", c.Transcribe.BeamSize)
	v.SetDefault("transcribe.best_of", c.Transcribe.BestOf)
	v.SetDefault("transcribe.temperature", c.Transcribe.Temperature)
	v.SetDefault("transcribe.temperature_inc", c.Transcribe.TemperatureInc)
	v.SetDefault("transcribe.entropy_thold", c.Transcribe.EntropyThold)
	v.SetDefault("transcribe.logprob_thold", c.Transcribe.LogprobThold)
	v.SetDefault("transcribe.no_speech_thold", c.Transcribe.NoSpeechThold)
	v.SetDefault("transcribe.max_len", c.Transcribe.MaxLen)
	v.SetDefault("transcribe.split_on_word", c.Transcribe.SplitOnWord)
	v.SetDefault("transcribe.token_timestamps", c.Transcribe.TokenTimestamps)
	v.SetDefault("transcribe.n_processors", c.Transcribe.NProcessors)
	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.model_path", "paths-model-path")
	v.RegisterAlias("runtime.threads", "runtime-threads")
	v.RegisterAlias("runtime.mel_workers", "runtime-mel-workers")
	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.max_audio_bytes", "max-audio-bytes")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")
	v.RegisterAlias("transcribe.strategy", "strategy")
	v.RegisterAlias("transcribe.language", "language")
	v.RegisterAlias("transcribe.translate", "translate")
	v.RegisterAlias("transcribe.beam_size", "beam-size")
	v.RegisterAlias("transcribe.best_of", "best-of")
	v.RegisterAlias("transcribe.temperature", "temperature")
	v.RegisterAlias("transcribe.temperature_inc", "temperature-inc")
	v.RegisterAlias("transcribe.entropy_thold", "entropy-thold")
	v.RegisterAlias("transcribe.logprob_thold", "logprob-thold")
	v.RegisterAlias("transcribe.no_speech_thold", "no-speech-thold")
	v.RegisterAlias("transcribe.max_len", "max-len")
	v.RegisterAlias("transcribe.split_on_word", "split-on-word")
	v.RegisterAlias("transcribe.token_timestamps", "token-timestamps")
	v.RegisterAlias("transcribe.n_processors", "n-processors")
	v.RegisterAlias("log_level", "log-level")
}
