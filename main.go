package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"go.aimuz.me/vhisper/audiocapture"
	"go.aimuz.me/vhisper/cache"
	"go.aimuz.me/vhisper/config"
	"go.aimuz.me/vhisper/hotkey"
	"go.aimuz.me/vhisper/internal/app"
	"go.aimuz.me/vhisper/internal/crash"
	"go.aimuz.me/vhisper/notify"
	"go.aimuz.me/vhisper/output"
	"go.aimuz.me/vhisper/telemetry"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "vhisper",
	Short:         "Push-to-talk voice input",
	Long:          "Hold the hotkey, speak, release: the transcript is pasted into the focused application.",
	Version:       fmt.Sprintf("%s (%s, %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for the hotkey and transcribe (default)",
	RunE:  runDaemon,
}

var testAPICmd = &cobra.Command{
	Use:   "test-api <provider>",
	Short: "Check connectivity for DashScope, Qwen, FunASR, OpenAIWhisper or Ollama",
	Args:  cobra.ExactArgs(1),
	RunE:  runTestAPI,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, err := resolveConfigPath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	configCmd.AddCommand(configPathCmd, configShowCmd)
	rootCmd.AddCommand(runCmd, testAPICmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("vhisper", "error", err)
		os.Exit(1)
	}
}

func setupLogger(level string) {
	lvl := log.InfoLevel
	if level != "" {
		parsed, err := log.ParseLevel(level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q, using info\n", level)
		} else {
			lvl = parsed
		}
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	})
	slog.SetDefault(slog.New(logger))
}

func resolveConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.Path()
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load()
	}
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runTestAPI(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogger(firstNonEmpty(logLevel, cfg.Telemetry.LogLevel))

	msg, err := app.TestAPI(cmd.Context(), *cfg, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogger(firstNonEmpty(logLevel, cfg.Telemetry.LogLevel))
	slog.Info("starting vhisper", "version", version, "commit", commit, "date", date)

	if err := crash.Init(cfg.Telemetry.SentryDSN, version); err != nil {
		slog.Error("init crash reporting", "error", err)
	}
	defer crash.Flush()
	defer crash.Handle("main")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := setupTelemetry(ctx, cfg.Telemetry.MetricsAddr)

	c := setupCache()
	if c != nil {
		defer func() {
			if err := c.Close(); err != nil {
				slog.Error("close cache", "error", err)
			}
		}()
	}

	defer audiocapture.Terminate()

	path, err := resolveConfigPath()
	if err != nil {
		return err
	}

	svc := app.New(app.Deps{
		Config:     *cfg,
		ConfigPath: path,
		Recorder:   audiocapture.New(audiocapture.DefaultSampleRate),
		Output:     output.New(),
		Listener:   hotkey.NewListener(),
		Events:     app.EventsFunc(logEvent),
		Notifier:   notify.New("vhisper"),
		Cache:      c,
		Metrics:    metrics,
	})

	slog.Info("ready", "hotkey", cfg.Hotkey.Binding.DisplayText(), "asr", cfg.ASR.Provider, "llm", cfg.LLM.Enabled)
	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}

func setupTelemetry(ctx context.Context, addr string) *telemetry.Metrics {
	if addr == "" {
		return nil
	}
	p, err := telemetry.Setup(ctx, "vhisper", version)
	if err != nil {
		slog.Error("init telemetry", "error", err)
		return nil
	}
	metrics, err := telemetry.NewMetrics(p.MeterProvider)
	if err != nil {
		slog.Error("init metrics", "error", err)
		return nil
	}
	go func() {
		defer crash.Handle("metrics server")
		if err := p.Serve(ctx, addr); err != nil {
			slog.Error("serve metrics", "error", err)
		}
	}()
	context.AfterFunc(ctx, func() {
		if err := p.Shutdown(context.WithoutCancel(ctx)); err != nil {
			slog.Warn("shutdown telemetry", "error", err)
		}
	})
	return metrics
}

func setupCache() *cache.Cache {
	dir, err := config.Dir()
	if err != nil {
		slog.Error("get config dir for cache", "error", err)
		return nil
	}

	cachePath := filepath.Join(dir, "cache")
	c, err := cache.New(cachePath)
	if err != nil {
		slog.Error("init cache", "error", err)
		return nil
	}
	slog.Info("cache initialized", "path", cachePath)
	return c
}

// logEvent stands in for a UI: it logs every event.
func logEvent(name string, data any) {
	switch v := data.(type) {
	case app.ProcessingComplete:
		slog.Info(name, "chars", len([]rune(v.Text)))
	case app.ProcessingError:
		slog.Warn(name, "message", v.Message)
	case nil:
		slog.Info(name)
	default:
		slog.Info(name, "data", v)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
