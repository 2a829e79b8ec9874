package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/warelay/warelay/ai"
	"github.com/warelay/warelay/ai/gemini"
	"github.com/warelay/warelay/ai/memory"
	"github.com/warelay/warelay/ai/openaicompat"
	"github.com/warelay/warelay/bot"
	"github.com/warelay/warelay/internal/metrics"
	"github.com/warelay/warelay/internal/profile"
	"github.com/warelay/warelay/internal/version"
	"github.com/warelay/warelay/plugin/sheetlog"
	"github.com/warelay/warelay/server"
	"github.com/warelay/warelay/store"
	"github.com/warelay/warelay/wa"
)

var rootCmd = &cobra.Command{
	Use:   "warelay",
	Short: "Relay between WhatsApp and a generative-AI backend with per-conversation memory.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory; absence is fine.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			Version: version.String(),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}

		setupLogger(instanceProfile)

		if err := run(instanceProfile); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	},
}

func setupLogger(p *profile.Profile) {
	var handler slog.Handler
	if p.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	} else {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	slog.SetDefault(slog.New(handler))
}

func newProvider(p *profile.Profile) ai.Provider {
	if p.AIProvider == "gemini" {
		return gemini.New(gemini.Config{
			APIKey:  p.AIAPIKey,
			BaseURL: p.AIBaseURL,
			Model:   p.AIModel,
		})
	}
	return openaicompat.New(openaicompat.Config{
		Provider: p.AIProvider,
		APIKey:   p.AIAPIKey,
		BaseURL:  p.AIBaseURL,
		Model:    p.AIModel,
	})
}

func run(p *profile.Profile) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	exporter := metrics.New(prometheus.NewRegistry())

	credStore, err := store.NewCredentialStore(p)
	if err != nil {
		return err
	}
	defer credStore.Close()

	bridge := wa.NewBridgeClient(p.BridgeURL, p.BridgeAPIKey)
	supervisor := wa.NewSupervisor(bridge, credStore, wa.SupervisorConfig{}, exporter)

	memStore := memory.NewStore(time.Duration(p.MemoryTTLHours) * time.Hour)
	orchestrator := ai.NewOrchestrator(newProvider(p), memStore, ai.OrchestratorConfig{
		SystemPrompt:   p.AISystemPrompt,
		Window:         p.MemoryWindow,
		Timeout:        time.Duration(p.AITimeout) * time.Second,
		ThinkingBudget: p.AIThinkingBudget,
	}, exporter)

	var recorder sheetlog.Recorder = sheetlog.NewNoop()
	if p.LogEndpoint != "" {
		recorder = sheetlog.NewClient(p.LogEndpoint, p.LogAPIKey, exporter)
	}

	router := bot.NewRouter(orchestrator, supervisor, memStore, recorder, exporter, bot.RouterConfig{})
	srv := server.New(p, supervisor, orchestrator, router, memStore, exporter)

	supervisor.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	slog.Info("warelay started",
		"version", p.Version,
		"mode", p.Mode,
		"addr", p.Addr,
		"port", p.Port,
		"provider", p.AIProvider,
		"model", p.AIModel,
	)

	// Trigger graceful shutdown on SIGINT or SIGTERM. SIGTERM is what most
	// process managers (systemd, kubernetes) send.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, terminationSignals...)

	select {
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	supervisor.Shutdown()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("port", 28090)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28090, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")

	for _, flag := range []string{"mode", "addr", "port", "data"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("warelay")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
