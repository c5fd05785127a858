package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arung-agamani/denpa-radio/config"
	"github.com/arung-agamani/denpa-radio/internal/adapter"
	"github.com/arung-agamani/denpa-radio/internal/catalog"
	"github.com/arung-agamani/denpa-radio/internal/catalogfeed"
	"github.com/arung-agamani/denpa-radio/internal/server"
	"github.com/arung-agamani/denpa-radio/internal/upstreamauth"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := config.Load()
	slog.Info("starting relay",
		"port", cfg.Port,
		"delaySec", cfg.DelaySec,
		"enabledAreas", len(cfg.EnabledAreas),
	)

	auth := upstreamauth.New(upstreamauth.Config{
		PremiumMail: cfg.PremiumMail,
		PremiumPass: cfg.PremiumPass,
	})
	store := catalog.New()
	fetcher := catalogfeed.New(auth, store, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := auth.Init(ctx); err != nil {
		slog.Error("upstream auth handshake failed", "error", err)
		os.Exit(1)
	}

	// The external adapter's toast/push callbacks are left nil: this binary
	// has no host-player collaborator of its own. The server still gates
	// its now-playing ticker through it, so the push/ticker contract is
	// exercised even without a real consumer wired up.
	ad := adapter.New(store, cfg, nil, nil, nil)

	srv := server.New(cfg, auth, store, fetcher, ad)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		slog.Info("shutdown signal received")
		cancel()
	}()

	if err := srv.Start(ctx); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
