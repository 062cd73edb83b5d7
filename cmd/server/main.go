package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/Tyrowin/trio/internal/config"
	"github.com/Tyrowin/trio/internal/logging"
	"github.com/Tyrowin/trio/internal/metrics"
	"github.com/Tyrowin/trio/internal/push"
	"github.com/Tyrowin/trio/internal/room"
	"github.com/Tyrowin/trio/internal/server"
	"github.com/Tyrowin/trio/internal/supervisor"
)

func main() {
	genKeys := flag.Bool("genkeys", false, "print a fresh VAPID key pair and exit")
	flag.Parse()

	if *genKeys {
		if err := printVAPIDKeys(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.Info().Str("port", cfg.Server.Port).Bool("push", cfg.Push.Enabled).Msg("starting trio server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree := supervisor.NewTree(supervisor.Config{ShutdownTimeout: cfg.Server.ShutdownTimeout})

	reg := room.NewRegistry()
	if cfg.Push.Enabled {
		dispatcher := push.NewDispatcher(push.NewWebPushSender(cfg.Push), reg, cfg.Push.Timeout)
		reg.SetNotifier(dispatcher)
		tree.AddMessagingService(dispatcher)
	}

	hub := server.NewHub(reg, cfg.Server.ShutdownTimeout)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(metrics.NewReporter(cfg.Metrics.ReportInterval))

	srv := server.New(cfg, hub)
	httpServer := server.CreateServer(cfg.Server.Port, srv.Routes())
	tree.AddAPIService(supervisor.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor stopped with error")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop in time")
		}
	}
	logging.Info().Msg("trio server stopped")
}

func printVAPIDKeys() error {
	private, public, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("generate VAPID keys: %w", err)
	}
	fmt.Printf("TRIO_PUSH_VAPID_PUBLIC_KEY=%s\nTRIO_PUSH_VAPID_PRIVATE_KEY=%s\n", public, private)
	return nil
}
