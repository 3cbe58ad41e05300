package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ayltai/espartan/internal/cache"
	"github.com/ayltai/espartan/internal/config"
	"github.com/ayltai/espartan/internal/gateway"
	"github.com/ayltai/espartan/internal/health"
	"github.com/ayltai/espartan/internal/httpapi"
	"github.com/ayltai/espartan/internal/lib/logger/sl"
	"github.com/ayltai/espartan/internal/metrics"
	"github.com/ayltai/espartan/internal/monitor"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting espartan monitor",
		slog.String("env", cfg.Env),
		slog.String("gateway", cfg.Gateway.BaseURL),
	)

	gw := gateway.NewHTTPGateway(log, &cfg.Gateway)

	m := metrics.New(prometheus.NewRegistry())
	c := cache.New(log, cache.WithObserver(m))

	mon := monitor.New(log, cfg, gw, c)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mon.Start(ctx); err != nil {
		log.Error("failed to start monitor", sl.Err(err))
		os.Exit(1)
	}

	server := health.NewServer(log, cfg.HTTP.Address)
	server.AddChecker(health.NewGatewayHealthChecker(gw.Health))
	server.AddChecker(health.NewCacheHealthChecker(c.Stats))
	server.Mount("/metrics", m.Handler())
	server.Mount("/api", httpapi.Routes(log, mon))

	if err := server.Start(); err != nil {
		log.Error("failed to start http server", sl.Err(err))
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	log.Info("received signal, shutting down", slog.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop http server", sl.Err(err))
	}

	mon.Stop()
	c.Close()

	if err := gw.Close(); err != nil {
		log.Error("failed to close gateway", sl.Err(err))
	}

	log.Info("monitor stopped")
}
