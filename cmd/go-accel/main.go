package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/kenelite/go-accel/internal/admission"
	"github.com/kenelite/go-accel/internal/config"
	"github.com/kenelite/go-accel/internal/controlplane"
	"github.com/kenelite/go-accel/internal/listener"
	"github.com/kenelite/go-accel/internal/observability"
	"github.com/kenelite/go-accel/internal/router"
	"github.com/kenelite/go-accel/internal/scheduler"
	"github.com/kenelite/go-accel/internal/upstream"
)

var (
	configPath = kingpin.Flag("config", "Path to config file (yaml)").Envar("GO_ACCEL_CONFIG").Default("./deploy/config.yaml").String()
	checkOnly  = kingpin.Flag("check", "Validate the configuration and exit").Bool()
)

func main() {
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	policy, err := admission.NewPolicy(cfg.Security.AllowedMethods, cfg.Security.MaxPathLength)
	if err != nil {
		log.Fatalf("invalid security policy: %v", err)
	}
	if *checkOnly {
		log.Printf("config %s ok", *configPath)
		return
	}

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Infow("starting go-accel",
		"http_addr", cfg.Server.HTTPAddr,
		"admin_addr", cfg.Server.AdminAddr,
		"allowed_methods", policy.GenericMethods(),
		"max_path_length", policy.MaxPathLength(),
		"platforms", len(cfg.Platforms),
	)

	metrics := observability.NewMetrics()

	upstreamMgr, err := upstream.NewManager(cfg.Upstreams, logger)
	if err != nil {
		logger.Fatalw("failed to init upstream manager", "err", err)
	}

	rtr, err := router.NewRouter(cfg, policy, upstreamMgr, scheduler.NewRoundRobin(), metrics, logger)
	if err != nil {
		logger.Fatalw("failed to init router", "err", err)
	}

	dataSrv := listener.NewServer(cfg.Server.HTTPAddr, rtr, logger)

	adminMux := http.NewServeMux()
	controlplane.RegisterAdminHandlers(adminMux, metrics, cfg, logger)
	adminSrv := listener.NewServer(cfg.Server.AdminAddr, adminMux, logger)

	go func() {
		if err := adminSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("admin server error", "err", err)
		}
	}()

	go func() {
		if err := dataSrv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("data server error", "err", err)
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = dataSrv.Shutdown(ctx)
	_ = adminSrv.Shutdown(ctx)
}
