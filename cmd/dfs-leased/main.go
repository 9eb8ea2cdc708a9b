// Command dfs-leased runs the Lease Manager daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/marmos91/dfs/internal/config"
	"github.com/marmos91/dfs/internal/httpapi"
	"github.com/marmos91/dfs/internal/lease"
	"github.com/marmos91/dfs/internal/lease/badgerstore"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.DefaultLeaseConfig()
	if err := config.Load(*configFile, "DFS_LEASE", &cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	mgr, err := badgerstore.Open(cfg.DBFile, cfg.LockLifetime)
	if err != nil {
		log.Fatalf("open lease db %q: %v", cfg.DBFile, err)
	}
	defer mgr.Close()

	// The lock lifetime may be hot-reloaded without a restart.
	config.WatchReload(*configFile, func() {
		reloaded := cfg
		if err := config.Load(*configFile, "DFS_LEASE", &reloaded); err != nil {
			logger.Error("reload config failed", logger.Err(err))
			return
		}
		mgr.SetLifetime(reloaded.LockLifetime)
		logger.SetLevel(reloaded.Logging.Level)
		logger.Info("lock lifetime reloaded", logger.DurationMs(float64(reloaded.LockLifetime.Milliseconds())))
	})

	mtr := metrics.New()
	if cfg.MetricsAddr != "" {
		mtr.Serve(cfg.MetricsAddr)
	}

	server := lease.NewServer(mgr).WithMetrics(mtr)
	router := httpapi.NewRouter(30 * time.Second)
	router.Use(httpapi.Metrics(mtr))
	httpapi.MountWildcard(router, http.MethodGet, server.ServeGET)
	httpapi.MountWildcard(router, http.MethodPost, server.ServePOST)
	httpapi.MountWildcard(router, http.MethodDelete, server.ServeDELETE)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("lease manager listening", logger.Endpoint(cfg.ListenAddr), logger.Path(cfg.DBFile))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("lease server failed", logger.Err(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
	}
}
