// Command dfs-storaged runs the Storage Node daemon: it serves and accepts
// whole-file reads and writes for its whitelisted directories, delegating
// write authorization to a Lease Manager and announcing its served
// directories to a Directory Registry at startup.
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
	"github.com/marmos91/dfs/internal/lease/remote"
	"github.com/marmos91/dfs/internal/logger"
	"github.com/marmos91/dfs/internal/metrics"
	"github.com/marmos91/dfs/internal/registry"
	registryremote "github.com/marmos91/dfs/internal/registry/remote"
	"github.com/marmos91/dfs/internal/storage"
	"github.com/marmos91/dfs/internal/storage/localbackend"
	"github.com/marmos91/dfs/internal/storage/s3backend"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.DefaultStorageConfig()
	if err := config.Load(*configFile, "DFS_STORAGE", &cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logger.Init(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	backend, err := buildBackend(cfg)
	if err != nil {
		log.Fatalf("build backend: %v", err)
	}

	leases := remote.New(cfg.LockServer)
	defer leases.Close()

	node := storage.New(backend, leases, cfg.Directories)

	srvEndpoint, err := registry.ParseEndpoint(cfg.Srv)
	if err != nil {
		log.Fatalf("parse srv endpoint %q: %v", cfg.Srv, err)
	}

	names := registryremote.New(cfg.NameServer)
	defer names.Close()

	registerCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := names.RegisterBatch(registerCtx, cfg.Directories, srvEndpoint); err != nil {
		cancel()
		log.Fatalf("register with directory registry: %v", err)
	}
	cancel()
	logger.Info("registered served directories", logger.Endpoint(cfg.Srv))

	mtr := metrics.New()
	if cfg.MetricsAddr != "" {
		mtr.Serve(cfg.MetricsAddr)
	}

	router := httpapi.NewRouter(30 * time.Second)
	router.Use(httpapi.Metrics(mtr))
	httpapi.MountWildcard(router, http.MethodGet, node.ServeGET)
	httpapi.MountWildcard(router, http.MethodHead, node.ServeHEAD)
	httpapi.MountWildcard(router, http.MethodPut, node.ServePUT)
	httpapi.MountWildcard(router, http.MethodDelete, node.ServeDELETE)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: router}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("storage node listening", logger.Endpoint(cfg.ListenAddr), logger.Backend(cfg.Backend))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("storage server failed", logger.Err(err))
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections")

	deregisterCtx, deregisterCancel := context.WithTimeout(context.Background(), 5*time.Second)
	for _, dir := range cfg.Directories {
		if err := names.Deregister(deregisterCtx, dir, srvEndpoint); err != nil {
			logger.Warn("deregister failed", logger.Directory(dir), logger.Err(err))
		}
	}
	deregisterCancel()

	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
	}
}

func buildBackend(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Backend {
	case "s3":
		ctx := context.Background()
		client, err := s3backend.NewClient(ctx, s3backend.Config{
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			KeyPrefix: cfg.S3.Prefix,
		})
		if err != nil {
			return nil, err
		}
		return s3backend.New(client, s3backend.Config{Bucket: cfg.S3.Bucket, KeyPrefix: cfg.S3.Prefix})
	default:
		return localbackend.New(localbackend.DefaultConfig(cfg.FSRoot))
	}
}
