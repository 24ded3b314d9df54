// @title Datashare API
// @version 1.0
// @description Dataset upload, storage, download and statistics service
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/weiwangfds/datashare/config"
	"github.com/weiwangfds/datashare/internal/database"
	"github.com/weiwangfds/datashare/internal/logger"
	"github.com/weiwangfds/datashare/internal/router"
	"github.com/weiwangfds/datashare/internal/service/dataset"
	"github.com/weiwangfds/datashare/internal/service/events"
	"github.com/weiwangfds/datashare/internal/service/intake"
	"github.com/weiwangfds/datashare/internal/service/mirror"
	"github.com/weiwangfds/datashare/internal/service/stats"
	"github.com/weiwangfds/datashare/internal/service/user"
	"golang.org/x/net/http2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(&cfg.Log); err != nil {
		logger.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	var scanner intake.Scanner
	if cfg.Upload.ClamAVAddress != "" {
		clam := intake.NewClamAVScanner(cfg.Upload.ClamAVAddress)
		if err := clam.Ping(); err != nil {
			logger.Warnf("ClamAV at %s not reachable yet: %v", cfg.Upload.ClamAVAddress, err)
		}
		scanner = clam
	}
	stager, err := intake.NewStager(cfg.Upload.ScratchDir, scanner)
	if err != nil {
		logger.Fatalf("Failed to prepare scratch directory: %v", err)
	}

	publisher, err := events.New(cfg.Events)
	if err != nil {
		logger.Fatalf("Failed to connect event publisher: %v", err)
	}

	users := user.NewDirectory(db, cfg.Cache.UserCacheSize, cfg.Cache.UserCacheTTL)
	opts := []dataset.Option{dataset.WithPublisher(publisher)}

	objectMirror, err := mirror.New(cfg.Mirror)
	if err != nil {
		logger.Fatalf("Failed to configure storage mirror: %v", err)
	}
	if objectMirror != nil {
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
		if err := objectMirror.Ping(pingCtx); err != nil {
			logger.Warnf("Storage mirror %s not reachable: %v", objectMirror.Name(), err)
		}
		cancelPing()
		opts = append(opts, dataset.WithMirror(objectMirror))
	}

	r := router.NewRouter(router.Dependencies{
		DB:       db,
		Datasets: dataset.NewService(db, users, opts...),
		Stats:    stats.NewService(db),
		Stager:   stager,
		Users:    users,
	}, cfg)

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      r.GetEngine(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
	if cfg.Server.EnableHTTPS {
		srv.Addr = ":" + strconv.Itoa(cfg.Server.HTTPSPort)
		srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			NextProtos: []string{"http/1.1"},
		}
		if cfg.Server.EnableHTTP2 {
			if err := http2.ConfigureServer(srv, &http2.Server{}); err != nil {
				logger.Fatalf("Failed to configure HTTP/2: %v", err)
			}
		}
	}

	go func() {
		var err error
		if cfg.Server.EnableHTTPS {
			logger.Infof("HTTPS server listening on %s (HTTP/2: %v)", srv.Addr, cfg.Server.EnableHTTP2)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logger.Infof("HTTP server listening on %s", srv.Addr)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Forced shutdown: %v", err)
	}
	if err := publisher.Close(); err != nil {
		logger.Warnf("Error closing event publisher: %v", err)
	}
	if err := database.Close(db); err != nil {
		logger.Warnf("Error closing database: %v", err)
	}

	logger.Info("Server exited")
}
