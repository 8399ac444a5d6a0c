package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"backlinkoo/domains/internal/api"
	"backlinkoo/domains/internal/cloudflare"
	"backlinkoo/domains/internal/config"
	"backlinkoo/domains/internal/netlify"
	"backlinkoo/domains/internal/recon"
	"backlinkoo/domains/internal/store"

	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.RequireNetlify(); err != nil {
		log.Warnf("netlify credentials missing; domain operations will fail fast: %v", err)
	}
	if !cfg.HasSupabase() {
		log.Warn("supabase environment variables missing for domains service")
	}

	st := store.New(cfg, log)
	nf := netlify.New(cfg, log)
	registrar := cloudflare.New(cfg, log)
	engine := recon.New(cfg, nf, st, registrar, log)

	server := &api.Server{
		Config: cfg,
		Recon:  engine,
		Log:    log,
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           server.Routes(),
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("domains service listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server shutdown error: %v", err)
	}
}
