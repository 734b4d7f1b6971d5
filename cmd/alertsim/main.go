package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cisseniang564/ProvTech-sub001/internal/config"
	"github.com/cisseniang564/ProvTech-sub001/internal/pkg/logger"
	"github.com/cisseniang564/ProvTech-sub001/internal/simulator"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	simCfg := simulator.Config{
		Token:       cfg.Server.Token,
		HealthEvery: cfg.Sim.HealthEvery,
		FireEvery:   cfg.Sim.FireEvery,
		Version:     cfg.Sim.Version,
	}
	if cfg.Sim.Scenario != "" {
		sc, err := simulator.LoadScenario(cfg.Sim.Scenario)
		if err != nil {
			return fmt.Errorf("failed to load scenario: %w", err)
		}
		simCfg.Scenario = sc
		log.WithFields(map[string]interface{}{
			"scenario": sc.Name,
			"steps":    len(sc.Steps),
			"loop":     sc.Loop,
		}).Info("Scenario loaded")
	}

	sim := simulator.New(simCfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := sim.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.ErrorWithErr(err, "Simulator loop exited")
		}
	}()

	// No read/write timeouts: the push endpoint holds connections open
	// for the life of the client.
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: sim.Handler(),
	}

	errChan := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"addr":    cfg.Server.Addr,
			"version": cfg.Sim.Version,
		}).Info("alertsim listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr(err, "Shutdown error")
	}
	log.Info("alertsim stopped")

	return nil
}
