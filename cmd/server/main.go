// Command server runs the HTTP API and the scheduled refresh backfill.
//
//	server                 serve until SIGINT or SIGTERM
//	server token <subject> print a bearer token for an API client
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bandtrader/internal/app/cli"
	"bandtrader/internal/app/di"
	"bandtrader/internal/app/router"
	simhandler "bandtrader/internal/feature/simulation/transport/handler"
	simusecase "bandtrader/internal/feature/simulation/usecase"
	"bandtrader/internal/platform/config"
	jwtmw "bandtrader/internal/platform/jwt"
	"bandtrader/internal/platform/scheduler"
)

const usage = "server | server token <subject>"

const (
	refreshJob          = "refresh"
	refreshLookbackDays = 30
	shutdownTimeout     = 15 * time.Second
)

func main() {
	if err := run(os.Args); err != nil {
		cli.Exit(os.Stderr, usage, err)
	}
}

func run(args []string) error {
	if len(args) > 1 && args[1] == "token" {
		if err := cli.CheckArgs(args, 2); err != nil {
			return err
		}
	} else if err := cli.CheckArgs(args, 0); err != nil {
		return err
	}

	cfg, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	if cfg.Server.JWTSecret == "" {
		return errors.New("server.jwt_secret (or JWT_SECRET) is required")
	}
	if len(args) == 3 {
		token, err := jwtmw.NewGenerator(cfg.Server.JWTSecret, cfg.Server.TokenTTL).GenerateToken(args[2])
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}
	return serve(cfg)
}

func serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := di.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Error("failed to close connections", "error", err)
		}
	}()

	ledger, err := app.OpenLedger()
	if err != nil {
		return err
	}

	sched := scheduler.New(app.Calendar.Location())
	next, err := addRefresh(cfg, app, sched)
	if err != nil {
		slog.Warn("scheduled refresh disabled", "error", err)
	}

	registry := simusecase.NewRunRegistry(ctx, di.NewSimulationConfig(cfg.Simulation), app.Calendar, ledger, app.NewSeriesSource(next))
	simH := simhandler.NewSimulationHandler(registry, app.Calendar.Location())
	engine := router.NewRouter(app.HealthChecks(), simH, cfg.Server.JWTSecret)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start()
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			sched.Stop(context.Background())
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	sched.Stop(shutdownCtx)
	registry.Wait()
	return nil
}

// addRefresh schedules the refresh backfill of the configured symbols and
// returns the schedule's next-fire function, or nil when no job is configured.
func addRefresh(cfg *config.Config, app *di.App, sched *scheduler.Scheduler) (func(time.Time) time.Time, error) {
	if cfg.Ingest.RefreshCron == "" || len(cfg.Ingest.Symbols) == 0 {
		return nil, nil
	}
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}
	bu, err := di.NewBackfillUsecase(cfg, app.Calendar)
	if err != nil {
		return nil, err
	}
	stores := di.NewSeriesProvider(app.Redis, cfg.Ingest.Interval, app.Catalog)
	symbols := cfg.Ingest.Symbols

	schedule, err := sched.Add(refreshJob, cfg.Ingest.RefreshCron, func(ctx context.Context) error {
		results, err := bu.Refresh(ctx, stores, app.Catalog, symbols, time.Now(), refreshLookbackDays)
		for _, r := range results {
			slog.Info("refreshed", "symbol", r.Symbol, "rows", r.Rows, "days_written", r.DaysWritten)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return schedule.Next, nil
}
