// Command ingest backfills intraday prices for one or more symbols.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bandtrader/internal/app/cli"
	"bandtrader/internal/app/di"
	priceentity "bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/prices/usecase"
)

const usage = "ingest <SYMBOLS> <start|auto> <end> <interval>"

// discoverFloor is where an "auto" start begins probing for data.
var discoverFloor = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

type resultView struct {
	Symbol           string `json:"symbol"`
	Requests         int    `json:"requests"`
	Rows             int64  `json:"rows"`
	DaysWritten      int    `json:"days_written"`
	LastCompletedDay string `json:"last_completed_day,omitempty"`
	Exhausted        bool   `json:"exhausted"`
}

func main() {
	if err := run(os.Args); err != nil {
		cli.Exit(os.Stderr, usage, err)
	}
}

func run(args []string) error {
	if err := cli.CheckArgs(args, 4); err != nil {
		return err
	}
	symbols, err := cli.ParseSymbols(args[1])
	if err != nil {
		return err
	}

	cfg, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	if err := cfg.ValidateProvider(); err != nil {
		return err
	}
	cfg.Provider.ResampleFreq = args[4]
	cfg.Ingest.Interval = args[4]

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

	end, err := app.Calendar.ParseDay(args[3])
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	bu, err := di.NewBackfillUsecase(cfg, app.Calendar)
	if err != nil {
		return err
	}
	stores := di.NewSeriesProvider(app.Redis, cfg.Ingest.Interval, app.Catalog)

	var (
		results []usecase.BackfillResult
		errs    []error
	)
	if args[2] == "auto" {
		for _, s := range symbols {
			start, ok, err := bu.DiscoverStart(ctx, s, discoverFloor, end)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				slog.Warn("no data available", "symbol", s, "until", end.Format(priceentity.DayLayout))
				continue
			}
			res, err := bu.IngestAll(ctx, stores, []string{s}, start, end)
			results = append(results, res...)
			errs = append(errs, err)
		}
	} else {
		start, err := app.Calendar.ParseDay(args[2])
		if err != nil {
			return fmt.Errorf("start: %w", err)
		}
		res, err := bu.IngestAll(ctx, stores, symbols, start, end)
		results = res
		errs = append(errs, err)
	}

	out := make([]resultView, 0, len(results))
	for _, r := range results {
		v := resultView{
			Symbol:      r.Symbol,
			Requests:    r.Requests,
			Rows:        r.Rows,
			DaysWritten: r.DaysWritten,
			Exhausted:   r.Exhausted,
		}
		if !r.LastCompletedDay.IsZero() {
			v.LastCompletedDay = r.LastCompletedDay.Format(priceentity.DayLayout)
		}
		out = append(out, v)
	}
	if err := cli.PrintJSON(os.Stdout, out); err != nil {
		return err
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("ingest ok", "symbols", symbols)
	return nil
}
