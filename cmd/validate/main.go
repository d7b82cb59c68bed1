// Command validate reports missing trading days and duplicate rows in a stored series.
package main

import (
	"context"
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

const usage = "validate <SYMBOL> <interval>"

type duplicateView struct {
	Time   string  `json:"time"`
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	Count  int     `json:"count"`
}

type reportView struct {
	Symbol       string          `json:"symbol"`
	FirstDay     string          `json:"first_day"`
	LastDay      string          `json:"last_day"`
	ExpectedDays int             `json:"expected_days"`
	ActualDays   int             `json:"actual_days"`
	CoveragePct  float64         `json:"coverage_pct"`
	Missing      []string        `json:"missing"`
	Duplicates   []duplicateView `json:"duplicates"`
}

func main() {
	if err := run(os.Args); err != nil {
		cli.Exit(os.Stderr, usage, err)
	}
}

func run(args []string) error {
	if err := cli.CheckArgs(args, 2); err != nil {
		return err
	}
	symbols, err := cli.ParseSymbols(args[1])
	if err != nil {
		return err
	}
	symbol := symbols[0]

	cfg, err := cli.Bootstrap()
	if err != nil {
		return err
	}
	cfg.Ingest.Interval = args[2]

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

	store, err := app.Catalog.Find(ctx, symbol)
	if err != nil {
		return err
	}
	rep, err := usecase.NewValidateUsecase(app.Calendar).Validate(ctx, store, symbol)
	if err != nil {
		return err
	}

	out := reportView{
		Symbol:       rep.Symbol,
		FirstDay:     rep.FirstDay.Format(priceentity.DayLayout),
		LastDay:      rep.LastDay.Format(priceentity.DayLayout),
		ExpectedDays: rep.ExpectedDays,
		ActualDays:   rep.ActualDays,
		CoveragePct:  rep.CoveragePct,
		Missing:      make([]string, 0, len(rep.Missing)),
		Duplicates:   make([]duplicateView, 0, len(rep.Duplicates)),
	}
	for _, m := range rep.Missing {
		out.Missing = append(out.Missing, m.String())
	}
	for _, d := range rep.Duplicates {
		out.Duplicates = append(out.Duplicates, duplicateView{
			Time:   d.Observation.Time.In(app.Calendar.Location()).Format(time.DateTime),
			Price:  d.Observation.Price,
			Volume: d.Observation.Volume,
			Count:  d.Count,
		})
	}
	return cli.PrintJSON(os.Stdout, out)
}
