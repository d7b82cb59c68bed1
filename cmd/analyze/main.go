// Command analyze prints volatility metrics for a stored series.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"bandtrader/internal/app/cli"
	"bandtrader/internal/app/di"
	bandentity "bandtrader/internal/feature/bands/domain/entity"
	"bandtrader/internal/feature/bands/usecase"
)

const usage = "analyze <SYMBOL> <start> <end> <interval>"

type metricsView struct {
	Symbol          string          `json:"symbol"`
	Range           string          `json:"range"`
	Observations    int             `json:"observations"`
	Band            bandentity.Band `json:"band"`
	ATR             float64         `json:"atr"`
	CV              float64         `json:"cv"`
	RSI             *float64        `json:"rsi"`
	SMA             *float64        `json:"sma"`
	VolatilityIndex *float64        `json:"volatility_index"`
}

func main() {
	if err := run(os.Args); err != nil {
		cli.Exit(os.Stderr, usage, err)
	}
}

func ready(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func run(args []string) error {
	if err := cli.CheckArgs(args, 4); err != nil {
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

	from, err := app.Calendar.ParseDay(args[2])
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	to, err := app.Calendar.ParseDay(args[3])
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}

	reader, err := app.Catalog.Reader(ctx, symbol)
	if err != nil {
		return err
	}
	au := usecase.NewAnalyzeUsecase(cfg.Simulation.Window, cfg.Simulation.NumStdDev)
	m, span, err := au.Analyze(ctx, reader, symbol, from, to)
	if err != nil {
		return err
	}
	return cli.PrintJSON(os.Stdout, metricsView{
		Symbol:          m.Symbol,
		Range:           span.String(),
		Observations:    m.Observations,
		Band:            m.Band,
		ATR:             m.ATR,
		CV:              m.CV,
		RSI:             ready(m.RSI, m.RSIReady),
		SMA:             ready(m.SMA, m.SMAReady),
		VolatilityIndex: ready(m.VolatilityIndex, m.VolatilityReady),
	})
}
