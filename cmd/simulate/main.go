// Command simulate replays a multi-symbol band strategy over stored prices
// and prints the final report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bandtrader/internal/app/cli"
	"bandtrader/internal/app/di"
	"bandtrader/internal/feature/simulation/transport/http/dto"
	"bandtrader/internal/feature/simulation/usecase"
)

const usage = "simulate <SYMBOLS> <seed_start> <seed_end> <interval> <sim_start> <sim_end> <threshold_pct> <initial_cash>"

type output struct {
	RunID       string   `json:"run_id"`
	Symbols     []string `json:"symbols"`
	InitialCash float64  `json:"initial_cash"`
	*dto.ReportResponse
}

func main() {
	if err := run(os.Args); err != nil {
		cli.Exit(os.Stderr, usage, err)
	}
}

func run(args []string) error {
	if err := cli.CheckArgs(args, 8); err != nil {
		return err
	}
	symbols, err := cli.ParseSymbols(args[1])
	if err != nil {
		return err
	}
	threshold, err := cli.ParseNumber("threshold_pct", args[7])
	if err != nil {
		return err
	}
	cash, err := cli.ParseNumber("initial_cash", args[8])
	if err != nil {
		return err
	}

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

	req := usecase.RunRequest{Symbols: symbols, Interval: args[4]}
	days := []struct {
		name string
		in   string
		dst  *time.Time
	}{
		{"seed_start", args[2], &req.SeedStart},
		{"seed_end", args[3], &req.SeedEnd},
		{"sim_start", args[5], &req.SimStart},
		{"sim_end", args[6], &req.SimEnd},
	}
	for _, d := range days {
		t, err := app.Calendar.ParseDay(d.in)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = t
	}

	ledger, err := app.OpenLedger()
	if err != nil {
		return err
	}
	simCfg := di.NewSimulationConfig(cfg.Simulation)
	simCfg.ThresholdPct = threshold
	simCfg.InitialCash = cash

	engine := usecase.NewEngine(simCfg, app.Calendar, ledger)
	rep, err := engine.Run(ctx, req, app.NewSeriesSource(nil))
	if err != nil {
		return err
	}
	return cli.PrintJSON(os.Stdout, output{
		RunID:          rep.RunID,
		Symbols:        rep.Symbols,
		InitialCash:    rep.InitialCash.InexactFloat64(),
		ReportResponse: dto.NewReportResponse(rep),
	})
}
