package di

import (
	"fmt"
	"time"

	"gorm.io/gorm"

	simadapters "bandtrader/internal/feature/simulation/adapters"
	simusecase "bandtrader/internal/feature/simulation/usecase"
	"bandtrader/internal/platform/config"
	"bandtrader/internal/platform/db"
)

// NewSimulationConfig converts the configured strategy defaults.
func NewSimulationConfig(cfg config.SimulationConfig) simusecase.Config {
	return simusecase.Config{
		Window:          cfg.Window,
		NumStdDev:       cfg.NumStdDev,
		ThresholdPct:    cfg.ThresholdPct,
		InitialCash:     cfg.InitialCash,
		MinProfitMargin: cfg.MinProfitMargin,
		LossTolerance:   cfg.LossTolerance,
	}
}

// OpenLedger opens the ledger database: the shared database when one is
// configured, otherwise the SQLite file at simulation.ledger_path.
func (a *App) OpenLedger() (simusecase.Ledger, error) {
	var ldb *gorm.DB
	if a.Shared != nil {
		ldb = a.Shared
	} else {
		var err error
		ldb, err = db.OpenSQLite(a.Config.Simulation.LedgerPath)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		a.closers = append(a.closers, func() error { return closeDB(ldb) })
	}
	if err := db.Migrate(ldb, simadapters.LedgerModels()...); err != nil {
		return nil, err
	}
	a.ledgerDB = ldb
	return simadapters.NewLedgerRepository(ldb, a.Calendar.Location()), nil
}

// NewSeriesSource serves the simulation from the catalog, through Redis when available.
func (a *App) NewSeriesSource(next func(time.Time) time.Time) simusecase.SeriesSource {
	decorate := NewReaderDecorator(a.Redis, a.Config.Redis.TTL, a.Calendar.Location(), a.Config.Ingest.Interval, next)
	return simadapters.NewSeriesSource(a.Catalog, decorate)
}
