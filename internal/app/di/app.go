package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	pricesadapters "bandtrader/internal/feature/prices/adapters"
	"bandtrader/internal/platform/calendar"
	"bandtrader/internal/platform/config"
	"bandtrader/internal/platform/db"
	"bandtrader/internal/platform/http/handler"
	infraredis "bandtrader/internal/platform/redis"
)

const connectTimeout = 30 * time.Second

// App holds the components shared by every command.
type App struct {
	Config   *config.Config
	Calendar *calendar.TradingCalendar
	Catalog  *pricesadapters.Catalog
	Redis    *redis.Client // nil when Redis is disabled or unreachable
	Shared   *gorm.DB      // nil with the sqlite driver

	ledgerDB *gorm.DB
	closers  []func() error
}

// NewApp opens the series catalog and, when configured, Redis. A Redis outage
// only disables caching.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	cal, err := calendar.New(cfg.Ingest.Timezone)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Calendar: cal}

	switch cfg.Database.Driver {
	case db.DriverPostgres:
		shared, err := db.ConnectWithRetry(cfg.Database.DSN, connectTimeout, db.OpenPostgres)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(shared, &pricesadapters.PriceModel{}); err != nil {
			closeDB(shared)
			return nil, err
		}
		app.Shared = shared
		app.Catalog = pricesadapters.NewSharedCatalog(shared, cal.Location(), cfg.Ingest.Interval)
		app.closers = append(app.closers, func() error { return closeDB(shared) })
	default:
		app.Catalog = pricesadapters.NewFileCatalog(cfg.Ingest.DataDir, cfg.Ingest.Interval, cal.Location(), db.OpenSQLite)
		app.closers = append(app.closers, app.Catalog.Close)
	}

	rdb, err := infraredis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, running without cache", "addr", cfg.Redis.Addr(), "error", err)
	} else if rdb != nil {
		app.Redis = rdb
		app.closers = append(app.closers, rdb.Close)
	}
	return app, nil
}

// Close releases every connection in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HealthChecks returns a probe for every connection the server depends on.
func (a *App) HealthChecks() map[string]handler.Check {
	checks := map[string]handler.Check{}
	if a.ledgerDB != nil {
		ldb := a.ledgerDB
		checks["ledger"] = func(ctx context.Context) error { return pingDB(ctx, ldb) }
	}
	if a.Shared != nil && a.Shared != a.ledgerDB {
		shared := a.Shared
		checks["database"] = func(ctx context.Context) error { return pingDB(ctx, shared) }
	}
	if a.Redis != nil {
		rdb := a.Redis
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

func pingDB(ctx context.Context, g *gorm.DB) error {
	sqlDB, err := g.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func closeDB(g *gorm.DB) error {
	sqlDB, err := g.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
