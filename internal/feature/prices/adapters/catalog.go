package adapters

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"bandtrader/internal/feature/prices/usecase"
)

const fileDayLayout = "2006.01.02"

// SeriesFileName names the file holding symbol's series for [start, end]
// sampled at interval, e.g. "AAPL_2024.01.02_2024.03.28_1min.db".
func SeriesFileName(symbol string, start, end time.Time, interval string) string {
	return fmt.Sprintf("%s_%s_%s_%s.db", symbol, start.Format(fileDayLayout), end.Format(fileDayLayout), interval)
}

type seriesFile struct {
	path  string
	start time.Time
	end   time.Time
}

func parseSeriesFileName(path, symbol, interval string) (seriesFile, bool) {
	name := strings.TrimSuffix(filepath.Base(path), ".db")
	parts := strings.Split(name, "_")
	if len(parts) != 4 || parts[0] != symbol || parts[3] != interval {
		return seriesFile{}, false
	}
	start, err := time.Parse(fileDayLayout, parts[1])
	if err != nil {
		return seriesFile{}, false
	}
	end, err := time.Parse(fileDayLayout, parts[2])
	if err != nil {
		return seriesFile{}, false
	}
	return seriesFile{path: path, start: start, end: end}, true
}

// Catalog resolves the Series Store for a symbol. With SQLite every symbol and
// range lives in its own file under the data directory; with a shared database
// every symbol lives in the same stock_prices table.
type Catalog struct {
	dataDir  string
	interval string
	loc      *time.Location
	open     func(path string) (*gorm.DB, error)
	migrate  func(db *gorm.DB) error
	shared   *gorm.DB

	mu    sync.Mutex
	conns map[string]*gorm.DB
}

var _ usecase.SeriesProvider = (*Catalog)(nil)

// NewFileCatalog returns a Catalog of per-symbol SQLite files in dataDir.
func NewFileCatalog(dataDir, interval string, loc *time.Location, open func(path string) (*gorm.DB, error)) *Catalog {
	return &Catalog{
		dataDir:  dataDir,
		interval: interval,
		loc:      loc,
		open:     open,
		migrate:  func(db *gorm.DB) error { return db.AutoMigrate(&PriceModel{}) },
		conns:    make(map[string]*gorm.DB),
	}
}

// NewSharedCatalog returns a Catalog serving every symbol sampled at interval
// from db. Other intervals in the same table are invisible to it.
func NewSharedCatalog(db *gorm.DB, loc *time.Location, interval string) *Catalog {
	return &Catalog{shared: db, loc: loc, interval: interval}
}

func (c *Catalog) conn(path string, create bool) (*gorm.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if db, ok := c.conns[path]; ok {
		return db, nil
	}
	if !create {
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
	}
	db, err := c.open(path)
	if err != nil {
		return nil, err
	}
	if err := c.migrate(db); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	c.conns[path] = db
	return db, nil
}

// ForSymbol opens the store for an ingestion of symbol over [start, end],
// creating its file when needed.
func (c *Catalog) ForSymbol(ctx context.Context, symbol string, start, end time.Time) (usecase.SeriesRepository, error) {
	if c.shared != nil {
		return NewSharedSeriesRepository(c.shared, c.loc, c.interval), nil
	}
	path := filepath.Join(c.dataDir, SeriesFileName(symbol, start, end, c.interval))
	if err := c.extendInPlace(symbol, start, end, path); err != nil {
		return nil, err
	}
	db, err := c.conn(path, true)
	if err != nil {
		return nil, err
	}
	return NewSeriesRepository(db, c.loc), nil
}

// extendInPlace renames the newest file with the same start and an earlier end
// to path, so a later ingestion over a longer range appends to it instead of
// starting an empty file.
func (c *Catalog) extendInPlace(symbol string, start, end time.Time, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	files, err := c.files(symbol)
	if err != nil {
		return err
	}
	startDay := start.Format(fileDayLayout)
	endDay := end.Format(fileDayLayout)
	for _, f := range files {
		if f.start.Format(fileDayLayout) != startDay || f.end.Format(fileDayLayout) >= endDay {
			continue
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if db, ok := c.conns[f.path]; ok {
			if sqlDB, err := db.DB(); err == nil {
				if err := sqlDB.Close(); err != nil {
					slog.Warn("failed to close series file before rename", "path", f.path, "error", err)
				}
			}
			delete(c.conns, f.path)
		}
		for _, suffix := range []string{"", "-wal", "-shm"} {
			err := os.Rename(f.path+suffix, path+suffix)
			if err != nil && !(suffix != "" && errors.Is(err, os.ErrNotExist)) {
				return fmt.Errorf("extend %s: %w", filepath.Base(f.path), err)
			}
		}
		slog.Info("extending series file", "from", filepath.Base(f.path), "to", filepath.Base(path))
		return nil
	}
	return nil
}

// files lists symbol's series files, newest end first.
func (c *Catalog) files(symbol string) ([]seriesFile, error) {
	matches, err := filepath.Glob(filepath.Join(c.dataDir, symbol+"_*_"+c.interval+".db"))
	if err != nil {
		return nil, err
	}
	var files []seriesFile
	for _, m := range matches {
		if f, ok := parseSeriesFileName(m, symbol, c.interval); ok {
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if !files[i].end.Equal(files[j].end) {
			return files[i].end.After(files[j].end)
		}
		return files[i].start.Before(files[j].start)
	})
	return files, nil
}

// Span returns the range covered by symbol's latest series: the requested range
// encoded in the file name in file mode, the stored days with a shared database.
func (c *Catalog) Span(ctx context.Context, symbol string) (start, end time.Time, ok bool, err error) {
	if c.shared != nil {
		return NewSharedSeriesRepository(c.shared, c.loc, c.interval).MinMaxDays(ctx, symbol)
	}
	files, err := c.files(symbol)
	if err != nil || len(files) == 0 {
		return time.Time{}, time.Time{}, false, err
	}
	f := files[0]
	return c.inLoc(f.start), c.inLoc(f.end), true, nil
}

func (c *Catalog) inLoc(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// Find returns the store for symbol. In file mode the file with the latest end
// day wins. usecase.ErrNoSeries is returned when nothing has been ingested.
func (c *Catalog) Find(ctx context.Context, symbol string) (*seriesGorm, error) {
	if c.shared != nil {
		repo := NewSharedSeriesRepository(c.shared, c.loc, c.interval)
		n, err := repo.Count(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: %s", usecase.ErrNoSeries, symbol)
		}
		return repo, nil
	}

	files, err := c.files(symbol)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s (%s) in %s", usecase.ErrNoSeries, symbol, c.interval, c.dataDir)
	}

	db, err := c.conn(files[0].path, false)
	if err != nil {
		return nil, err
	}
	return NewSeriesRepository(db, c.loc), nil
}

// Reader returns the query side of symbol's store.
func (c *Catalog) Reader(ctx context.Context, symbol string) (usecase.SeriesReader, error) {
	repo, err := c.Find(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Close closes every file opened by the catalog.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for path, db := range c.conns {
		if sqlDB, err := db.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
		delete(c.conns, path)
	}
	return errors.Join(errs...)
}
