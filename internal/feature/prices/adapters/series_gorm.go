package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/prices/usecase"
)

type seriesGorm struct {
	db       *gorm.DB
	loc      *time.Location
	interval string // empty in per-file stores, whose file name carries it
}

var (
	_ usecase.SeriesRepository = (*seriesGorm)(nil)
	_ usecase.SeriesAuditor    = (*seriesGorm)(nil)
	_ usecase.SeriesReader     = (*seriesGorm)(nil)
)

// NewSeriesRepository returns the Series Store backed by db. loc is the exchange
// timezone that price_date and price_time are expressed in.
func NewSeriesRepository(db *gorm.DB, loc *time.Location) *seriesGorm {
	return &seriesGorm{db: db, loc: loc}
}

// NewSharedSeriesRepository returns the Series Store for one sampling interval
// of a database that holds every interval side by side.
func NewSharedSeriesRepository(db *gorm.DB, loc *time.Location, interval string) *seriesGorm {
	return &seriesGorm{db: db, loc: loc, interval: interval}
}

// PriceModel is one stored observation. The composite unique index makes
// re-ingesting an overlapping window a no-op. SampleInterval stays empty in
// per-file stores.
type PriceModel struct {
	ID             uint    `gorm:"primaryKey"`
	StockName      string  `gorm:"column:stock_name;size:32;not null;uniqueIndex:idx_stock_prices_row,priority:1;index:idx_stock_prices_day,priority:1"`
	StockPrice     float64 `gorm:"column:stock_price;not null;uniqueIndex:idx_stock_prices_row,priority:2"`
	Volume         int64   `gorm:"column:volume;not null;uniqueIndex:idx_stock_prices_row,priority:3"`
	PriceTime      string  `gorm:"column:price_time;size:8;not null;uniqueIndex:idx_stock_prices_row,priority:4"`
	PriceDate      string  `gorm:"column:price_date;size:10;not null;uniqueIndex:idx_stock_prices_row,priority:5;index:idx_stock_prices_day,priority:3"`
	SampleInterval string  `gorm:"column:sample_interval;size:16;not null;default:'';uniqueIndex:idx_stock_prices_row,priority:6;index:idx_stock_prices_day,priority:2"`
}

func (PriceModel) TableName() string {
	return "stock_prices"
}

// rows scopes a query to symbol and, in a shared store, to the interval.
func (r *seriesGorm) rows(ctx context.Context, symbol string) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&PriceModel{}).Where("stock_name = ?", symbol)
	if r.interval != "" {
		q = q.Where("sample_interval = ?", r.interval)
	}
	return q
}

func (r *seriesGorm) toModel(o entity.Observation) PriceModel {
	t := o.Time.In(r.loc)
	return PriceModel{
		StockName:      o.Symbol,
		StockPrice:     o.Price,
		Volume:         o.Volume,
		PriceTime:      t.Format(entity.TimeLayout),
		PriceDate:      t.Format(entity.DayLayout),
		SampleInterval: r.interval,
	}
}

func (r *seriesGorm) toEntity(m PriceModel) (entity.Observation, error) {
	t, err := time.ParseInLocation(entity.DayLayout+" "+entity.TimeLayout, m.PriceDate+" "+m.PriceTime, r.loc)
	if err != nil {
		return entity.Observation{}, fmt.Errorf("parse stored time %s %s: %w", m.PriceDate, m.PriceTime, err)
	}
	return entity.Observation{Symbol: m.StockName, Price: m.StockPrice, Volume: m.Volume, Time: t}, nil
}

// AppendDay writes one day's rows in a single transaction. Rows already present
// are ignored; the returned count covers new rows only.
func (r *seriesGorm) AppendDay(ctx context.Context, symbol string, day time.Time, obs []entity.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}
	want := day.Format(entity.DayLayout)
	ms := make([]PriceModel, 0, len(obs))
	for _, o := range obs {
		o.Symbol = symbol
		m := r.toModel(o)
		if m.PriceDate != want {
			return 0, fmt.Errorf("row at %s %s does not belong to %s", m.PriceDate, m.PriceTime, want)
		}
		ms = append(ms, m)
	}

	var inserted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&ms, 500)
		if res.Error != nil {
			return res.Error
		}
		inserted = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Query returns one day's rows ordered by time.
func (r *seriesGorm) Query(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
	var rows []PriceModel
	err := r.rows(ctx, symbol).
		Where("price_date = ?", day.Format(entity.DayLayout)).
		Order("price_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.toEntities(rows)
}

// QueryRange returns the rows of [from, to] ordered by day and time.
func (r *seriesGorm) QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.Observation, error) {
	var rows []PriceModel
	err := r.rows(ctx, symbol).
		Where("price_date BETWEEN ? AND ?", from.Format(entity.DayLayout), to.Format(entity.DayLayout)).
		Order("price_date ASC, price_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return r.toEntities(rows)
}

func (r *seriesGorm) toEntities(rows []PriceModel) ([]entity.Observation, error) {
	out := make([]entity.Observation, 0, len(rows))
	for _, m := range rows {
		o, err := r.toEntity(m)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// MinMaxDays returns the first and last stored day for symbol.
func (r *seriesGorm) MinMaxDays(ctx context.Context, symbol string) (time.Time, time.Time, bool, error) {
	var span struct {
		FirstDay sql.NullString
		LastDay  sql.NullString
	}
	err := r.rows(ctx, symbol).
		Select("MIN(price_date) AS first_day, MAX(price_date) AS last_day").
		Scan(&span).Error
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	if !span.FirstDay.Valid || !span.LastDay.Valid {
		return time.Time{}, time.Time{}, false, nil
	}
	first, err := time.ParseInLocation(entity.DayLayout, span.FirstDay.String, r.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	last, err := time.ParseInLocation(entity.DayLayout, span.LastDay.String, r.loc)
	if err != nil {
		return time.Time{}, time.Time{}, false, err
	}
	return first, last, true, nil
}

// Days lists the distinct stored days in ascending order.
func (r *seriesGorm) Days(ctx context.Context, symbol string) ([]time.Time, error) {
	var raw []string
	err := r.rows(ctx, symbol).
		Distinct("price_date").
		Order("price_date ASC").
		Pluck("price_date", &raw).Error
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := time.ParseInLocation(entity.DayLayout, s, r.loc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Count returns the number of stored rows for symbol.
func (r *seriesGorm) Count(ctx context.Context, symbol string) (int64, error) {
	var n int64
	err := r.rows(ctx, symbol).Count(&n).Error
	return n, err
}

// Duplicates finds identical rows stored more than once. Stores created by this
// package cannot hold any; older files without the unique index can.
func (r *seriesGorm) Duplicates(ctx context.Context, symbol string) ([]entity.DuplicateGroup, error) {
	var rows []struct {
		PriceModel
		Cnt int
	}
	err := r.rows(ctx, symbol).
		Select("stock_name, stock_price, volume, price_time, price_date, sample_interval, COUNT(*) AS cnt").
		Group("stock_name, stock_price, volume, price_time, price_date, sample_interval").
		Having("COUNT(*) > 1").
		Order("price_date ASC, price_time ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]entity.DuplicateGroup, 0, len(rows))
	for _, row := range rows {
		o, err := r.toEntity(row.PriceModel)
		if err != nil {
			return nil, err
		}
		out = append(out, entity.DuplicateGroup{Observation: o, Count: row.Cnt})
	}
	return out, nil
}
