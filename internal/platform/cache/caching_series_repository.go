// Package cache provides Redis decorators for the Series Store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/prices/usecase"
)

// cachedObservation is the compact wire form stored in Redis.
type cachedObservation struct {
	P float64 `json:"p"`
	V int64   `json:"v"`
	T int64   `json:"t"` // unix milliseconds
}

// keyspace owns the Redis client and key layout shared by the decorators.
// A nil client turns every operation into a pass-through.
type keyspace struct {
	rdb         *redis.Client
	ttl         time.Duration
	namespace   string
	nextRefresh func(time.Time) time.Time
	now         func() time.Time
}

// Option configures a decorator.
type Option func(*keyspace)

// WithRefreshSchedule caps entry lifetimes at the next scheduled refresh, so
// a day cached just before ingestion does not outlive it.
func WithRefreshSchedule(next func(time.Time) time.Time) Option {
	return func(k *keyspace) { k.nextRefresh = next }
}

func newKeyspace(rdb *redis.Client, ttl time.Duration, namespace string, opts []Option) keyspace {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "series"
	}
	k := keyspace{rdb: rdb, ttl: ttl, namespace: namespace, now: time.Now}
	for _, opt := range opts {
		opt(&k)
	}
	return k
}

func (k keyspace) entryTTL() time.Duration {
	if k.nextRefresh == nil {
		return k.ttl
	}
	now := k.now()
	return BoundedTTL(k.ttl, now, k.nextRefresh(now))
}

func (k keyspace) symbolPrefix(symbol string) string {
	return fmt.Sprintf("%s:%s:", k.namespace, safe(symbol))
}

func (k keyspace) dayKey(symbol string, day time.Time) string {
	return k.symbolPrefix(symbol) + "day:" + day.Format(entity.DayLayout)
}

func (k keyspace) rangeKey(symbol string, from, to time.Time) string {
	return k.symbolPrefix(symbol) + "range:" + from.Format(entity.DayLayout) + ":" + to.Format(entity.DayLayout)
}

// Invalidate drops every cached query for symbol.
func (k keyspace) Invalidate(ctx context.Context, symbol string) error {
	if k.rdb == nil {
		return nil
	}
	return k.deleteByPattern(ctx, k.symbolPrefix(symbol)+"*")
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (k keyspace) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := k.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := k.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// cached serves key from Redis, falling back to load and storing its result.
func (k keyspace) cached(ctx context.Context, key, symbol string, loc *time.Location,
	load func() ([]entity.Observation, error)) ([]entity.Observation, error) {
	if k.rdb == nil {
		return load()
	}

	// 1) cache hit
	if b, err := k.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var rows []cachedObservation
		if err := json.Unmarshal(b, &rows); err == nil {
			return fromCached(symbol, rows, loc), nil
		}
		// corrupted entry
		_ = k.rdb.Del(ctx, key).Err()
	}

	// 2) store
	out, err := load()
	if err != nil {
		return nil, err
	}

	// 3) best-effort write back
	if b, err := json.Marshal(toCached(out)); err == nil {
		_ = k.rdb.Set(ctx, key, b, k.entryTTL()).Err()
	}
	return out, nil
}

func toCached(obs []entity.Observation) []cachedObservation {
	out := make([]cachedObservation, 0, len(obs))
	for _, o := range obs {
		out = append(out, cachedObservation{P: o.Price, V: o.Volume, T: o.Time.UnixMilli()})
	}
	return out
}

func fromCached(symbol string, rows []cachedObservation, loc *time.Location) []entity.Observation {
	if loc == nil {
		loc = time.UTC
	}
	out := make([]entity.Observation, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.Observation{Symbol: symbol, Price: r.P, Volume: r.V, Time: time.UnixMilli(r.T).In(loc)})
	}
	return out
}

// CachingSeriesReader decorates a SeriesReader with Redis caching of day and
// range queries. MinMaxDays always reaches the store.
type CachingSeriesReader struct {
	keyspace
	inner usecase.SeriesReader
	loc   *time.Location
}

var _ usecase.SeriesReader = (*CachingSeriesReader)(nil)

// NewCachingSeriesReader decorates inner. A nil rdb bypasses the cache. If ttl
// is 0 it defaults to 5 minutes; an empty namespace becomes "series".
func NewCachingSeriesReader(rdb *redis.Client, ttl time.Duration, inner usecase.SeriesReader, loc *time.Location, namespace string, opts ...Option) *CachingSeriesReader {
	return &CachingSeriesReader{
		keyspace: newKeyspace(rdb, ttl, namespace, opts),
		inner:    inner,
		loc:      loc,
	}
}

func (c *CachingSeriesReader) Query(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
	return c.cached(ctx, c.dayKey(symbol, day), symbol, c.loc, func() ([]entity.Observation, error) {
		return c.inner.Query(ctx, symbol, day)
	})
}

func (c *CachingSeriesReader) QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.Observation, error) {
	return c.cached(ctx, c.rangeKey(symbol, from, to), symbol, c.loc, func() ([]entity.Observation, error) {
		return c.inner.QueryRange(ctx, symbol, from, to)
	})
}

func (c *CachingSeriesReader) MinMaxDays(ctx context.Context, symbol string) (time.Time, time.Time, bool, error) {
	return c.inner.MinMaxDays(ctx, symbol)
}

// CachingSeriesProvider decorates a SeriesProvider so that every store it
// hands out invalidates the symbol's cached queries after a write.
type CachingSeriesProvider struct {
	keyspace
	inner usecase.SeriesProvider
}

var _ usecase.SeriesProvider = (*CachingSeriesProvider)(nil)

// NewCachingSeriesProvider decorates inner using the same key layout as
// NewCachingSeriesReader with the same namespace.
func NewCachingSeriesProvider(rdb *redis.Client, inner usecase.SeriesProvider, namespace string) *CachingSeriesProvider {
	return &CachingSeriesProvider{keyspace: newKeyspace(rdb, 0, namespace, nil), inner: inner}
}

func (p *CachingSeriesProvider) ForSymbol(ctx context.Context, symbol string, start, end time.Time) (usecase.SeriesRepository, error) {
	store, err := p.inner.ForSymbol(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if p.rdb == nil {
		return store, nil
	}
	return &invalidatingStore{SeriesRepository: store, keys: p.keyspace}, nil
}

type invalidatingStore struct {
	usecase.SeriesRepository
	keys keyspace
}

func (s *invalidatingStore) AppendDay(ctx context.Context, symbol string, day time.Time, obs []entity.Observation) (int64, error) {
	n, err := s.SeriesRepository.AppendDay(ctx, symbol, day, obs)
	if err != nil {
		return n, err
	}
	if n > 0 {
		_ = s.keys.Invalidate(ctx, symbol) // best effort
	}
	return n, nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
