package di

import (
	"time"

	"github.com/redis/go-redis/v9"

	pricesusecase "bandtrader/internal/feature/prices/usecase"
	"bandtrader/internal/platform/cache"
)

// seriesNamespace keeps the cached queries of each sampling interval apart,
// e.g. "series:1min".
func seriesNamespace(interval string) string {
	return "series:" + interval
}

// NewSeriesProvider returns the ingestion side of the catalog. With Redis the
// cached queries of a symbol at interval are dropped whenever new rows are written.
func NewSeriesProvider(rdb *redis.Client, interval string, inner pricesusecase.SeriesProvider) pricesusecase.SeriesProvider {
	if rdb == nil {
		return inner
	}
	return cache.NewCachingSeriesProvider(rdb, inner, seriesNamespace(interval))
}

// NewReaderDecorator returns a function wrapping series readers of interval
// with the Redis read-through cache, or nil without Redis. next, when set,
// bounds entry lifetimes by the next scheduled refresh.
func NewReaderDecorator(rdb *redis.Client, ttl time.Duration, loc *time.Location, interval string, next func(time.Time) time.Time) func(pricesusecase.SeriesReader) pricesusecase.SeriesReader {
	if rdb == nil {
		return nil
	}
	var opts []cache.Option
	if next != nil {
		opts = append(opts, cache.WithRefreshSchedule(next))
	}
	namespace := seriesNamespace(interval)
	return func(r pricesusecase.SeriesReader) pricesusecase.SeriesReader {
		return cache.NewCachingSeriesReader(rdb, ttl, r, loc, namespace, opts...)
	}
}
