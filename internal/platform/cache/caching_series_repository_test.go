package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/prices/usecase"
)

var newYork = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

// mockSeriesReader is a SeriesReader mock for tests.
type mockSeriesReader struct {
	queryFn      func(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error)
	queryRangeFn func(ctx context.Context, symbol string, from, to time.Time) ([]entity.Observation, error)
	queryCalls   int
}

func (m *mockSeriesReader) Query(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
	m.queryCalls++
	if m.queryFn != nil {
		return m.queryFn(ctx, symbol, day)
	}
	return nil, nil
}

func (m *mockSeriesReader) QueryRange(ctx context.Context, symbol string, from, to time.Time) ([]entity.Observation, error) {
	if m.queryRangeFn != nil {
		return m.queryRangeFn(ctx, symbol, from, to)
	}
	return nil, nil
}

func (m *mockSeriesReader) MinMaxDays(ctx context.Context, symbol string) (time.Time, time.Time, bool, error) {
	return time.Time{}, time.Time{}, false, nil
}

var (
	testDay  = time.Date(2024, 1, 2, 0, 0, 0, 0, newYork)
	testRows = []entity.Observation{
		{Symbol: "AAPL", Price: 185.5, Volume: 1200, Time: time.Date(2024, 1, 2, 9, 30, 0, 0, newYork)},
		{Symbol: "AAPL", Price: 186, Volume: 800, Time: time.Date(2024, 1, 2, 9, 31, 0, 0, newYork)},
	}
)

func cachedJSON(t *testing.T, rows []entity.Observation) []byte {
	t.Helper()
	b, err := json.Marshal(toCached(rows))
	require.NoError(t, err)
	return b
}

func TestNewCachingSeriesReader_Defaults(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name              string
		ttl               time.Duration
		namespace         string
		expectedTTL       time.Duration
		expectedNamespace string
	}{
		{name: "default values when zero/empty", expectedTTL: 5 * time.Minute, expectedNamespace: "series"},
		{name: "negative ttl uses default", ttl: -time.Minute, expectedTTL: 5 * time.Minute, expectedNamespace: "series"},
		{name: "custom values", ttl: time.Hour, namespace: "px", expectedTTL: time.Hour, expectedNamespace: "px"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewCachingSeriesReader(nil, tt.ttl, &mockSeriesReader{}, newYork, tt.namespace)
			assert.Equal(t, tt.expectedTTL, c.ttl)
			assert.Equal(t, tt.expectedNamespace, c.namespace)
		})
	}
}

func TestCachingSeriesReader_Query_CacheHit(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	inner := &mockSeriesReader{}
	c := NewCachingSeriesReader(rdb, 5*time.Minute, inner, newYork, "")

	mock.ExpectGet("series:AAPL:day:2024-01-02").SetVal(string(cachedJSON(t, testRows)))

	got, err := c.Query(context.Background(), "AAPL", testDay)

	require.NoError(t, err)
	assert.Zero(t, inner.queryCalls, "store is not queried on a hit")
	require.Len(t, got, 2)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.True(t, testRows[1].Time.Equal(got[1].Time))
	assert.Equal(t, newYork, got[1].Time.Location())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSeriesReader_Query_CacheMiss(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	inner := &mockSeriesReader{queryFn: func(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
		return testRows, nil
	}}
	c := NewCachingSeriesReader(rdb, 5*time.Minute, inner, newYork, "")

	mock.ExpectGet("series:AAPL:day:2024-01-02").RedisNil()
	mock.ExpectSet("series:AAPL:day:2024-01-02", cachedJSON(t, testRows), 5*time.Minute).SetVal("OK")

	got, err := c.Query(context.Background(), "AAPL", testDay)

	require.NoError(t, err)
	assert.Equal(t, testRows, got)
	assert.Equal(t, 1, inner.queryCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSeriesReader_Query_CorruptedEntry(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	inner := &mockSeriesReader{queryFn: func(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
		return testRows, nil
	}}
	c := NewCachingSeriesReader(rdb, 5*time.Minute, inner, newYork, "")

	mock.ExpectGet("series:AAPL:day:2024-01-02").SetVal("invalid json")
	mock.ExpectDel("series:AAPL:day:2024-01-02").SetVal(1)
	mock.ExpectSet("series:AAPL:day:2024-01-02", cachedJSON(t, testRows), 5*time.Minute).SetVal("OK")

	got, err := c.Query(context.Background(), "AAPL", testDay)

	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSeriesReader_Query_StoreError(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	boom := errors.New("db down")
	inner := &mockSeriesReader{queryFn: func(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
		return nil, boom
	}}
	c := NewCachingSeriesReader(rdb, 5*time.Minute, inner, newYork, "")

	mock.ExpectGet("series:AAPL:day:2024-01-02").RedisNil()

	_, err := c.Query(context.Background(), "AAPL", testDay)

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSeriesReader_NilRedisBypasses(t *testing.T) {
	t.Parallel()

	inner := &mockSeriesReader{queryFn: func(ctx context.Context, symbol string, day time.Time) ([]entity.Observation, error) {
		return testRows, nil
	}}
	c := NewCachingSeriesReader(nil, time.Minute, inner, newYork, "")

	got, err := c.Query(context.Background(), "AAPL", testDay)

	require.NoError(t, err)
	assert.Equal(t, testRows, got)
	assert.NoError(t, c.Invalidate(context.Background(), "AAPL"))
}

func TestCachingSeriesReader_QueryRange_UsesRefreshSchedule(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	inner := &mockSeriesReader{queryRangeFn: func(ctx context.Context, symbol string, from, to time.Time) ([]entity.Observation, error) {
		return testRows, nil
	}}
	now := time.Date(2024, 1, 2, 17, 55, 0, 0, newYork)
	c := NewCachingSeriesReader(rdb, time.Hour, inner, newYork, "",
		WithRefreshSchedule(func(time.Time) time.Time { return now.Add(5 * time.Minute) }))
	c.now = func() time.Time { return now }

	mock.ExpectGet("series:AAPL:range:2024-01-02:2024-01-05").RedisNil()
	mock.ExpectSet("series:AAPL:range:2024-01-02:2024-01-05", cachedJSON(t, testRows), 5*time.Minute).SetVal("OK")

	_, err := c.QueryRange(context.Background(), "AAPL", testDay, testDay.AddDate(0, 0, 3))

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// stubProvider hands out a fixed store.
type stubProvider struct {
	store usecase.SeriesRepository
	err   error
}

func (p stubProvider) ForSymbol(ctx context.Context, symbol string, start, end time.Time) (usecase.SeriesRepository, error) {
	return p.store, p.err
}

type stubStore struct {
	inserted int64
	err      error
}

func (s stubStore) AppendDay(ctx context.Context, symbol string, day time.Time, obs []entity.Observation) (int64, error) {
	return s.inserted, s.err
}

func (s stubStore) MinMaxDays(ctx context.Context, symbol string) (time.Time, time.Time, bool, error) {
	return time.Time{}, time.Time{}, false, nil
}

func TestCachingSeriesProvider_InvalidatesAfterWrite(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	p := NewCachingSeriesProvider(rdb, stubProvider{store: stubStore{inserted: 2}}, "")

	mock.ExpectScan(0, "series:AAPL:*", 200).SetVal([]string{"series:AAPL:day:2024-01-02", "series:AAPL:range:2024-01-02:2024-01-05"}, 0)
	mock.ExpectDel("series:AAPL:day:2024-01-02", "series:AAPL:range:2024-01-02:2024-01-05").SetVal(2)

	store, err := p.ForSymbol(context.Background(), "AAPL", testDay, testDay)
	require.NoError(t, err)
	n, err := store.AppendDay(context.Background(), "AAPL", testDay, testRows)

	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSeriesProvider_NoInvalidationWithoutNewRows(t *testing.T) {
	t.Parallel()

	rdb, mock := redismock.NewClientMock()
	p := NewCachingSeriesProvider(rdb, stubProvider{store: stubStore{inserted: 0}}, "")

	store, err := p.ForSymbol(context.Background(), "AAPL", testDay, testDay)
	require.NoError(t, err)
	_, err = store.AppendDay(context.Background(), "AAPL", testDay, testRows)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCachingSeriesProvider_PropagatesErrors(t *testing.T) {
	t.Parallel()

	rdb, _ := redismock.NewClientMock()
	boom := errors.New("cannot open")

	_, err := NewCachingSeriesProvider(rdb, stubProvider{err: boom}, "").ForSymbol(context.Background(), "AAPL", testDay, testDay)

	assert.ErrorIs(t, err, boom)
}

func TestSafe(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "BRK_B", safe("BRK:B"))
	assert.Equal(t, "A_B", safe("A B"))
}
