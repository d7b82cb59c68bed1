package tiingo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"bandtrader/internal/feature/prices/domain/entity"
	"bandtrader/internal/feature/prices/usecase"
	"bandtrader/internal/platform/credentials"
	"bandtrader/internal/platform/externalapi/tiingo/dto"
)

// TiingoMarket is the MarketRepository backed by the Tiingo IEX endpoint.
type TiingoMarket struct {
	cfg    Config
	client *http.Client
	keys   *credentials.Pool
	sleep  func(ctx context.Context, d time.Duration) error
}

var _ usecase.MarketRepository = (*TiingoMarket)(nil)

// NewTiingoMarket creates a TiingoMarket using keys for authentication.
func NewTiingoMarket(cfg Config, client *http.Client, keys *credentials.Pool) *TiingoMarket {
	return &TiingoMarket{cfg: cfg, client: client, keys: keys, sleep: sleepContext}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchPrices requests [start, end] for symbol. A 429 rotates to the next key and
// retries the same request; once every key has been throttled in turn the client
// waits ThrottleBackoff before the next cycle.
func (t *TiingoMarket) FetchPrices(ctx context.Context, symbol string, start, end time.Time) ([]entity.Observation, error) {
	throttled, cycles := 0, 0
	for {
		key, idx := t.keys.Current()
		status, body, err := t.do(ctx, symbol, start, end, key)
		if err != nil {
			return nil, err
		}

		if status == http.StatusTooManyRequests {
			t.keys.Rotate(idx)
			throttled++
			slog.Warn("api key throttled, rotating", "symbol", symbol, "key_index", idx, "pool_size", t.keys.Size())
			if throttled < t.keys.Size() {
				continue
			}
			throttled = 0
			cycles++
			if t.cfg.MaxThrottleCycles > 0 && cycles >= t.cfg.MaxThrottleCycles {
				return nil, fmt.Errorf("%w: %d full cycles", usecase.ErrProviderThrottled, cycles)
			}
			slog.Warn("all api keys throttled, backing off", "symbol", symbol, "backoff", t.cfg.ThrottleBackoff)
			if err := t.sleep(ctx, t.cfg.ThrottleBackoff); err != nil {
				return nil, err
			}
			continue
		}

		if status < 200 || status >= 300 {
			var e dto.ErrorResponse
			_ = json.Unmarshal(body, &e)
			return nil, fmt.Errorf("%w: tiingo http %d %s", usecase.ErrProviderUnavailable, status, e.Detail)
		}
		return decodePrices(symbol, body)
	}
}

func (t *TiingoMarket) do(ctx context.Context, symbol string, start, end time.Time, key string) (int, []byte, error) {
	q := url.Values{}
	q.Set("startDate", start.Format(entity.DayLayout))
	q.Set("endDate", end.Format(entity.DayLayout))
	q.Set("resampleFreq", t.cfg.ResampleFreq)
	q.Set("columns", "open,high,low,close,volume")
	q.Set("token", key)

	u := fmt.Sprintf("%s/iex/%s/prices?%s", t.cfg.BaseURL, url.PathEscape(symbol), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		// url.Error carries the full URL including the token.
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return 0, nil, fmt.Errorf("%w: %v", usecase.ErrProviderUnavailable, err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: read body: %v", usecase.ErrProviderUnavailable, err)
	}
	return res.StatusCode, body, nil
}

// decodePrices keeps records that carry a timestamp, a close and a volume.
func decodePrices(symbol string, body []byte) ([]entity.Observation, error) {
	var records []dto.PriceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decode tiingo prices for %s: %w", symbol, err)
	}
	out := make([]entity.Observation, 0, len(records))
	for _, r := range records {
		if r.Date.IsZero() || r.Close == 0 || r.Volume == 0 {
			continue
		}
		out = append(out, entity.Observation{
			Symbol: symbol,
			Price:  r.Close,
			Volume: int64(r.Volume),
			Time:   r.Date.UTC(),
		})
	}
	return out, nil
}
