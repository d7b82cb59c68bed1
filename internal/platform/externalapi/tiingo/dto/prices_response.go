// Package dto defines data transfer objects for the Tiingo IEX API responses.
package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// PriceRecord is one element of the /iex/{ticker}/prices array.
type PriceRecord struct {
	Date   Timestamp `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// ErrorResponse is the body Tiingo sends with 4xx responses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Timestamp accepts either an RFC 3339 string or epoch milliseconds.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			ts.Time = time.Time{}
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse date %q: %w", s, err)
		}
		ts.Time = t.UTC()
		return nil
	}
	var ms json.Number
	if err := json.Unmarshal(b, &ms); err != nil {
		return fmt.Errorf("parse date %s: %w", b, err)
	}
	n, err := ms.Int64()
	if err != nil {
		f, ferr := ms.Float64()
		if ferr != nil {
			return fmt.Errorf("parse date %s: %w", b, err)
		}
		n = int64(f)
	}
	if n == 0 {
		ts.Time = time.Time{}
		return nil
	}
	ts.Time = time.UnixMilli(n).UTC()
	return nil
}
