// Package entity defines the domain models for the prices feature.
package entity

import (
	"math"
	"time"
)

// DayLayout is the calendar-day format used for the price_date column and range queries.
const DayLayout = "2006-01-02"

// TimeLayout is the wall-clock format used for the price_time column.
const TimeLayout = "15:04:05"

// Observation is a single price/volume fact for a symbol at one point in time.
// Observations are never mutated after they are produced by the provider client.
type Observation struct {
	Symbol string    // Stock ticker symbol (e.g., "AAPL")
	Price  float64   // Close price of the sampling interval
	Volume int64     // Traded volume during the sampling interval
	Time   time.Time // Timestamp; UTC from the provider, exchange-local once stored
}

// Day returns the calendar day of the observation in its own location.
func (o Observation) Day() string {
	return o.Time.Format(DayLayout)
}

// DayRange is an inclusive span of calendar days.
type DayRange struct {
	From time.Time
	To   time.Time
}

// Days returns the number of calendar days covered by the range.
func (r DayRange) Days() int {
	return int(math.Round(r.To.Sub(r.From).Hours()/24)) + 1
}

// String formats the range as "from..to", or a single day when both ends match.
func (r DayRange) String() string {
	if r.From.Equal(r.To) {
		return r.From.Format(DayLayout)
	}
	return r.From.Format(DayLayout) + ".." + r.To.Format(DayLayout)
}

// ConsolidateDays collapses an ascending list of days into ranges of consecutive
// days. A gap of any length, weekends included, starts a new range unless skip
// reports every day in the gap as one to ignore.
func ConsolidateDays(days []time.Time, skip func(time.Time) bool) []DayRange {
	var out []DayRange
	for _, d := range days {
		if n := len(out); n > 0 {
			last := &out[n-1]
			next := last.To.AddDate(0, 0, 1)
			for skip != nil && next.Before(d) && skip(next) {
				next = next.AddDate(0, 0, 1)
			}
			if next.Equal(d) {
				last.To = d
				continue
			}
		}
		out = append(out, DayRange{From: d, To: d})
	}
	return out
}

// DuplicateGroup describes identical rows found more than once in a stored series.
type DuplicateGroup struct {
	Observation Observation
	Count       int
}
