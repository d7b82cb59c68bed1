// Package calendar decides which calendar days the exchange is open.
package calendar

import (
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"
)

// DefaultTimezone is the exchange timezone used for day boundaries.
const DefaultTimezone = "America/New_York"

// exchangeHolidays are the full-day NYSE closures. Columbus Day and Veterans
// Day are federal holidays but trading days; Good Friday is the reverse.
var exchangeHolidays = []*cal.Holiday{
	us.NewYear,
	us.MlkDay,
	us.PresidentsDay,
	aa.GoodFriday.Clone(&cal.Holiday{Name: "Good Friday", Type: cal.ObservancePublic}),
	us.MemorialDay,
	us.Juneteenth,
	us.IndependenceDay,
	us.LaborDay,
	us.ThanksgivingDay,
	us.ChristmasDay,
}

// TradingCalendar treats weekends and exchange holidays (observed dates) as closed.
type TradingCalendar struct {
	loc *time.Location
	bc  *cal.BusinessCalendar
}

// New builds a TradingCalendar for the named IANA timezone.
func New(timezone string) (*TradingCalendar, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(exchangeHolidays...)
	return &TradingCalendar{loc: loc, bc: bc}, nil
}

// Location returns the exchange timezone.
func (c *TradingCalendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether the exchange is open on the calendar day of t.
func (c *TradingCalendar) IsTradingDay(t time.Time) bool {
	d := c.Day(t)
	return c.bc.IsWorkday(d)
}

// Day truncates t to midnight of its calendar day. The calendar fields of t are
// kept as-is, so a value parsed as "2024-07-04" stays on the 4th.
func (c *TradingCalendar) Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc)
}

// TradingDays lists the open days in [from, to], inclusive.
func (c *TradingCalendar) TradingDays(from, to time.Time) []time.Time {
	var out []time.Time
	for d := c.Day(from); !d.After(c.Day(to)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			out = append(out, d)
		}
	}
	return out
}

// HasTradingDay reports whether [from, to] contains at least one open day.
func (c *TradingCalendar) HasTradingDay(from, to time.Time) bool {
	for d := c.Day(from); !d.After(c.Day(to)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			return true
		}
	}
	return false
}

// ParseDay parses a YYYY-MM-DD string as midnight in the exchange timezone.
func (c *TradingCalendar) ParseDay(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, c.loc)
}
