package marketdata

import (
	"time"

	"github.com/vitos/day_trade_sim/internal/config"
)

// New York fallback when the tz database is not installed.
var easternFallback = time.FixedZone("EST", -5*3600)

// TradingHours is a weekday session window in a fixed exchange timezone.
type TradingHours struct {
	loc      *time.Location
	openMin  int
	closeMin int
}

func NewTradingHours(cfg config.Market) (TradingHours, error) {
	openMin, err := config.ParseClock(cfg.Open)
	if err != nil {
		return TradingHours{}, err
	}
	closeMin, err := config.ParseClock(cfg.Close)
	if err != nil {
		return TradingHours{}, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil || cfg.Timezone == "" {
		loc = easternFallback
	}
	return TradingHours{loc: loc, openMin: openMin, closeMin: closeMin}, nil
}

// IsOpenAt reports whether t falls on a weekday between the open and close, both inclusive.
func (h TradingHours) IsOpenAt(t time.Time) bool {
	t = t.In(h.loc)

	weekday := t.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}

	minutes := t.Hour()*60 + t.Minute()
	return minutes >= h.openMin && minutes <= h.closeMin
}

func (h TradingHours) Location() *time.Location {
	return h.loc
}
