// Package happyhour evaluates the recurring daily discount window.
//
// Every function here is pure: the stored configuration and the clock are
// passed in by the caller.
package happyhour

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// InWindow reports whether minute-of-day now falls inside [start, end).
// A window with start > end wraps past midnight; start == end is empty.
func InWindow(start int, end int, now int) bool {
	switch {
	case start < end:
		return start <= now && now < end
	case start > end:
		return now >= start || now < end
	default:
		return false
	}
}

// Active reports whether cfg grants a discount at now, read on the store's
// wall clock in loc. Malformed times never activate.
func Active(cfg domain.HappyHourConfig, now time.Time, loc *time.Location) bool {
	if !cfg.IsActive {
		return false
	}
	start, err := ParseClock(cfg.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseClock(cfg.EndTime)
	if err != nil {
		return false
	}
	if loc != nil {
		now = now.In(loc)
	}
	return InWindow(start, end, now.Hour()*60+now.Minute())
}

// Apply returns subtotal discounted by cfg when the window is open, rounded to
// cents. Otherwise subtotal is returned unchanged.
func Apply(cfg domain.HappyHourConfig, subtotal decimal.Decimal, now time.Time, loc *time.Location) decimal.Decimal {
	if !Active(cfg, now, loc) {
		return subtotal
	}
	factor := decimal.NewFromInt(1).Sub(cfg.DiscountPercent.Div(hundred))
	return subtotal.Mul(factor).Round(2)
}

// ParseClock converts "HH:MM" or "HH:MM:SS" to minutes since midnight.
func ParseClock(raw string) (int, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 || len(parts[0]) != 2 {
		return 0, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", raw)
	}
	if len(parts) == 3 {
		second, err := strconv.Atoi(parts[2])
		if err != nil || second < 0 || second > 59 {
			return 0, fmt.Errorf("invalid second in %q", raw)
		}
	}
	return hour*60 + minute, nil
}

// FormatClock trims a stored time of day to "HH:MM".
func FormatClock(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) >= 5 {
		return raw[:5]
	}
	return raw
}
