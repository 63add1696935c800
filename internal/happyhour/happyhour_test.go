package happyhour

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"gooeytea/backend/internal/domain"
)

var store = time.FixedZone("store", -6*3600)

func at(hour int, minute int) time.Time {
	return time.Date(2025, 3, 14, hour, minute, 0, 0, store)
}

func TestActiveAcrossMidnight(t *testing.T) {
	cfg := domain.HappyHourConfig{StartTime: "22:00", EndTime: "02:00", DiscountPercent: decimal.NewFromInt(10), IsActive: true}

	cases := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"late evening", at(23, 30), true},
		{"after midnight", at(1, 0), true},
		{"morning", at(10, 0), false},
		{"at start", at(22, 0), true},
		{"at end", at(2, 0), false},
	}
	for _, tc := range cases {
		if got := Active(cfg, tc.now, store); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestEmptyWindowNeverActive(t *testing.T) {
	for _, flag := range []bool{true, false} {
		cfg := domain.HappyHourConfig{StartTime: "14:00", EndTime: "14:00", DiscountPercent: decimal.NewFromInt(50), IsActive: flag}
		for hour := 0; hour < 24; hour++ {
			if Active(cfg, at(hour, 0), store) {
				t.Fatalf("expected empty window to stay inactive at %02d:00 (flag=%v)", hour, flag)
			}
		}
	}
}

func TestActiveUsesStoreClock(t *testing.T) {
	cfg := domain.HappyHourConfig{StartTime: "14:00", EndTime: "16:00", DiscountPercent: decimal.NewFromInt(20), IsActive: true}

	// 21:00 UTC is 15:00 at UTC-6.
	now := time.Date(2025, 3, 14, 21, 0, 0, 0, time.UTC)
	if !Active(cfg, now, store) {
		t.Fatalf("expected window to be open at 15:00 store time")
	}
	if Active(cfg, now, time.UTC) {
		t.Fatalf("expected window to be closed at 21:00 UTC")
	}
}

func TestApplyRoundsToCents(t *testing.T) {
	cfg := domain.HappyHourConfig{StartTime: "14:00", EndTime: "16:00", DiscountPercent: decimal.RequireFromString("15"), IsActive: true}

	got := Apply(cfg, decimal.RequireFromString("8.75"), at(15, 0), store)
	if !got.Equal(decimal.RequireFromString("7.44")) {
		t.Fatalf("expected 7.44, got %s", got)
	}

	unchanged := Apply(cfg, decimal.RequireFromString("8.75"), at(17, 0), store)
	if !unchanged.Equal(decimal.RequireFromString("8.75")) {
		t.Fatalf("expected undiscounted subtotal outside window, got %s", unchanged)
	}
}

func TestDisabledConfigLeavesSubtotal(t *testing.T) {
	cfg := domain.HappyHourConfig{StartTime: "00:00", EndTime: "23:59", DiscountPercent: decimal.NewFromInt(50), IsActive: false}
	got := Apply(cfg, decimal.NewFromInt(10), at(12, 0), store)
	if !got.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected 10, got %s", got)
	}
}

func TestParseClock(t *testing.T) {
	if got, err := ParseClock("07:05"); err != nil || got != 425 {
		t.Fatalf("expected 425, got %d (%v)", got, err)
	}
	if got, err := ParseClock("23:59:00"); err != nil || got != 1439 {
		t.Fatalf("expected 1439, got %d (%v)", got, err)
	}
	for _, bad := range []string{"", "7:05", "24:00", "12:60", "noon", "12:00:99"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
	if FormatClock("22:00:00") != "22:00" {
		t.Fatalf("expected HH:MM formatting")
	}
}
