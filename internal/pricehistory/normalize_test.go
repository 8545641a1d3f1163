package pricehistory

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func TestCoerceDate(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"rfc3339", "2024-01-02T03:04:05Z", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"bare date", "2024-01-02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"slash date", "2024/01/02", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"epoch seconds", float64(1704164645), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"epoch millis", float64(1704164645000), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"numeric string", "1704164645", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"timestamp object", map[string]any{"seconds": float64(1704164645)}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"underscore timestamp object", map[string]any{"_seconds": float64(1704164645)}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), true},
		{"garbage string", "not a date", time.Time{}, false},
		{"empty string", "", time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"negative epoch", float64(-5), time.Time{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := CoerceDate(tc.in)
			require.Equal(t, tc.ok, ok)
			if ok {
				assert.True(t, got.Equal(tc.want), "got %v want %v", got, tc.want)
			}
		})
	}
}

func TestNormalizeDropsInvalidEntries(t *testing.T) {
	raw := []RawEntry{
		{Source: "amazon", Price: float64(1000), Date: "2024-01-01T00:00:00Z"},
		{Source: "amazon", Price: "free", Date: "2024-01-02T00:00:00Z"},
		{Source: "amazon", Price: math.NaN(), Date: "2024-01-03T00:00:00Z"},
		{Source: "amazon", Price: float64(900), Date: "soon"},
		{Source: "amazon", Price: float64(800), Date: nil},
	}
	out, stats := Normalize(raw, 0, "", "", now)
	require.Len(t, out, 1)
	assert.Equal(t, 4, stats.Dropped)
	assert.Equal(t, float64(1000), out[0].Price)
}

func TestNormalizeMinOfDay(t *testing.T) {
	raw := []RawEntry{
		{Source: "amazon", Price: float64(1000), Date: "2024-01-01T09:00:00Z"},
		{Source: "amazon", Price: float64(900), Date: "2024-01-01T18:00:00Z"},
	}
	out, stats := Normalize(raw, 0, "", "", now)
	require.Len(t, out, 1)
	assert.Equal(t, float64(900), out[0].Price)
	assert.Equal(t, 1, stats.Collapsed)
}

func TestNormalizeSortsAscendingAcrossRepresentations(t *testing.T) {
	raw := []RawEntry{
		{Source: "rakuten", Price: float64(1200), Date: "2024-02-01"},
		{Source: "amazon", Price: float64(1100), Date: float64(1704164645)}, // 2024-01-02
		{Source: "yahoo", Price: float64(1300), Date: "2024-01-15T08:00:00Z"},
	}
	out, _ := Normalize(raw, 0, "", "", now)
	require.Len(t, out, 3)
	assert.Equal(t, "amazon", out[0].Source)
	assert.Equal(t, "yahoo", out[1].Source)
	assert.Equal(t, "rakuten", out[2].Source)
}

func TestNormalizeAppendsLivePrice(t *testing.T) {
	raw := []RawEntry{
		{Source: "amazon", Price: float64(1000), Date: "2024-01-01T00:00:00Z"},
	}
	out, stats := Normalize(raw, 950, "amazon", "https://example.com/i/1", now)
	require.Len(t, out, 2)
	assert.True(t, stats.LiveAppended)
	last := out[len(out)-1]
	assert.Equal(t, float64(950), last.Price)
	assert.Equal(t, now.Format(time.RFC3339), last.Date)

	// same live price as last entry: nothing appended.
	out2, stats2 := Normalize(raw, 1000, "amazon", "", now)
	require.Len(t, out2, 1)
	assert.False(t, stats2.LiveAppended)
}

func TestNormalizeEmptyHistoryWithLivePrice(t *testing.T) {
	out, stats := Normalize(nil, 500, "rakuten", "", now)
	require.Len(t, out, 1)
	assert.True(t, stats.LiveAppended)
	assert.Equal(t, float64(500), out[0].Price)
}
