// Package pricehistory reconciles the heterogeneous price-history rows the
// store has accumulated into one canonical per-day series. Date values seen in
// the wild include RFC3339 strings, bare dates, epoch seconds and millis, and
// stored-timestamp objects ({seconds, nanos}); all are coerced to UTC instants.
// Entries that cannot be coerced are dropped, not failed, so one bad row never
// sinks the whole record.
package pricehistory

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mobatt/mobatt-backend/internal/types"
)

// RawEntry mirrors one stored price-history row before normalization.
// Price and Date are left untyped on purpose.
type RawEntry struct {
	Source  string `json:"source"`
	Price   any    `json:"price"`
	Date    any    `json:"date"`
	URL     string `json:"url,omitempty"`
	InStock *bool  `json:"inStock,omitempty"`
}

type Stats struct {
	Dropped      int
	Collapsed    int
	LiveAppended bool
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// CoerceDate turns any supported date representation into a UTC instant.
func CoerceDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d.UTC(), true
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return epochToTime(n)
		}
		return time.Time{}, false
	case float64:
		return epochToTime(d)
	case int:
		return epochToTime(float64(d))
	case int64:
		return epochToTime(float64(d))
	case json.Number:
		if n, err := d.Float64(); err == nil {
			return epochToTime(n)
		}
		return time.Time{}, false
	case map[string]any:
		// stored timestamp objects: {"seconds": ..., "nanos": ...} or the
		// underscore-prefixed variant some exports use.
		for _, key := range []string{"seconds", "_seconds"} {
			if sec, ok := d[key]; ok {
				if t, ok := CoerceDate(sec); ok {
					return t, true
				}
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

func epochToTime(n float64) (time.Time, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return time.Time{}, false
	}
	// epoch millis vs seconds: anything past ~33658 AD in seconds is millis.
	if n > 1e12 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}

// CoercePrice accepts numeric price representations and rejects everything
// that is not a finite number.
func CoercePrice(v any) (float64, bool) {
	switch p := v.(type) {
	case float64:
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return 0, false
		}
		return p, true
	case float32:
		return CoercePrice(float64(p))
	case int:
		return float64(p), true
	case int64:
		return float64(p), true
	case json.Number:
		if n, err := p.Float64(); err == nil {
			return CoercePrice(n)
		}
		return 0, false
	default:
		return 0, false
	}
}

// DayKey is the calendar-day bucket of an instant, in UTC.
func DayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

type bucketed struct {
	point   types.PricePoint
	instant time.Time
}

// Normalize coerces raw entries, reduces them to one entry per calendar day
// keeping the minimum price observed that day, sorts ascending, and appends a
// synthetic entry dated now when the live price differs from the last entry.
// livePrice <= 0 means no live price is known.
func Normalize(raw []RawEntry, livePrice float64, liveSource, liveURL string, now time.Time) ([]types.PricePoint, Stats) {
	var stats Stats

	byDay := map[string]bucketed{}
	order := []string{}
	for _, e := range raw {
		instant, ok := CoerceDate(e.Date)
		if !ok {
			stats.Dropped++
			continue
		}
		price, ok := CoercePrice(e.Price)
		if !ok {
			stats.Dropped++
			continue
		}
		day := DayKey(instant)
		cur, exists := byDay[day]
		if !exists {
			byDay[day] = bucketed{
				point:   types.PricePoint{Source: e.Source, Price: price, Date: instant.Format(time.RFC3339), URL: e.URL, InStock: e.InStock},
				instant: instant,
			}
			order = append(order, day)
			continue
		}
		stats.Collapsed++
		// lowest daily price wins; first-seen entry survives a tie.
		if price < cur.point.Price {
			byDay[day] = bucketed{
				point:   types.PricePoint{Source: e.Source, Price: price, Date: instant.Format(time.RFC3339), URL: e.URL, InStock: e.InStock},
				instant: instant,
			}
		}
	}

	out := make([]types.PricePoint, 0, len(byDay)+1)
	for _, day := range order {
		out = append(out, byDay[day].point)
	}
	sortByDate(out)

	if livePrice > 0 && (len(out) == 0 || out[len(out)-1].Price != livePrice) {
		out = append(out, types.PricePoint{
			Source: liveSource,
			Price:  livePrice,
			Date:   now.UTC().Format(time.RFC3339),
			URL:    liveURL,
		})
		stats.LiveAppended = true
	}
	return out, stats
}

func sortByDate(points []types.PricePoint) {
	// insertion sort: series are short and mostly ordered already.
	for i := 1; i < len(points); i++ {
		for j := i; j > 0 && points[j].Date < points[j-1].Date; j-- {
			points[j], points[j-1] = points[j-1], points[j]
		}
	}
}

// DecodeRaw unmarshals a stored price-history column into raw entries.
// A column that does not hold a JSON array yields nil.
func DecodeRaw(data []byte) []RawEntry {
	if len(data) == 0 {
		return nil
	}
	var out []RawEntry
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// EncodePoints marshals canonical points back into a JSON column value.
func EncodePoints(points []types.PricePoint) []byte {
	if points == nil {
		points = []types.PricePoint{}
	}
	data, err := json.Marshal(points)
	if err != nil {
		return []byte("[]")
	}
	return data
}
