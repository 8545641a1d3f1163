// Package catalog implements the merge/upsert layer that folds adapter items
// into canonical CatalogItem records. Merges are field-level and idempotent:
// re-applying identical adapter output changes nothing, and price-history
// appends are deduplicated by (source, calendar day).
package catalog

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/mobatt/mobatt-backend/internal/adapters"
	"github.com/mobatt/mobatt-backend/internal/pricehistory"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// NewItem builds the canonical record for the first sighting of an item id.
// A price observed at creation becomes a singleton history entry.
func NewItem(source string, it adapters.AdapterItem, now time.Time) *types.CatalogItem {
	item := &types.CatalogItem{
		ID:                it.ID,
		ProductName:       it.ProductName,
		ImageURL:          it.ImageURL,
		Tags:              datatypes.NewJSONType([]string{}),
		FeatureHighlights: datatypes.NewJSONType([]string{}),
		Scores:            datatypes.NewJSONType(map[string]float64{}),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if it.Specs != nil {
		item.Specs = datatypes.NewJSONType(*it.Specs)
	}

	affiliate := map[string]string{}
	if it.URL != "" {
		affiliate[source] = it.URL
	}
	item.Affiliate = datatypes.NewJSONType(affiliate)

	history := []types.PricePoint{}
	if it.Price != nil && *it.Price >= 0 {
		history = append(history, types.PricePoint{
			Source:  source,
			Price:   *it.Price,
			Date:    now.UTC().Format(time.RFC3339),
			URL:     it.URL,
			InStock: it.InStock,
		})
	}
	item.PriceHistory = pricehistory.EncodePoints(history)
	return item
}

// Merge folds one adapter item into an existing record and reports whether
// anything changed. Specs merge non-null over old, the per-source affiliate
// URL is replaced, and a price point is appended only when no existing entry
// shares the same source and calendar day.
func Merge(existing *types.CatalogItem, source string, it adapters.AdapterItem, now time.Time) bool {
	changed := false

	if it.ProductName != "" && it.ProductName != existing.ProductName {
		existing.ProductName = it.ProductName
		changed = true
	}
	if it.ImageURL != "" && it.ImageURL != existing.ImageURL {
		existing.ImageURL = it.ImageURL
		changed = true
	}

	if it.Specs != nil {
		specs := existing.Specs.Data()
		if specs.Merge(*it.Specs) {
			existing.Specs = datatypes.NewJSONType(specs)
			changed = true
		}
	}

	if it.URL != "" {
		affiliate := existing.Affiliate.Data()
		if affiliate == nil {
			affiliate = map[string]string{}
		}
		if affiliate[source] != it.URL {
			affiliate[source] = it.URL
			existing.Affiliate = datatypes.NewJSONType(affiliate)
			changed = true
		}
	}

	if it.Price != nil && *it.Price >= 0 && !hasPointForDay(existing.PriceHistory, source, now) {
		existing.PriceHistory = appendPoint(existing.PriceHistory, types.PricePoint{
			Source:  source,
			Price:   *it.Price,
			Date:    now.UTC().Format(time.RFC3339),
			URL:     it.URL,
			InStock: it.InStock,
		})
		changed = true
	}

	if changed {
		existing.UpdatedAt = now
	}
	return changed
}

// hasPointForDay reports whether the stored history already holds an entry for
// (source, day-of-now). Entries with uninterpretable dates never block an
// append; the normalizer deals with them later.
func hasPointForDay(history datatypes.JSON, source string, now time.Time) bool {
	day := pricehistory.DayKey(now)
	for _, e := range pricehistory.DecodeRaw(history) {
		if e.Source != source {
			continue
		}
		instant, ok := pricehistory.CoerceDate(e.Date)
		if !ok {
			continue
		}
		if pricehistory.DayKey(instant) == day {
			return true
		}
	}
	return false
}

// appendPoint appends to the raw history column, preserving whatever entries
// are already there byte-for-byte.
func appendPoint(history datatypes.JSON, p types.PricePoint) datatypes.JSON {
	var entries []json.RawMessage
	if len(history) > 0 {
		_ = json.Unmarshal(history, &entries)
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return history
	}
	entries = append(entries, raw)
	data, err := json.Marshal(entries)
	if err != nil {
		return history
	}
	return data
}
