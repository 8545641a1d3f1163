package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobatt/mobatt-backend/internal/adapters"
	"github.com/mobatt/mobatt-backend/internal/pricehistory"
	"github.com/mobatt/mobatt-backend/internal/types"
)

func f64(v float64) *float64 { return &v }

var day1 = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
var day2 = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

func TestNewItemCreatesSingletonHistory(t *testing.T) {
	it := adapters.AdapterItem{
		ID:          "shopA-1",
		ProductName: "PB 10000",
		Price:       f64(1980),
		URL:         "https://aff.example/1",
		Specs:       &types.Specs{CapacityMah: f64(10000)},
	}
	item := NewItem("rakuten", it, day1)

	history := pricehistory.DecodeRaw(item.PriceHistory)
	require.Len(t, history, 1)
	assert.Equal(t, "rakuten", history[0].Source)
	assert.Equal(t, map[string]string{"rakuten": "https://aff.example/1"}, item.Affiliate.Data())
	assert.Empty(t, item.Tags.Data())
	assert.Empty(t, item.Scores.Data())
}

func TestNewItemWithoutPriceHasEmptyHistory(t *testing.T) {
	item := NewItem("rakuten", adapters.AdapterItem{ID: "x"}, day1)
	assert.Empty(t, pricehistory.DecodeRaw(item.PriceHistory))
}

func TestMergeIsIdempotentForIdenticalOutput(t *testing.T) {
	it := adapters.AdapterItem{
		ID:    "shopA-1",
		Price: f64(1980),
		URL:   "https://aff.example/1",
		Specs: &types.Specs{CapacityMah: f64(10000)},
	}
	item := NewItem("rakuten", it, day1)
	before := string(item.PriceHistory)

	changed := Merge(item, "rakuten", it, day1.Add(2*time.Hour))
	assert.False(t, changed)
	assert.Equal(t, before, string(item.PriceHistory), "price history must be identical after re-apply")
}

func TestMergeAppendsPointOnNewDay(t *testing.T) {
	it := adapters.AdapterItem{ID: "shopA-1", Price: f64(1980), URL: "https://aff.example/1"}
	item := NewItem("rakuten", it, day1)

	changed := Merge(item, "rakuten", adapters.AdapterItem{ID: "shopA-1", Price: f64(1880), URL: "https://aff.example/1"}, day2)
	assert.True(t, changed)
	assert.Len(t, pricehistory.DecodeRaw(item.PriceHistory), 2)
}

func TestMergeAllowsDifferentSourceSameDay(t *testing.T) {
	item := NewItem("rakuten", adapters.AdapterItem{ID: "shopA-1", Price: f64(1980)}, day1)

	changed := Merge(item, "amazon", adapters.AdapterItem{ID: "shopA-1", Price: f64(1890), URL: "https://amzn.example/1"}, day1)
	assert.True(t, changed)

	history := pricehistory.DecodeRaw(item.PriceHistory)
	require.Len(t, history, 2)
	assert.Equal(t, "amazon", history[1].Source)
	assert.Equal(t, "https://amzn.example/1", item.Affiliate.Data()["amazon"])
}

func TestMergeSpecsNonNullOverwrites(t *testing.T) {
	item := NewItem("rakuten", adapters.AdapterItem{
		ID:    "shopA-1",
		Specs: &types.Specs{CapacityMah: f64(10000), WeightG: f64(220)},
	}, day1)

	changed := Merge(item, "amazon", adapters.AdapterItem{
		ID:    "shopA-1",
		Specs: &types.Specs{CapacityMah: f64(10000), OutputPowerW: f64(20)},
	}, day1)
	assert.True(t, changed)

	specs := item.Specs.Data()
	assert.Equal(t, float64(10000), *specs.CapacityMah)
	assert.Equal(t, float64(220), *specs.WeightG, "old non-null value must survive")
	assert.Equal(t, float64(20), *specs.OutputPowerW)
}

func TestMergePreservesMalformedHistoryEntries(t *testing.T) {
	item := NewItem("rakuten", adapters.AdapterItem{ID: "shopA-1", Price: f64(1000)}, day1)
	item.PriceHistory = []byte(`[{"source":"rakuten","price":1000,"date":"not a date"}]`)

	changed := Merge(item, "rakuten", adapters.AdapterItem{ID: "shopA-1", Price: f64(900)}, day1)
	assert.True(t, changed, "uninterpretable dates must not block an append")
	assert.Len(t, pricehistory.DecodeRaw(item.PriceHistory), 2)
}
