package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/mobatt/mobatt-backend/internal/types"
)

func itemWithHistory(history string) *types.CatalogItem {
	return &types.CatalogItem{
		ID:           "shopA-1",
		PriceHistory: []byte(history),
	}
}

func TestProjectSelectsLowestOffer(t *testing.T) {
	item := itemWithHistory(`[
		{"source":"rakuten","price":1200,"date":"2024-01-02T00:00:00Z","url":"https://r.example/1"},
		{"source":"amazon","price":1100,"date":"2024-01-02T00:00:00Z","url":"https://a.example/1"}
	]`)
	res := Project(item)
	require.Len(t, res.Offers, 2)
	assert.Equal(t, float64(1100), res.Price)
	assert.Equal(t, "https://a.example/1", res.AffiliateURL)
}

func TestProjectKeepsLatestPointPerSource(t *testing.T) {
	item := itemWithHistory(`[
		{"source":"amazon","price":1000,"date":"2024-01-01T00:00:00Z"},
		{"source":"amazon","price":1300,"date":"2024-01-05T00:00:00Z"},
		{"source":"amazon","price":1100,"date":"2024-01-03T00:00:00Z"}
	]`)
	res := Project(item)
	require.Len(t, res.Offers, 1)
	assert.Equal(t, float64(1300), res.Offers[0].Price, "latest point wins, not cheapest")
}

func TestProjectTieBreaksLexicographically(t *testing.T) {
	item := itemWithHistory(`[
		{"source":"yahoo","price":1000,"date":"2024-01-02T00:00:00Z","url":"https://y.example/1"},
		{"source":"amazon","price":1000,"date":"2024-01-02T00:00:00Z","url":"https://a.example/1"}
	]`)
	res := Project(item)
	assert.Equal(t, "https://a.example/1", res.AffiliateURL)
	assert.Equal(t, "amazon", res.Offers[0].Source)
}

func TestProjectSkipsUnusableEntries(t *testing.T) {
	item := itemWithHistory(`[
		{"source":"amazon","price":"broken","date":"2024-01-01T00:00:00Z"},
		{"source":"amazon","price":900,"date":"garbage"},
		{"source":"rakuten","price":800,"date":"2024-01-01T00:00:00Z"}
	]`)
	res := Project(item)
	require.Len(t, res.Offers, 1)
	assert.Equal(t, "rakuten", res.Offers[0].Source)
}

func TestProjectFallsBackToStoredRakutenURL(t *testing.T) {
	item := itemWithHistory(`[]`)
	item.Affiliate = datatypes.NewJSONType(map[string]string{"rakuten": "https://r.example/fallback"})
	res := Project(item)
	assert.Empty(t, res.Offers)
	assert.Equal(t, float64(0), res.Price)
	assert.Equal(t, "https://r.example/fallback", res.AffiliateURL)
}

func TestProjectCarriesStockSignalIntoOffer(t *testing.T) {
	item := itemWithHistory(`[
		{"source":"yahoo","price":1500,"date":"2024-01-02T00:00:00Z","inStock":true},
		{"source":"amazon","price":1400,"date":"2024-01-02T00:00:00Z"}
	]`)
	res := Project(item)
	require.Len(t, res.Offers, 2)
	assert.Nil(t, res.Offers[0].InStock, "amazon payload has no stock signal")
	require.NotNil(t, res.Offers[1].InStock)
	assert.True(t, *res.Offers[1].InStock)
}

func TestProjectUsesAffiliateMapWhenPointHasNoURL(t *testing.T) {
	item := itemWithHistory(`[{"source":"amazon","price":1000,"date":"2024-01-02T00:00:00Z"}]`)
	item.Affiliate = datatypes.NewJSONType(map[string]string{"amazon": "https://a.example/map"})
	res := Project(item)
	assert.Equal(t, "https://a.example/map", res.AffiliateURL)
}
