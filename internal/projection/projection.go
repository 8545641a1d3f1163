// Package projection derives the flattened, UI-ready view of a catalog item:
// one live offer per source, a primary price, and the affiliate link that
// goes with it.
package projection

import (
	"sort"

	"github.com/mobatt/mobatt-backend/internal/pricehistory"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// Result carries the fields the projection stage owns. Everything else on the
// monitored record is preserved by the merge-style write.
type Result struct {
	Offers       []types.Offer
	Price        float64
	AffiliateURL string
}

// Project reduces a catalog item's price history to per-source offers and
// selects the primary one. The chronologically latest point per source
// becomes that source's offer; the lowest-priced offer wins, with ties broken
// lexicographically by source name so the outcome never depends on iteration
// order. With no usable offers the affiliate URL falls back to the stored
// rakuten link and the price stays zero for the quality sweep to flag.
func Project(item *types.CatalogItem) Result {
	latest := map[string]types.Offer{}
	for _, e := range pricehistory.DecodeRaw(item.PriceHistory) {
		if e.Source == "" {
			continue
		}
		instant, ok := pricehistory.CoerceDate(e.Date)
		if !ok {
			continue
		}
		price, ok := pricehistory.CoercePrice(e.Price)
		if !ok || price < 0 {
			continue
		}
		cur, exists := latest[e.Source]
		if !exists || instant.After(cur.FetchedAt) {
			latest[e.Source] = types.Offer{
				Source:    e.Source,
				Price:     price,
				URL:       e.URL,
				FetchedAt: instant,
				InStock:   e.InStock,
			}
		}
	}

	offers := make([]types.Offer, 0, len(latest))
	for _, o := range latest {
		offers = append(offers, o)
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].Source < offers[j].Source })

	res := Result{Offers: offers}
	for i, o := range offers {
		if i == 0 || o.Price < res.Price {
			res.Price = o.Price
			res.AffiliateURL = offerURL(item, o)
		}
	}

	if len(offers) == 0 {
		res.AffiliateURL = item.Affiliate.Data()["rakuten"]
	}
	return res
}

// offerURL prefers the offer's own link and falls back to the stored
// per-source affiliate mapping.
func offerURL(item *types.CatalogItem, o types.Offer) string {
	if o.URL != "" {
		return o.URL
	}
	return item.Affiliate.Data()[o.Source]
}
