// Package quality validates monitored records field by field, auto-repairs
// recoverable defects, flags the rest, and stamps every visited record with a
// score. The sweep logic is pure: cross-collection reads go through the
// OfferLookup collaborator and the caller owns all persistence.
package quality

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/mobatt/mobatt-backend/internal/pricehistory"
	"github.com/mobatt/mobatt-backend/internal/rules"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// OfferLookup resolves an item's current offer from the canonical catalog,
// used to backfill a missing affiliate URL.
type OfferLookup interface {
	Lookup(id string) (*types.Offer, bool)
}

// OfferLookupFunc adapts a function to the OfferLookup interface.
type OfferLookupFunc func(id string) (*types.Offer, bool)

func (f OfferLookupFunc) Lookup(id string) (*types.Offer, bool) { return f(id) }

// Result is the outcome of sweeping one record.
type Result struct {
	Stamp      types.QualityStamp
	Issues     []types.FieldIssue
	Changed    bool // a field besides the stamp was repaired
	Quarantine bool // record failed structural validation
}

const (
	penaltyDefault = 10
	penaltyPrice   = 20
)

// SweepItem runs the single-pass field audit over a monitored record,
// repairing in place what it can. The stamp is always produced, even for a
// clean record.
func SweepItem(item *types.MonitoredItem, ruleSet []rules.Rule, lookup OfferLookup, now time.Time) Result {
	var res Result

	flag := func(field, kind, detail string) {
		res.Stamp.Flags = append(res.Stamp.Flags, kind+"."+field)
		res.Issues = append(res.Issues, types.FieldIssue{Field: field, Kind: kind, Detail: detail})
	}
	fixed := func(field string) {
		res.Stamp.AutoFixed = append(res.Stamp.AutoFixed, field)
		res.Changed = true
	}

	if structural := ValidateItem(item); len(structural) > 0 {
		res.Issues = append(res.Issues, structural...)
		res.Quarantine = true
	}

	if strings.TrimSpace(item.ProductName) == "" {
		flag("productName", "missing", "product name is empty")
	}

	if item.Price <= 0 {
		flag("price", "missing", "no usable price on record")
	}

	if strings.TrimSpace(item.ImageURL) == "" {
		flag("image", "missing", "image url is empty")
	} else if !strings.HasPrefix(item.ImageURL, "http://") && !strings.HasPrefix(item.ImageURL, "https://") {
		flag("image", "invalid", fmt.Sprintf("image url %q is not absolute", item.ImageURL))
	}

	if strings.TrimSpace(item.AffiliateURL) == "" {
		if offer, ok := lookupOffer(lookup, item.ID); ok && offer.URL != "" {
			item.AffiliateURL = offer.URL
			fixed("affiliateUrl")
		} else {
			flag("affiliateUrl", "missing", "no affiliate url and no offer to backfill from")
		}
	}

	if strings.TrimSpace(item.AISummary) == "" {
		highlights := item.FeatureHighlights.Data()
		if len(highlights) > 0 {
			item.AISummary = synthesizeSummary(item.ProductName, highlights)
			fixed("aiSummary")
		} else {
			flag("aiSummary", "missing", "no summary and no feature highlights to build one from")
		}
	}

	specMap := specOf(item)

	if len(item.Tags.Data()) == 0 {
		derived := rules.Apply(specMap, ruleSet)
		if len(derived.Tags) > 0 {
			item.Tags = datatypes.NewJSONType(derived.Tags)
			fixed("tags")
		} else {
			if item.Tags.Data() == nil {
				item.Tags = datatypes.NewJSONType([]string{})
				res.Changed = true
			}
			flag("tags", "missing", "no tags and no rule matched the specs")
		}
	}

	if strings.TrimSpace(item.Category) == "" {
		if label := rules.Category(specMap, ruleSet); label != "" {
			item.Category = label
			fixed("category")
		} else {
			flag("category", "missing", "no category and no rule matched the specs")
		}
	}

	if repaired, dropped := repairHistory(item.PriceHistory); dropped > 0 {
		item.PriceHistory = repaired
		fixed("priceHistory")
	}

	res.Stamp.Score = score(res.Stamp.Flags)
	res.Stamp.LastCheckedAt = now
	if res.Stamp.Flags == nil {
		res.Stamp.Flags = []string{}
	}
	if res.Stamp.AutoFixed == nil {
		res.Stamp.AutoFixed = []string{}
	}
	return res
}

// ValidateItem reports structural defects that repair cannot recover; records
// with any such issue are copied to quarantine.
func ValidateItem(item *types.MonitoredItem) []types.FieldIssue {
	var issues []types.FieldIssue
	if strings.TrimSpace(item.ID) == "" {
		issues = append(issues, types.FieldIssue{Field: "id", Kind: "invalid", Detail: "record has no id"})
	}
	if item.Price < 0 {
		issues = append(issues, types.FieldIssue{Field: "price", Kind: "invalid", Detail: fmt.Sprintf("negative price %v", item.Price)})
	}
	return issues
}

func score(flags []string) int {
	s := 100
	for _, f := range flags {
		if f == "missing.price" {
			s -= penaltyPrice
		} else {
			s -= penaltyDefault
		}
	}
	if s < 0 {
		s = 0
	}
	return s
}

func lookupOffer(lookup OfferLookup, id string) (*types.Offer, bool) {
	if lookup == nil {
		return nil, false
	}
	return lookup.Lookup(id)
}

func synthesizeSummary(name string, highlights []string) string {
	base := strings.TrimSpace(name)
	if base == "" {
		base = "この製品"
	}
	return base + "の主な特徴: " + strings.Join(highlights, "、") + "。"
}

func specOf(item *types.MonitoredItem) map[string]any {
	specs := types.Specs{
		CapacityMah:  item.CapacityMah,
		OutputPowerW: item.OutputPowerW,
		WeightG:      item.WeightG,
		HasTypeC:     item.HasTypeC,
	}
	return specs.AsMap()
}

// repairHistory drops entries whose date or price cannot be interpreted and
// reports how many were removed. Surviving entries are kept verbatim.
func repairHistory(history datatypes.JSON) (datatypes.JSON, int) {
	raw := pricehistory.DecodeRaw(history)
	if raw == nil {
		return history, 0
	}
	kept := make([]pricehistory.RawEntry, 0, len(raw))
	dropped := 0
	for _, e := range raw {
		if _, ok := pricehistory.CoerceDate(e.Date); !ok {
			dropped++
			continue
		}
		if _, ok := pricehistory.CoercePrice(e.Price); !ok {
			dropped++
			continue
		}
		kept = append(kept, e)
	}
	if dropped == 0 {
		return history, 0
	}
	points := make([]types.PricePoint, 0, len(kept))
	for _, e := range kept {
		instant, _ := pricehistory.CoerceDate(e.Date)
		price, _ := pricehistory.CoercePrice(e.Price)
		points = append(points, types.PricePoint{Source: e.Source, Price: price, Date: instant.Format(time.RFC3339), URL: e.URL, InStock: e.InStock})
	}
	return pricehistory.EncodePoints(points), dropped
}
