package types

import "time"

// PricePoint is one normalized price observation. Date is the canonical
// RFC3339 UTC instant; raw history rows may still carry older representations
// until the normalizer has visited them.
type PricePoint struct {
	Source  string  `json:"source"`
	Price   float64 `json:"price"`
	Date    string  `json:"date"`
	URL     string  `json:"url,omitempty"`
	InStock *bool   `json:"inStock,omitempty"`
}

// Offer is a source-specific live observation derived by the projection
// engine: the chronologically latest price point of one source.
type Offer struct {
	Source    string    `json:"source"`
	Price     float64   `json:"price"`
	URL       string    `json:"url,omitempty"`
	FetchedAt time.Time `json:"fetchedAt"`
	InStock   *bool     `json:"inStock,omitempty"`
}

// Specs holds the per-product attributes the tagging rules evaluate.
// Every field is optional; adapters fill what the vendor payload exposes.
type Specs struct {
	CapacityMah  *float64 `json:"capacity,omitempty"`
	OutputPowerW *float64 `json:"outputPower,omitempty"`
	WeightG      *float64 `json:"weight,omitempty"`
	HasTypeC     *bool    `json:"hasTypeC,omitempty"`
}

// AsMap exposes the non-nil spec fields under their rule-facing names.
func (s Specs) AsMap() map[string]any {
	m := map[string]any{}
	if s.CapacityMah != nil {
		m["capacity"] = *s.CapacityMah
	}
	if s.OutputPowerW != nil {
		m["outputPower"] = *s.OutputPowerW
	}
	if s.WeightG != nil {
		m["weight"] = *s.WeightG
	}
	if s.HasTypeC != nil {
		m["hasTypeC"] = *s.HasTypeC
	}
	return m
}

// Merge overlays non-nil fields of other onto s and reports whether
// anything changed.
func (s *Specs) Merge(other Specs) bool {
	changed := false
	if other.CapacityMah != nil && (s.CapacityMah == nil || *s.CapacityMah != *other.CapacityMah) {
		s.CapacityMah = other.CapacityMah
		changed = true
	}
	if other.OutputPowerW != nil && (s.OutputPowerW == nil || *s.OutputPowerW != *other.OutputPowerW) {
		s.OutputPowerW = other.OutputPowerW
		changed = true
	}
	if other.WeightG != nil && (s.WeightG == nil || *s.WeightG != *other.WeightG) {
		s.WeightG = other.WeightG
		changed = true
	}
	if other.HasTypeC != nil && (s.HasTypeC == nil || *s.HasTypeC != *other.HasTypeC) {
		s.HasTypeC = other.HasTypeC
		changed = true
	}
	return changed
}

// QualityStamp summarizes the outcome of one quality-sweep visit.
type QualityStamp struct {
	Score         int       `json:"score"`
	Flags         []string  `json:"flags"`
	AutoFixed     []string  `json:"autoFixed"`
	LastCheckedAt time.Time `json:"lastCheckedAt"`
}

// FieldIssue describes one defect found while validating a record.
type FieldIssue struct {
	Field  string `json:"field"`
	Kind   string `json:"kind"` // "missing" or "invalid"
	Detail string `json:"detail,omitempty"`
}
