package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// RakutenAdapter searches the Ichiba item API for mobile battery listings.
// Item ids are derived from the vendor item code so the same listing always
// maps to the same catalog id.
type RakutenAdapter struct {
	log           *logger.Logger
	client        *http.Client
	baseURL       string
	applicationID string
	affiliateID   string
	keyword       string
}

type RakutenOptions struct {
	BaseURL       string // defaults to the public Ichiba endpoint
	ApplicationID string // empty disables the adapter
	AffiliateID   string
	Keyword       string
	Client        *http.Client
}

func NewRakutenAdapter(log *logger.Logger, opts RakutenOptions) *RakutenAdapter {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://app.rakuten.co.jp/services/api/IchibaItem/Search/20220601"
	}
	keyword := strings.TrimSpace(opts.Keyword)
	if keyword == "" {
		keyword = "モバイルバッテリー"
	}
	client := opts.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	return &RakutenAdapter{
		log:           log.With("adapter", SourceRakuten),
		client:        client,
		baseURL:       base,
		applicationID: strings.TrimSpace(opts.ApplicationID),
		affiliateID:   strings.TrimSpace(opts.AffiliateID),
		keyword:       keyword,
	}
}

func (a *RakutenAdapter) Source() string { return SourceRakuten }

type rakutenResponse struct {
	Items []struct {
		Item struct {
			ItemCode        string  `json:"itemCode"`
			ItemName        string  `json:"itemName"`
			ItemPrice       float64 `json:"itemPrice"`
			ItemURL         string  `json:"itemUrl"`
			AffiliateURL    string  `json:"affiliateUrl"`
			MediumImageURLs []struct {
				ImageURL string `json:"imageUrl"`
			} `json:"mediumImageUrls"`
		} `json:"Item"`
	} `json:"Items"`
}

func (a *RakutenAdapter) FetchNewItems(ctx context.Context) ([]AdapterItem, error) {
	if a.applicationID == "" {
		a.log.Debug("Adapter not configured, returning no items")
		return []AdapterItem{}, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("keyword", a.keyword)
	q.Set("applicationId", a.applicationID)
	if a.affiliateID != "" {
		q.Set("affiliateId", a.affiliateID)
	}
	q.Set("hits", "30")
	q.Set("sort", "standard")

	body, err := doGetJSON(ctx, a.client, a.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("rakuten search: %w", err)
	}

	var resp rakutenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("rakuten payload parse: %w", err)
	}

	out := make([]AdapterItem, 0, len(resp.Items))
	for _, wrapped := range resp.Items {
		item := wrapped.Item
		id := itemIDFromCode(item.ItemCode)
		if id == "" {
			continue
		}
		price := item.ItemPrice
		link := item.AffiliateURL
		if link == "" {
			link = item.ItemURL
		}
		var image string
		if len(item.MediumImageURLs) > 0 {
			image = item.MediumImageURLs[0].ImageURL
		}
		out = append(out, AdapterItem{
			ID:          id,
			ProductName: item.ItemName,
			ImageURL:    image,
			Price:       &price,
			URL:         link,
			Specs:       specsFromName(item.ItemName),
		})
	}
	return normalizeItems(out), nil
}

// itemIDFromCode maps the vendor item code ("shop:12345") to a stable
// catalog id.
func itemIDFromCode(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return strings.ReplaceAll(code, ":", "-")
}

// specsFromName extracts capacity/output hints the listing title carries.
// Vendor APIs rarely expose structured specs, so this is best-effort and
// leaves fields nil when the title says nothing.
func specsFromName(name string) *types.Specs {
	lower := strings.ToLower(name)
	var specs types.Specs
	found := false
	if v, ok := scanNumberBefore(lower, "mah"); ok {
		specs.CapacityMah = &v
		found = true
	}
	if v, ok := scanNumberBefore(lower, "w"); ok && v <= 300 {
		specs.OutputPowerW = &v
		found = true
	}
	if strings.Contains(lower, "type-c") || strings.Contains(lower, "usb-c") || strings.Contains(lower, "typec") {
		yes := true
		specs.HasTypeC = &yes
		found = true
	}
	if !found {
		return nil
	}
	return &specs
}

// scanNumberBefore finds the number immediately preceding a unit suffix.
func scanNumberBefore(s, unit string) (float64, bool) {
	idx := strings.Index(s, unit)
	for idx >= 0 {
		end := idx
		start := end
		for start > 0 && (s[start-1] >= '0' && s[start-1] <= '9' || s[start-1] == '.' || s[start-1] == ',') {
			start--
		}
		if start < end {
			raw := strings.ReplaceAll(s[start:end], ",", "")
			var v float64
			if _, err := fmt.Sscanf(raw, "%f", &v); err == nil && v > 0 {
				return v, true
			}
		}
		next := strings.Index(s[idx+len(unit):], unit)
		if next < 0 {
			break
		}
		idx = idx + len(unit) + next
	}
	return 0, false
}
