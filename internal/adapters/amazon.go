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

// AmazonAdapter reads the affiliate product feed. The feed is a JSON API in
// front of PA-API results; items are keyed by ASIN.
type AmazonAdapter struct {
	log      *logger.Logger
	client   *http.Client
	baseURL  string
	apiKey   string
	category string
}

type AmazonOptions struct {
	BaseURL  string // empty disables the adapter
	APIKey   string
	Category string
	Client   *http.Client
}

func NewAmazonAdapter(log *logger.Logger, opts AmazonOptions) *AmazonAdapter {
	client := opts.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = "mobile-battery"
	}
	return &AmazonAdapter{
		log:      log.With("adapter", SourceAmazon),
		client:   client,
		baseURL:  strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		apiKey:   strings.TrimSpace(opts.APIKey),
		category: category,
	}
}

func (a *AmazonAdapter) Source() string { return SourceAmazon }

type amazonFeedItem struct {
	ASIN     string   `json:"asin"`
	Title    string   `json:"title"`
	Price    *float64 `json:"price"`
	URL      string   `json:"url"`
	ImageURL string   `json:"image_url"`
	Specs    *struct {
		CapacityMah  *float64 `json:"capacity_mah"`
		OutputPowerW *float64 `json:"output_power_w"`
		WeightG      *float64 `json:"weight_g"`
		HasTypeC     *bool    `json:"has_type_c"`
	} `json:"specs"`
}

func (a *AmazonAdapter) FetchNewItems(ctx context.Context) ([]AdapterItem, error) {
	if a.baseURL == "" {
		a.log.Debug("Adapter not configured, returning no items")
		return []AdapterItem{}, nil
	}

	q := url.Values{}
	q.Set("category", a.category)
	if a.apiKey != "" {
		q.Set("api_key", a.apiKey)
	}

	body, err := doGetJSON(ctx, a.client, a.baseURL+"/v1/products?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("amazon feed: %w", err)
	}

	// Accept both object-wrapped and bare-array payloads.
	var wrapped struct {
		Products []amazonFeedItem `json:"products"`
	}
	var items []amazonFeedItem
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Products) > 0 {
		items = wrapped.Products
	} else {
		var arr []amazonFeedItem
		if err := json.Unmarshal(body, &arr); err != nil {
			return nil, fmt.Errorf("amazon payload parse: %w", err)
		}
		items = arr
	}

	out := make([]AdapterItem, 0, len(items))
	for _, it := range items {
		item := AdapterItem{
			ID:          strings.TrimSpace(it.ASIN),
			ProductName: it.Title,
			ImageURL:    it.ImageURL,
			Price:       it.Price,
			URL:         it.URL,
		}
		if it.Specs != nil {
			item.Specs = &types.Specs{
				CapacityMah:  it.Specs.CapacityMah,
				OutputPowerW: it.Specs.OutputPowerW,
				WeightG:      it.Specs.WeightG,
				HasTypeC:     it.Specs.HasTypeC,
			}
		} else {
			item.Specs = specsFromName(it.Title)
		}
		out = append(out, item)
	}
	return normalizeItems(out), nil
}
