package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/mobatt/mobatt-backend/internal/logger"
)

// YahooAdapter searches the Yahoo Shopping item search API.
type YahooAdapter struct {
	log     *logger.Logger
	client  *http.Client
	baseURL string
	appID   string
	query   string
}

type YahooOptions struct {
	BaseURL string // defaults to the public itemSearch endpoint
	AppID   string // empty disables the adapter
	Query   string
	Client  *http.Client
}

func NewYahooAdapter(log *logger.Logger, opts YahooOptions) *YahooAdapter {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = "https://shopping.yahooapis.jp/ShoppingWebService/V3/itemSearch"
	}
	query := strings.TrimSpace(opts.Query)
	if query == "" {
		query = "モバイルバッテリー"
	}
	client := opts.Client
	if client == nil {
		client = defaultHTTPClient()
	}
	return &YahooAdapter{
		log:     log.With("adapter", SourceYahoo),
		client:  client,
		baseURL: base,
		appID:   strings.TrimSpace(opts.AppID),
		query:   query,
	}
}

func (a *YahooAdapter) Source() string { return SourceYahoo }

type yahooResponse struct {
	Hits []struct {
		Code  string  `json:"code"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		URL   string  `json:"url"`
		Image struct {
			Medium string `json:"medium"`
		} `json:"image"`
		InStock bool `json:"inStock"`
	} `json:"hits"`
}

func (a *YahooAdapter) FetchNewItems(ctx context.Context) ([]AdapterItem, error) {
	if a.appID == "" {
		a.log.Debug("Adapter not configured, returning no items")
		return []AdapterItem{}, nil
	}

	q := url.Values{}
	q.Set("appid", a.appID)
	q.Set("query", a.query)
	q.Set("results", strconv.Itoa(30))
	q.Set("in_stock", "true")

	body, err := doGetJSON(ctx, a.client, a.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("yahoo search: %w", err)
	}

	var resp yahooResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("yahoo payload parse: %w", err)
	}

	out := make([]AdapterItem, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		price := hit.Price
		inStock := hit.InStock
		out = append(out, AdapterItem{
			ID:          itemIDFromCode(hit.Code),
			ProductName: hit.Name,
			ImageURL:    hit.Image.Medium,
			Price:       &price,
			URL:         hit.URL,
			InStock:     &inStock,
			Specs:       specsFromName(hit.Name),
		})
	}
	return normalizeItems(out), nil
}
