// Package adapters contains the per-marketplace fetchers. Each adapter
// translates one vendor API payload into the common AdapterItem shape and has
// no side effects beyond the remote call. An unconfigured adapter returns an
// empty slice rather than an error so a disabled source never fails the run.
package adapters

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mobatt/mobatt-backend/internal/types"
)

const (
	SourceRakuten = "rakuten"
	SourceAmazon  = "amazon"
	SourceYahoo   = "yahoo"
)

// AdapterItem is the common item shape adapters produce. InStock stays nil
// for vendors whose payloads carry no stock signal.
type AdapterItem struct {
	ID          string       `json:"id"`
	ProductName string       `json:"productName"`
	ImageURL    string       `json:"imageUrl,omitempty"`
	Price       *float64     `json:"price,omitempty"`
	URL         string       `json:"url,omitempty"`
	InStock     *bool        `json:"inStock,omitempty"`
	Specs       *types.Specs `json:"specs,omitempty"`
}

type SourceAdapter interface {
	Source() string
	FetchNewItems(ctx context.Context) ([]AdapterItem, error)
}

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}

func doGetJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mobatt-backend/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return body, nil
}

// normalizeItems trims fields, drops entries without an id, and removes
// duplicate ids keeping the first occurrence.
func normalizeItems(in []AdapterItem) []AdapterItem {
	out := make([]AdapterItem, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, it := range in {
		id := strings.TrimSpace(it.ID)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		it.ID = id
		it.ProductName = strings.TrimSpace(it.ProductName)
		it.ImageURL = strings.TrimSpace(it.ImageURL)
		it.URL = strings.TrimSpace(it.URL)
		if it.Price != nil && *it.Price < 0 {
			it.Price = nil
		}
		out = append(out, it)
	}
	return out
}
