package adapters

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"

	"github.com/mobatt/mobatt-backend/internal/types"
)

// MockAdapter produces synthetic items for demos and unit tests. It is
// deterministic for a given seed and makes no network calls.
type MockAdapter struct {
	source  string
	baseURL string
	seed    int64
	count   int
}

func NewMockAdapter(source string, seed int64, count int) *MockAdapter {
	if count <= 0 {
		count = 10
	}
	return &MockAdapter{
		source:  source,
		baseURL: "https://example-marketplace.invalid",
		seed:    seed,
		count:   count,
	}
}

func (m *MockAdapter) Source() string { return m.source }

func (m *MockAdapter) FetchNewItems(ctx context.Context) ([]AdapterItem, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r := rand.New(rand.NewSource(m.seed))
	out := make([]AdapterItem, 0, m.count)
	for i := 0; i < m.count; i++ {
		id := fmt.Sprintf("%s-%06d", m.source, i+1)
		price := float64(1000 + i*250 + int(r.Int31n(200)))
		capacity := float64(5000 * (1 + i%6))
		hasTypeC := i%2 == 0
		out = append(out, AdapterItem{
			ID:          id,
			ProductName: fmt.Sprintf("Synthetic battery %d (%dmAh)", i+1, int(capacity)),
			ImageURL:    m.baseURL + "/images/" + url.PathEscape(id) + ".png",
			Price:       &price,
			URL:         m.baseURL + "/items/" + url.PathEscape(id),
			Specs: &types.Specs{
				CapacityMah: &capacity,
				HasTypeC:    &hasTypeC,
			},
		})
	}
	return normalizeItems(out), nil
}
