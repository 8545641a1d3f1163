package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mobatt/mobatt-backend/internal/locks"
	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/types"
)

type fakeAIClient struct {
	completions int
}

func (f *fakeAIClient) Complete(_ context.Context, system, _ string, _ float64) (string, error) {
	f.completions++
	if system == summarySystemPrompt {
		return "軽量で大容量のモバイルバッテリーです。通勤にも旅行にも向いています。", nil
	}
	return "おすすめモバイルバッテリー徹底レビュー\n\nこの記事では特徴を紹介します。", nil
}

func (f *fakeAIClient) GenerateJSON(_ context.Context, _, _, schemaName string, _ map[string]any) (map[string]any, error) {
	f.completions++
	if schemaName != "feature_highlights" {
		return map[string]any{}, nil
	}
	return map[string]any{
		"highlights": []any{"10000mAhの大容量", "急速充電対応", "185gの軽量ボディ"},
	}, nil
}

type fakeImages struct{ rendered int }

func (f *fakeImages) RenderAndUpload(_ context.Context, slug, _, _ string) (string, string, error) {
	f.rendered++
	return "https://cdn.example/" + OGImageKey(slug), "https://cdn.example/" + ThumbnailKey(slug), nil
}

type fakeReval struct{ paths []string }

func (f *fakeReval) Revalidate(_ context.Context, path string) error {
	f.paths = append(f.paths, path)
	return nil
}

func TestGenerationSkipsWhenDisabled(t *testing.T) {
	db := newTestDB(t)
	log, err := logger.New("test")
	require.NoError(t, err)
	ai := &fakeAIClient{}
	svc := NewGenerationService(db, log, ai, &fakeImages{}, &fakeReval{}, locks.NewMemoryLock(nil), nil,
		repos.NewMonitoredItemRepo(db, log), repos.NewBlogPostRepo(db, log))

	summary, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, summary.Skipped)
	assert.Zero(t, ai.completions, "disabled run must not touch the model")
}

func TestGenerationFillsSummaryAndCreatesPost(t *testing.T) {
	db := newTestDB(t)
	log, err := logger.New("test")
	require.NoError(t, err)

	require.NoError(t, db.Create(&types.MonitoredItem{
		ID:          "rakuten-abc123",
		ProductName: "Anker PowerCore 10000",
		Price:       2990,
	}).Error)

	images := &fakeImages{}
	reval := &fakeReval{}
	svc := NewGenerationService(db, log, &fakeAIClient{}, images, reval, locks.NewMemoryLock(nil), nil,
		repos.NewMonitoredItemRepo(db, log), repos.NewBlogPostRepo(db, log))

	summary, err := svc.Run(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, summary.Skipped)
	assert.Equal(t, 1, summary.SummariesWritten)
	assert.Equal(t, 1, summary.HighlightsWritten)
	assert.Equal(t, 1, summary.PostsCreated)
	assert.Equal(t, 1, summary.ImagesRendered)
	assert.Equal(t, 0, summary.Failed)

	var item types.MonitoredItem
	require.NoError(t, db.Where("id = ?", "rakuten-abc123").First(&item).Error)
	assert.NotEmpty(t, item.AISummary)
	assert.Len(t, item.FeatureHighlights.Data(), 3)

	var posts []types.BlogPost
	require.NoError(t, db.Find(&posts).Error)
	require.Len(t, posts, 1)
	assert.Equal(t, types.BlogStatusDraft, posts[0].Status)
	assert.Equal(t, "rakuten-abc123", posts[0].ItemID)
	assert.NotEmpty(t, posts[0].Slug)
	assert.NotEmpty(t, posts[0].OGImageURL)
	assert.Contains(t, reval.paths, "/items/rakuten-abc123")
}

func TestGenerationIsIdempotentPerItem(t *testing.T) {
	db := newTestDB(t)
	log, err := logger.New("test")
	require.NoError(t, err)

	require.NoError(t, db.Create(&types.MonitoredItem{
		ID:          "rakuten-abc123",
		ProductName: "Anker PowerCore 10000",
		Price:       2990,
	}).Error)

	svc := NewGenerationService(db, log, &fakeAIClient{}, &fakeImages{}, &fakeReval{}, locks.NewMemoryLock(nil), nil,
		repos.NewMonitoredItemRepo(db, log), repos.NewBlogPostRepo(db, log))

	_, err = svc.Run(context.Background(), true)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, 0, second.SummariesWritten)
	assert.Equal(t, 0, second.PostsCreated, "existing post must not be duplicated")

	var posts []types.BlogPost
	require.NoError(t, db.Find(&posts).Error)
	assert.Len(t, posts, 1)
}

func TestExtractHighlights(t *testing.T) {
	obj := map[string]any{
		"highlights": []any{" 大容量 ", "", "急速充電", "軽量", "薄型", "2台同時充電", "パススルー対応"},
	}
	got := extractHighlights(obj)
	assert.Equal(t, []string{"大容量", "急速充電", "軽量", "薄型", "2台同時充電"}, got)

	assert.Empty(t, extractHighlights(map[string]any{}))
	assert.Empty(t, extractHighlights(map[string]any{"highlights": "not a list"}))
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		id   string
		want string
	}{
		{"Anker PowerCore 10000", "rakuten-abc123", "anker-powercore-10000-rakuten-abc123"},
		{"モバイルバッテリー 大容量", "rakuten-xyz", "rakuten-xyz"},
		{"", "amazon-B00EXAMPLE", "amazon-b00example"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.name, tc.id), "Slugify(%q, %q)", tc.name, tc.id)
	}
}
