package repos

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.SourceItem{},
		&types.CatalogItem{},
		&types.MonitoredItem{},
		&types.BlogPost{},
		&types.QuarantineRecord{},
		&types.AuditRun{},
		&types.AuditIssue{},
		&types.FeatureFlag{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestCatalogItemRepoRoundTrip(t *testing.T) {
	db := newTestDB(t)
	repo := NewCatalogItemRepo(db, testLogger(t))
	ctx := context.Background()

	item := &types.CatalogItem{
		ID:           "rakuten-abc123",
		ProductName:  "Anker PowerCore 10000",
		PriceHistory: datatypes.JSON([]byte(`[{"source":"rakuten","price":2990,"date":"2026-08-01T00:00:00Z"}]`)),
		Affiliate:    datatypes.NewJSONType(map[string]string{"rakuten": "https://r.example/abc"}),
	}
	if err := repo.Create(ctx, nil, item); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(ctx, nil, "rakuten-abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected item, got nil")
	}
	if got.ProductName != "Anker PowerCore 10000" {
		t.Errorf("product name = %q", got.ProductName)
	}
	if got.Affiliate.Data()["rakuten"] != "https://r.example/abc" {
		t.Errorf("affiliate map not round-tripped: %v", got.Affiliate.Data())
	}

	missing, err := repo.GetByID(ctx, nil, "no-such-id")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing id, got %+v", missing)
	}

	if err := repo.UpdateFields(ctx, nil, item.ID, map[string]interface{}{"product_name": "renamed"}); err != nil {
		t.Fatalf("update fields: %v", err)
	}
	got, err = repo.GetByID(ctx, nil, item.ID)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.ProductName != "renamed" {
		t.Errorf("update fields did not apply, got %q", got.ProductName)
	}
}

func TestMonitoredItemRepoUpsertMergePreservesUnlistedColumns(t *testing.T) {
	db := newTestDB(t)
	repo := NewMonitoredItemRepo(db, testLogger(t))
	ctx := context.Background()

	first := &types.MonitoredItem{
		ID:          "rakuten-abc123",
		ProductName: "Anker PowerCore 10000",
		Price:       2990,
		AISummary:   "written by an earlier generation run",
		Category:    "large-capacity",
	}
	if err := repo.UpsertMerge(ctx, nil, first, []string{"product_name", "price", "ai_summary", "category", "updated_at"}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	// The projection stage rewrites price and name but must not clobber
	// fields owned by other stages.
	second := &types.MonitoredItem{
		ID:          "rakuten-abc123",
		ProductName: "Anker PowerCore 10000 Redux",
		Price:       2790,
	}
	if err := repo.UpsertMerge(ctx, nil, second, []string{"product_name", "price", "updated_at"}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, nil, "rakuten-abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Price != 2790 {
		t.Errorf("price = %v, want 2790", got.Price)
	}
	if got.ProductName != "Anker PowerCore 10000 Redux" {
		t.Errorf("product name = %q", got.ProductName)
	}
	if got.AISummary != "written by an earlier generation run" {
		t.Errorf("ai summary clobbered: %q", got.AISummary)
	}
	if got.Category != "large-capacity" {
		t.Errorf("category clobbered: %q", got.Category)
	}
}

func TestBlogPostRepoSlugLookup(t *testing.T) {
	db := newTestDB(t)
	repo := NewBlogPostRepo(db, testLogger(t))
	ctx := context.Background()

	post := &types.BlogPost{
		ID:     uuid.NewString(),
		Slug:   "anker-powercore-10000-review",
		Title:  "Anker PowerCore 10000 レビュー",
		Status: types.BlogStatusDraft,
		ItemID: "rakuten-abc123",
	}
	if err := repo.Create(ctx, nil, post); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetBySlug(ctx, nil, "anker-powercore-10000-review")
	if err != nil {
		t.Fatalf("get by slug: %v", err)
	}
	if got == nil || got.ID != post.ID {
		t.Fatalf("slug lookup failed: %+v", got)
	}

	byItem, err := repo.GetByItemID(ctx, nil, "rakuten-abc123")
	if err != nil {
		t.Fatalf("get by item: %v", err)
	}
	if len(byItem) != 1 {
		t.Fatalf("expected 1 post for item, got %d", len(byItem))
	}

	none, err := repo.GetBySlug(ctx, nil, "missing-slug")
	if err != nil {
		t.Fatalf("get missing slug: %v", err)
	}
	if none != nil {
		t.Errorf("expected nil for missing slug")
	}
}

func TestAuditRepoRunLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewAuditRepo(db, testLogger(t))
	ctx := context.Background()

	run := &types.AuditRun{StartedAt: time.Now().UTC()}
	if err := repo.CreateRun(ctx, nil, run); err != nil {
		t.Fatalf("create run: %v", err)
	}
	if run.ID == uuid.Nil {
		t.Fatal("run id not assigned")
	}

	issues := []*types.AuditIssue{
		{RunID: run.ID, RecordID: "rakuten-abc123", Field: "price", Kind: "missing"},
		{RunID: run.ID, RecordID: "rakuten-abc123", Field: "imageUrl", Kind: "invalid", Detail: "not a URL"},
	}
	if err := repo.CreateIssues(ctx, nil, issues); err != nil {
		t.Fatalf("create issues: %v", err)
	}
	for _, issue := range issues {
		if issue.ID == uuid.Nil {
			t.Error("issue id not assigned")
		}
	}

	if err := repo.FinishRun(ctx, nil, run.ID, map[string]interface{}{
		"checked": 10, "fixed": 2, "flagged": 1,
	}); err != nil {
		t.Fatalf("finish run: %v", err)
	}

	var got types.AuditRun
	if err := db.Where("id = ?", run.ID).First(&got).Error; err != nil {
		t.Fatalf("reload run: %v", err)
	}
	if got.Checked != 10 || got.Fixed != 2 || got.Flagged != 1 {
		t.Errorf("counters = %d/%d/%d", got.Checked, got.Fixed, got.Flagged)
	}
	if got.FinishedAt == nil {
		t.Error("finished_at not stamped")
	}
}

func TestQuarantineRepoCreateAndList(t *testing.T) {
	db := newTestDB(t)
	repo := NewQuarantineRepo(db, testLogger(t))
	ctx := context.Background()

	rec := &types.QuarantineRecord{
		Collection: "monitored_item",
		RecordID:   "rakuten-broken",
		Payload:    datatypes.JSON([]byte(`{"id":"rakuten-broken","price":-1}`)),
		Issues: datatypes.NewJSONType([]types.FieldIssue{
			{Field: "price", Kind: "invalid", Detail: "negative price"},
		}),
	}
	if err := repo.Create(ctx, nil, rec); err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Fatal("id not assigned")
	}

	got, err := repo.GetByCollection(ctx, nil, "monitored_item")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	if issues := got[0].Issues.Data(); len(issues) != 1 || issues[0].Field != "price" {
		t.Errorf("issues not round-tripped: %+v", issues)
	}
}

func TestFeatureFlagRepoDefaultsAndSet(t *testing.T) {
	db := newTestDB(t)
	repo := NewFeatureFlagRepo(db, testLogger(t))
	ctx := context.Background()

	enabled, err := repo.Get(ctx, nil, types.FlagGenerationEnabled)
	if err != nil {
		t.Fatalf("get unknown flag: %v", err)
	}
	if enabled {
		t.Error("unknown flag should be disabled")
	}

	if err := repo.Set(ctx, nil, types.FlagGenerationEnabled, true); err != nil {
		t.Fatalf("set: %v", err)
	}
	enabled, err = repo.Get(ctx, nil, types.FlagGenerationEnabled)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !enabled {
		t.Error("flag should be enabled after set")
	}

	if err := repo.Set(ctx, nil, types.FlagGenerationEnabled, false); err != nil {
		t.Fatalf("set again: %v", err)
	}
	enabled, err = repo.Get(ctx, nil, types.FlagGenerationEnabled)
	if err != nil {
		t.Fatalf("get after unset: %v", err)
	}
	if enabled {
		t.Error("flag should be disabled after second set")
	}
}

func TestSourceItemRepoArchive(t *testing.T) {
	db := newTestDB(t)
	repo := NewSourceItemRepo(db, testLogger(t))
	ctx := context.Background()

	now := time.Now().UTC()
	items := []*types.SourceItem{
		{Source: "rakuten", ExternalID: "abc123", Payload: datatypes.JSON([]byte(`{"itemPrice":2990}`)), FetchedAt: now.Add(-time.Hour)},
		{Source: "rakuten", ExternalID: "abc123", Payload: datatypes.JSON([]byte(`{"itemPrice":2790}`)), FetchedAt: now},
		{Source: "amazon", ExternalID: "abc123", Payload: datatypes.JSON([]byte(`{"price":3100}`)), FetchedAt: now},
	}
	if err := repo.CreateBatch(ctx, nil, items); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	got, err := repo.GetByExternalID(ctx, nil, "rakuten", "abc123")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 archived payloads, got %d", len(got))
	}
	if !got[0].FetchedAt.Before(got[1].FetchedAt) {
		t.Error("archive not ordered by fetched_at")
	}
}
