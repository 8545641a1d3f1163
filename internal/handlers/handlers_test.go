package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/metrics"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/services"
	"github.com/mobatt/mobatt-backend/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeReval struct {
	paths []string
	err   error
}

func (f *fakeReval) Revalidate(_ context.Context, path string) error {
	if f.err != nil {
		return f.err
	}
	f.paths = append(f.paths, path)
	return nil
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func postJSON(t *testing.T, handler gin.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/revalidate", bytes.NewReader(raw))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return w
}

func TestRevalidateRejectsBadSecret(t *testing.T) {
	h := NewRevalidateHandler(testLogger(t), "s3cret", &fakeReval{}, nil)

	w := postJSON(t, h.Revalidate, map[string]string{"secret": "wrong", "path": "/blog/x"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != false || resp["reason"] != "invalid_secret" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestRevalidateRejectsMissingPath(t *testing.T) {
	h := NewRevalidateHandler(testLogger(t), "s3cret", &fakeReval{}, nil)

	w := postJSON(t, h.Revalidate, map[string]string{"secret": "s3cret"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != false || resp["reason"] != "missing_path" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestRevalidateAcceptsValidRequest(t *testing.T) {
	reval := &fakeReval{}
	h := NewRevalidateHandler(testLogger(t), "s3cret", reval, metrics.NewRegistry())

	w := postJSON(t, h.Revalidate, map[string]string{"secret": "s3cret", "path": "/blog/anker-10000"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", w.Code, w.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["ok"] != true || resp["path"] != "/blog/anker-10000" {
		t.Errorf("unexpected response: %v", resp)
	}
	if len(reval.paths) != 1 || reval.paths[0] != "/blog/anker-10000" {
		t.Errorf("revalidate service not invoked: %v", reval.paths)
	}
}

func TestGenerateReadsFlagAtTriggerTime(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.FeatureFlag{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := testLogger(t)
	flagRepo := repos.NewFeatureFlagRepo(db, log)
	gen := &fakeGeneration{}
	h := NewPipelineHandler(log, nil, gen, flagRepo)

	// Flag unset: run gets false.
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/pipeline/generate", nil)
	h.Generate(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(gen.calls) != 1 || gen.calls[0] != false {
		t.Fatalf("expected one disabled call, got %v", gen.calls)
	}

	if err := flagRepo.Set(context.Background(), nil, types.FlagGenerationEnabled, true); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/pipeline/generate", nil)
	h.Generate(c)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(gen.calls) != 2 || gen.calls[1] != true {
		t.Fatalf("expected enabled call after flag set, got %v", gen.calls)
	}
}

type fakeGeneration struct {
	calls []bool
}

func (f *fakeGeneration) Run(_ context.Context, enabled bool) (*services.GenerationSummary, error) {
	f.calls = append(f.calls, enabled)
	return &services.GenerationSummary{Skipped: !enabled}, nil
}
