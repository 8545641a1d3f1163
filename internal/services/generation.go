package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/locks"
	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/metrics"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/types"
	"github.com/mobatt/mobatt-backend/internal/utils"
)

type GenerationSummary struct {
	Skipped           bool `json:"skipped"`
	SummariesWritten  int  `json:"summariesWritten"`
	HighlightsWritten int  `json:"highlightsWritten"`
	PostsCreated      int  `json:"postsCreated"`
	ImagesRendered    int  `json:"imagesRendered"`
	Revalidated       int  `json:"revalidated"`
	Failed            int  `json:"failed"`
}

// GenerationService fills in AI summaries and feature highlights for
// monitored items and writes one blog article per item that has none.
// The enabled flag is resolved by the caller at trigger time and passed in;
// the run never re-reads it, so a mid-run flag flip cannot produce a
// half-generated batch.
type GenerationService interface {
	Run(ctx context.Context, generationEnabled bool) (*GenerationSummary, error)
}

type generationService struct {
	db       *gorm.DB
	log      *logger.Logger
	ai       AIClient
	images   BlogImageService
	reval    RevalidateService
	lock     locks.JobLock
	registry *metrics.Registry

	monitoredRepo repos.MonitoredItemRepo
	blogRepo      repos.BlogPostRepo

	maxPerRun  int
	publishNew bool
}

func NewGenerationService(
	db *gorm.DB,
	log *logger.Logger,
	ai AIClient,
	images BlogImageService,
	reval RevalidateService,
	lock locks.JobLock,
	registry *metrics.Registry,
	monitoredRepo repos.MonitoredItemRepo,
	blogRepo repos.BlogPostRepo,
) GenerationService {
	serviceLog := log.With("service", "GenerationService")
	return &generationService{
		db:            db,
		log:           serviceLog,
		ai:            ai,
		images:        images,
		reval:         reval,
		lock:          lock,
		registry:      registry,
		monitoredRepo: monitoredRepo,
		blogRepo:      blogRepo,
		maxPerRun:     utils.GetEnvAsInt("GENERATION_MAX_PER_RUN", 10, serviceLog),
		publishNew:    utils.GetEnvAsBool("GENERATION_AUTO_PUBLISH", false, serviceLog),
	}
}

func (s *generationService) Run(ctx context.Context, generationEnabled bool) (*GenerationSummary, error) {
	summary := &GenerationSummary{}
	if !generationEnabled {
		s.log.Info("generation disabled, skipping run")
		summary.Skipped = true
		return summary, nil
	}

	ok, err := s.lock.Acquire(ctx, "generate", stageLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire generate lock: %w", err)
	}
	if !ok {
		s.registry.IncLockContended("generate")
		return nil, ErrStageLocked
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx), "generate"); relErr != nil {
			s.log.Warn("generate lock release failed", "error", relErr)
		}
	}()

	start := time.Now()
	runErr := s.run(ctx, summary)
	status := "ok"
	if runErr != nil {
		status = "error"
	}
	s.registry.ObserveStage("generate", status, time.Since(start))
	if runErr != nil {
		return nil, runErr
	}
	return summary, nil
}

func (s *generationService) run(ctx context.Context, summary *GenerationSummary) error {
	items, err := s.monitoredRepo.GetAll(ctx, nil)
	if err != nil {
		return fmt.Errorf("load monitored items: %w", err)
	}

	generated := 0
	for _, item := range items {
		if generated >= s.maxPerRun {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		changed, err := s.generateForItem(ctx, item, summary)
		if err != nil {
			s.log.Error("generation failed for item", "item", item.ID, "error", err)
			summary.Failed++
			s.registry.IncRecordFailure("generate")
			continue
		}
		if changed {
			generated++
		}
	}
	return nil
}

func (s *generationService) generateForItem(ctx context.Context, item *types.MonitoredItem, summary *GenerationSummary) (bool, error) {
	changed := false
	updates := map[string]interface{}{}

	if strings.TrimSpace(item.AISummary) == "" && strings.TrimSpace(item.ProductName) != "" {
		text, err := s.ai.Complete(ctx, summarySystemPrompt, itemPrompt(item), 0.4)
		if err != nil {
			s.registry.IncLLMRequest("summary", "error")
			return false, fmt.Errorf("summary completion: %w", err)
		}
		s.registry.IncLLMRequest("summary", "ok")
		item.AISummary = clipRunes(text, 400)
		updates["ai_summary"] = item.AISummary
		summary.SummariesWritten++
		changed = true
	}

	if len(item.FeatureHighlights.Data()) == 0 && strings.TrimSpace(item.ProductName) != "" {
		obj, err := s.ai.GenerateJSON(ctx, highlightsSystemPrompt, itemPrompt(item), "feature_highlights", highlightsSchema())
		if err != nil {
			s.registry.IncLLMRequest("highlights", "error")
			return false, fmt.Errorf("highlights generation: %w", err)
		}
		s.registry.IncLLMRequest("highlights", "ok")
		highlights := extractHighlights(obj)
		if len(highlights) > 0 {
			item.FeatureHighlights = datatypes.NewJSONType(highlights)
			updates["feature_highlights"] = datatypes.NewJSONType(highlights)
			summary.HighlightsWritten++
			changed = true
		}
	}

	if len(updates) > 0 {
		updates["updated_at"] = time.Now().UTC()
		if err := s.monitoredRepo.UpdateFields(ctx, nil, item.ID, updates); err != nil {
			return false, fmt.Errorf("write item fields: %w", err)
		}
		if err := s.reval.Revalidate(ctx, "/items/"+item.ID); err != nil {
			s.log.Warn("item page revalidation failed", "item", item.ID, "error", err)
		} else {
			summary.Revalidated++
		}
	}

	existing, err := s.blogRepo.GetByItemID(ctx, nil, item.ID)
	if err != nil {
		return changed, fmt.Errorf("check existing posts: %w", err)
	}
	if len(existing) > 0 {
		return changed, nil
	}
	if err := s.createPost(ctx, item, summary); err != nil {
		return changed, err
	}
	return true, nil
}

func (s *generationService) createPost(ctx context.Context, item *types.MonitoredItem, summary *GenerationSummary) error {
	body, err := s.ai.Complete(ctx, articleSystemPrompt, itemPrompt(item), 0.7)
	if err != nil {
		s.registry.IncLLMRequest("article", "error")
		return fmt.Errorf("article completion: %w", err)
	}
	s.registry.IncLLMRequest("article", "ok")

	title := firstLine(body)
	if title == "" {
		title = item.ProductName
	}
	body = strings.TrimSpace(strings.TrimPrefix(body, title))
	slug := Slugify(item.ProductName, item.ID)

	now := time.Now().UTC()
	post := &types.BlogPost{
		ID:      uuid.NewString(),
		Slug:    slug,
		Title:   clipRunes(title, 120),
		Body:    body,
		Excerpt: clipRunes(item.AISummary, 200),
		Status:  types.BlogStatusDraft,
		ItemID:  item.ID,
	}
	if s.publishNew {
		post.Status = types.BlogStatusPublished
		post.PublishedAt = &now
	}

	ogURL, thumbURL, err := s.images.RenderAndUpload(ctx, slug, post.Title, item.AISummary)
	if err != nil {
		// post still goes out, imagery can be re-rendered later
		s.log.Warn("blog image render failed", "slug", slug, "error", err)
	} else {
		post.OGImageURL = ogURL
		post.ThumbnailURL = thumbURL
		summary.ImagesRendered++
	}

	if err := s.blogRepo.Create(ctx, nil, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	summary.PostsCreated++

	if post.Status == types.BlogStatusPublished {
		if err := s.reval.Revalidate(ctx, "/blog/"+slug); err != nil {
			s.log.Warn("blog page revalidation failed", "slug", slug, "error", err)
		} else {
			summary.Revalidated++
		}
	}
	return nil
}

const (
	summarySystemPrompt = "あなたはモバイルバッテリーの比較サイトの編集者です。" +
		"商品の要約を2〜3文の日本語で書いてください。誇張表現は避けてください。"
	highlightsSystemPrompt = "あなたはモバイルバッテリーの比較サイトの編集者です。" +
		"商品の特徴を3〜5個、日本語の短い文で挙げてください。記号や番号は付けないでください。"
	articleSystemPrompt = "あなたはモバイルバッテリーの比較サイトの編集者です。" +
		"1行目にタイトル、その後に紹介記事を日本語のMarkdownで書いてください。"
)

func itemPrompt(item *types.MonitoredItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "商品名: %s\n", item.ProductName)
	if item.Price > 0 {
		fmt.Fprintf(&b, "価格: %.0f円\n", item.Price)
	}
	if item.CapacityMah != nil {
		fmt.Fprintf(&b, "容量: %.0fmAh\n", *item.CapacityMah)
	}
	if item.OutputPowerW != nil {
		fmt.Fprintf(&b, "出力: %.0fW\n", *item.OutputPowerW)
	}
	if item.WeightG != nil {
		fmt.Fprintf(&b, "重量: %.0fg\n", *item.WeightG)
	}
	if item.HasTypeC != nil && *item.HasTypeC {
		b.WriteString("USB Type-C対応\n")
	}
	if tags := item.Tags.Data(); len(tags) > 0 {
		fmt.Fprintf(&b, "タグ: %s\n", strings.Join(tags, ", "))
	}
	return b.String()
}

func highlightsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"highlights": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"minItems": 3,
				"maxItems": 5,
			},
		},
		"required":             []string{"highlights"},
		"additionalProperties": false,
	}
}

func extractHighlights(obj map[string]any) []string {
	raw, _ := obj["highlights"].([]any)
	var out []string
	for _, v := range raw {
		line, _ := v.(string)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, clipRunes(line, 80))
		if len(out) == 5 {
			break
		}
	}
	return out
}

func firstLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.Trim(line, "# "))
		if line != "" {
			return line
		}
	}
	return ""
}

func clipRunes(s string, max int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}

// Slugify builds a stable URL slug from the product name, falling back to the
// record id when the name has no ASCII to work with.
func Slugify(name, id string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	idPart := strings.Trim(strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return '-'
	}, strings.ToLower(id)), "-")
	if slug == "" {
		return idPart
	}
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	return slug + "-" + idPart
}
