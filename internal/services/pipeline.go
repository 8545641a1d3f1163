package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/mobatt/mobatt-backend/internal/adapters"
	"github.com/mobatt/mobatt-backend/internal/catalog"
	"github.com/mobatt/mobatt-backend/internal/locks"
	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/metrics"
	"github.com/mobatt/mobatt-backend/internal/pricehistory"
	"github.com/mobatt/mobatt-backend/internal/projection"
	"github.com/mobatt/mobatt-backend/internal/quality"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/rules"
	"github.com/mobatt/mobatt-backend/internal/types"
)

// ErrStageLocked is returned when a stage trigger loses the job lock race.
var ErrStageLocked = errors.New("stage already running")

const stageLockTTL = 15 * time.Minute

type FetchSummary struct {
	Fetched      map[string]int    `json:"fetched"`
	SourceErrors map[string]string `json:"sourceErrors,omitempty"`
	Created      int               `json:"created"`
	Updated      int               `json:"updated"`
	Unchanged    int               `json:"unchanged"`
	Failed       int               `json:"failed"`
}

type ProjectionSummary struct {
	Projected int `json:"projected"`
	Failed    int `json:"failed"`
}

type NormalizeSummary struct {
	Items        int `json:"items"`
	Dropped      int `json:"dropped"`
	Collapsed    int `json:"collapsed"`
	LiveAppended int `json:"liveAppended"`
	Failed       int `json:"failed"`
}

type SweepSummary struct {
	Checked      int `json:"checked"`
	Fixed        int `json:"fixed"`
	Flagged      int `json:"flagged"`
	Quarantined  int `json:"quarantined"`
	BlogsChecked int `json:"blogsChecked"`
	Failed       int `json:"failed"`
}

// PipelineService runs the catalog pipeline stages. Every stage takes the
// job lock for its own name so an HTTP trigger and the cron schedule cannot
// run the same stage concurrently.
type PipelineService interface {
	RunFetch(ctx context.Context) (*FetchSummary, error)
	RunProjection(ctx context.Context) (*ProjectionSummary, error)
	RunPriceNormalization(ctx context.Context) (*NormalizeSummary, error)
	RunQualitySweep(ctx context.Context) (*SweepSummary, error)
}

type pipelineService struct {
	db       *gorm.DB
	log      *logger.Logger
	sources  []adapters.SourceAdapter
	ruleSet  []rules.Rule
	lock     locks.JobLock
	registry *metrics.Registry

	catalogRepo    repos.CatalogItemRepo
	monitoredRepo  repos.MonitoredItemRepo
	blogRepo       repos.BlogPostRepo
	auditRepo      repos.AuditRepo
	quarantineRepo repos.QuarantineRepo
	sourceRepo     repos.SourceItemRepo
}

func NewPipelineService(
	db *gorm.DB,
	log *logger.Logger,
	sources []adapters.SourceAdapter,
	ruleSet []rules.Rule,
	lock locks.JobLock,
	registry *metrics.Registry,
	catalogRepo repos.CatalogItemRepo,
	monitoredRepo repos.MonitoredItemRepo,
	blogRepo repos.BlogPostRepo,
	auditRepo repos.AuditRepo,
	quarantineRepo repos.QuarantineRepo,
	sourceRepo repos.SourceItemRepo,
) PipelineService {
	return &pipelineService{
		db:             db,
		log:            log.With("service", "PipelineService"),
		sources:        sources,
		ruleSet:        ruleSet,
		lock:           lock,
		registry:       registry,
		catalogRepo:    catalogRepo,
		monitoredRepo:  monitoredRepo,
		blogRepo:       blogRepo,
		auditRepo:      auditRepo,
		quarantineRepo: quarantineRepo,
		sourceRepo:     sourceRepo,
	}
}

// withStageLock guards fn with the named lock and records stage metrics.
func (s *pipelineService) withStageLock(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	ok, err := s.lock.Acquire(ctx, stage, stageLockTTL)
	if err != nil {
		return fmt.Errorf("acquire %s lock: %w", stage, err)
	}
	if !ok {
		s.registry.IncLockContended(stage)
		return ErrStageLocked
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx), stage); relErr != nil {
			s.log.Warn("stage lock release failed", "stage", stage, "error", relErr)
		}
	}()

	start := time.Now()
	err = fn(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.registry.ObserveStage(stage, status, time.Since(start))
	return err
}

func (s *pipelineService) RunFetch(ctx context.Context) (*FetchSummary, error) {
	summary := &FetchSummary{Fetched: map[string]int{}, SourceErrors: map[string]string{}}

	err := s.withStageLock(ctx, "fetch", func(ctx context.Context) error {
		type sourceBatch struct {
			source string
			items  []adapters.AdapterItem
		}

		var mu sync.Mutex
		var batches []sourceBatch

		// One source failing must not starve the others.
		g, gctx := errgroup.WithContext(ctx)
		for _, src := range s.sources {
			src := src
			g.Go(func() error {
				items, err := src.FetchNewItems(gctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					s.log.Error("source fetch failed", "source", src.Source(), "error", err)
					summary.SourceErrors[src.Source()] = err.Error()
					return nil
				}
				summary.Fetched[src.Source()] = len(items)
				batches = append(batches, sourceBatch{source: src.Source(), items: items})
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		if len(summary.SourceErrors) == len(s.sources) && len(s.sources) > 0 {
			return fmt.Errorf("all sources failed")
		}

		now := time.Now().UTC()
		for _, batch := range batches {
			s.archiveBatch(ctx, batch.source, batch.items, now)
			for _, it := range batch.items {
				if err := s.mergeOne(ctx, batch.source, it, now, summary); err != nil {
					s.log.Error("catalog merge failed", "source", batch.source, "item", it.ID, "error", err)
					summary.Failed++
					s.registry.IncRecordFailure("fetch")
				}
			}
			s.registry.AddRecords("fetch", len(batch.items))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(summary.SourceErrors) == 0 {
		summary.SourceErrors = nil
	}
	return summary, nil
}

func (s *pipelineService) archiveBatch(ctx context.Context, source string, items []adapters.AdapterItem, now time.Time) {
	archived := make([]*types.SourceItem, 0, len(items))
	for _, it := range items {
		payload, err := json.Marshal(it)
		if err != nil {
			continue
		}
		archived = append(archived, &types.SourceItem{
			Source:     source,
			ExternalID: it.ID,
			Payload:    datatypes.JSON(payload),
			FetchedAt:  now,
		})
	}
	if err := s.sourceRepo.CreateBatch(ctx, nil, archived); err != nil {
		// archive is best-effort, the merge still proceeds from memory
		s.log.Warn("raw payload archive failed", "source", source, "error", err)
	}
}

func (s *pipelineService) mergeOne(ctx context.Context, source string, it adapters.AdapterItem, now time.Time, summary *FetchSummary) error {
	existing, err := s.catalogRepo.GetByID(ctx, nil, it.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		item := catalog.NewItem(source, it, now)
		if err := s.catalogRepo.Create(ctx, nil, item); err != nil {
			return err
		}
		summary.Created++
		return nil
	}
	if catalog.Merge(existing, source, it, now) {
		if err := s.catalogRepo.Save(ctx, nil, existing); err != nil {
			return err
		}
		summary.Updated++
		return nil
	}
	summary.Unchanged++
	return nil
}

// Columns the projection stage owns on the monitored view.
var projectionColumns = []string{
	"product_name", "image_url", "price", "affiliate_url", "offers",
	"price_history", "capacity_mah", "output_power_w", "weight_g",
	"has_type_c", "tags", "category", "updated_at",
}

func (s *pipelineService) RunProjection(ctx context.Context) (*ProjectionSummary, error) {
	summary := &ProjectionSummary{}

	err := s.withStageLock(ctx, "project", func(ctx context.Context) error {
		items, err := s.catalogRepo.GetAll(ctx, nil)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		now := time.Now().UTC()
		for _, item := range items {
			if err := s.projectOne(ctx, item, now); err != nil {
				s.log.Error("projection failed", "item", item.ID, "error", err)
				summary.Failed++
				s.registry.IncRecordFailure("project")
				continue
			}
			summary.Projected++
		}
		s.registry.AddRecords("project", len(items))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *pipelineService) projectOne(ctx context.Context, item *types.CatalogItem, now time.Time) error {
	res := projection.Project(item)
	specs := item.Specs.Data()
	tagRes := rules.Apply(specs.AsMap(), s.ruleSet)

	monitored := &types.MonitoredItem{
		ID:           item.ID,
		ProductName:  item.ProductName,
		ImageURL:     item.ImageURL,
		Price:        res.Price,
		AffiliateURL: res.AffiliateURL,
		CapacityMah:  specs.CapacityMah,
		OutputPowerW: specs.OutputPowerW,
		WeightG:      specs.WeightG,
		HasTypeC:     specs.HasTypeC,
		Offers:       datatypes.NewJSONType(res.Offers),
		PriceHistory: item.PriceHistory,
		Tags:         datatypes.NewJSONType(tagRes.Tags),
		Category:     rules.Category(specs.AsMap(), s.ruleSet),
		UpdatedAt:    now,
	}
	return s.monitoredRepo.UpsertMerge(ctx, nil, monitored, projectionColumns)
}

func (s *pipelineService) RunPriceNormalization(ctx context.Context) (*NormalizeSummary, error) {
	summary := &NormalizeSummary{}

	err := s.withStageLock(ctx, "normalize-prices", func(ctx context.Context) error {
		items, err := s.monitoredRepo.GetAll(ctx, nil)
		if err != nil {
			return fmt.Errorf("load monitored items: %w", err)
		}
		now := time.Now().UTC()
		for _, item := range items {
			if err := s.normalizeOne(ctx, item, now, summary); err != nil {
				s.log.Error("price normalization failed", "item", item.ID, "error", err)
				summary.Failed++
				s.registry.IncRecordFailure("normalize-prices")
				continue
			}
			summary.Items++
		}
		s.registry.AddRecords("normalize-prices", len(items))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *pipelineService) normalizeOne(ctx context.Context, item *types.MonitoredItem, now time.Time, summary *NormalizeSummary) error {
	raw := pricehistory.DecodeRaw(item.PriceHistory)

	// When the catalog record still exists its history is the richer input.
	if cat, err := s.catalogRepo.GetByID(ctx, nil, item.ID); err == nil && cat != nil && len(cat.PriceHistory) > 0 {
		raw = pricehistory.DecodeRaw(cat.PriceHistory)
	}

	liveSource, liveURL := liveOffer(item)
	points, stats := pricehistory.Normalize(raw, item.Price, liveSource, liveURL, now)

	summary.Dropped += stats.Dropped
	summary.Collapsed += stats.Collapsed
	if stats.LiveAppended {
		summary.LiveAppended++
	}

	return s.monitoredRepo.UpdateFields(ctx, nil, item.ID, map[string]interface{}{
		"price_history": datatypes.JSON(pricehistory.EncodePoints(points)),
		"updated_at":    now,
	})
}

// liveOffer resolves which source the current live price belongs to. Falls
// back to the cheapest offer, then to a bare "live" marker.
func liveOffer(item *types.MonitoredItem) (source, url string) {
	offers := item.Offers.Data()
	if len(offers) == 0 {
		return "live", item.AffiliateURL
	}
	best := offers[0]
	for _, o := range offers[1:] {
		if o.Price < best.Price || (o.Price == best.Price && o.Source < best.Source) {
			best = o
		}
	}
	for _, o := range offers {
		if o.Price == item.Price {
			return o.Source, o.URL
		}
	}
	return best.Source, best.URL
}

// Columns the quality sweep may repair on the monitored view.
var sweepColumns = []string{
	"affiliate_url", "tags", "category", "ai_summary",
	"price_history", "data_quality", "updated_at",
}

func (s *pipelineService) RunQualitySweep(ctx context.Context) (*SweepSummary, error) {
	summary := &SweepSummary{}

	err := s.withStageLock(ctx, "quality", func(ctx context.Context) error {
		run := &types.AuditRun{StartedAt: time.Now().UTC()}
		if err := s.auditRepo.CreateRun(ctx, nil, run); err != nil {
			return fmt.Errorf("create audit run: %w", err)
		}

		items, err := s.monitoredRepo.GetAll(ctx, nil)
		if err != nil {
			return fmt.Errorf("load monitored items: %w", err)
		}

		var issues []*types.AuditIssue
		now := time.Now().UTC()
		for _, item := range items {
			res, err := s.sweepOne(ctx, item, now)
			summary.Checked++
			if err != nil {
				s.log.Error("sweep failed, record skipped", "item", item.ID, "error", err)
				summary.Failed++
				s.registry.IncRecordFailure("quality")
				continue
			}
			if res.Quarantine {
				summary.Quarantined++
				s.registry.IncQuarantined()
			}
			if res.Changed {
				summary.Fixed++
			}
			if len(res.Stamp.Flags) > 0 {
				summary.Flagged++
			}
			for _, f := range res.Stamp.Flags {
				s.registry.IncQualityFlag(f)
			}
			for _, issue := range res.Issues {
				issues = append(issues, &types.AuditIssue{
					RunID:    run.ID,
					RecordID: item.ID,
					Field:    issue.Field,
					Kind:     issue.Kind,
					Detail:   issue.Detail,
				})
			}
		}

		posts, err := s.blogRepo.GetAll(ctx, nil)
		if err != nil {
			return fmt.Errorf("load blog posts: %w", err)
		}
		for _, post := range posts {
			res := quality.SweepBlog(post, now)
			summary.BlogsChecked++
			if len(res.Stamp.Flags) > 0 {
				summary.Flagged++
			}
			for _, issue := range res.Issues {
				issues = append(issues, &types.AuditIssue{
					RunID:    run.ID,
					RecordID: post.ID,
					Field:    issue.Field,
					Kind:     issue.Kind,
					Detail:   issue.Detail,
				})
			}
			if err := s.blogRepo.UpdateFields(ctx, nil, post.ID, map[string]interface{}{
				"data_quality": datatypes.NewJSONType(res.Stamp),
				"updated_at":   now,
			}); err != nil {
				s.log.Error("blog stamp write failed", "post", post.ID, "error", err)
				summary.Failed++
			}
		}

		if err := s.auditRepo.CreateIssues(ctx, nil, issues); err != nil {
			s.log.Error("audit issue write failed", "run", run.ID, "error", err)
		}
		if err := s.auditRepo.FinishRun(ctx, nil, run.ID, map[string]interface{}{
			"checked":       summary.Checked,
			"fixed":         summary.Fixed,
			"flagged":       summary.Flagged,
			"quarantined":   summary.Quarantined,
			"blogs_checked": summary.BlogsChecked,
			"failed":        summary.Failed,
		}); err != nil {
			s.log.Error("audit run finish failed", "run", run.ID, "error", err)
		}
		s.registry.AddRecords("quality", summary.Checked)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// sweepOne audits a single record. A panic in the sweep of one record is
// contained here so the rest of the collection is still processed.
func (s *pipelineService) sweepOne(ctx context.Context, item *types.MonitoredItem, now time.Time) (res quality.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	lookup := quality.OfferLookupFunc(func(id string) (*types.Offer, bool) {
		cat, lookupErr := s.catalogRepo.GetByID(ctx, nil, id)
		if lookupErr != nil || cat == nil {
			return nil, false
		}
		projected := projection.Project(cat)
		if len(projected.Offers) == 0 {
			if projected.AffiliateURL == "" {
				return nil, false
			}
			return &types.Offer{Source: "rakuten", URL: projected.AffiliateURL}, true
		}
		for _, o := range projected.Offers {
			if o.Price == projected.Price {
				o := o
				if o.URL == "" {
					o.URL = projected.AffiliateURL
				}
				return &o, true
			}
		}
		o := projected.Offers[0]
		return &o, true
	})

	res = quality.SweepItem(item, s.ruleSet, lookup, now)

	if res.Quarantine {
		payload, mErr := json.Marshal(item)
		if mErr != nil {
			return res, mErr
		}
		if qErr := s.quarantineRepo.Create(ctx, nil, &types.QuarantineRecord{
			Collection: "monitored_item",
			RecordID:   item.ID,
			Payload:    datatypes.JSON(payload),
			Issues:     datatypes.NewJSONType(res.Issues),
		}); qErr != nil {
			return res, qErr
		}
		// The record stays in place; it still gets its stamp so operators
		// can see when it was last checked.
		item.DataQuality = datatypes.NewJSONType(res.Stamp)
		item.UpdatedAt = now
		return res, s.monitoredRepo.UpdateFields(ctx, nil, item.ID, map[string]interface{}{
			"data_quality": item.DataQuality,
			"updated_at":   now,
		})
	}

	item.DataQuality = datatypes.NewJSONType(res.Stamp)
	item.UpdatedAt = now
	return res, s.monitoredRepo.UpsertMerge(ctx, nil, item, sweepColumns)
}
