package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"

	"github.com/mobatt/mobatt-backend/internal/logger"
	"github.com/mobatt/mobatt-backend/internal/repos"
	"github.com/mobatt/mobatt-backend/internal/services"
	"github.com/mobatt/mobatt-backend/internal/types"
	"github.com/mobatt/mobatt-backend/internal/utils"
)

// Scheduler drives the pipeline on cron schedules. Every entry goes through
// the same stage locks as the HTTP triggers, so a manual run and a scheduled
// one never overlap.
type Scheduler struct {
	log        *logger.Logger
	cron       *cron.Cron
	pipeline   services.PipelineService
	generation services.GenerationService
	flagRepo   repos.FeatureFlagRepo
}

func New(log *logger.Logger, pipeline services.PipelineService, generation services.GenerationService, flagRepo repos.FeatureFlagRepo) *Scheduler {
	return &Scheduler{
		log:        log.With("component", "Scheduler"),
		cron:       cron.New(),
		pipeline:   pipeline,
		generation: generation,
		flagRepo:   flagRepo,
	}
}

// Start registers the env-configured schedules and starts the cron loop.
// An empty schedule disables that stage.
func (s *Scheduler) Start(ctx context.Context) error {
	entries := []struct {
		env      string
		fallback string
		name     string
		run      func(context.Context) error
	}{
		{"SCHEDULE_FETCH", "0 5 * * *", "fetch", func(ctx context.Context) error {
			_, err := s.pipeline.RunFetch(ctx)
			return err
		}},
		{"SCHEDULE_PROJECT", "30 5 * * *", "project", func(ctx context.Context) error {
			_, err := s.pipeline.RunProjection(ctx)
			return err
		}},
		{"SCHEDULE_NORMALIZE_PRICES", "45 5 * * *", "normalize-prices", func(ctx context.Context) error {
			_, err := s.pipeline.RunPriceNormalization(ctx)
			return err
		}},
		{"SCHEDULE_QUALITY", "0 6 * * *", "quality", func(ctx context.Context) error {
			_, err := s.pipeline.RunQualitySweep(ctx)
			return err
		}},
		{"SCHEDULE_GENERATE", "0 7 * * *", "generate", s.runGeneration},
	}

	for _, e := range entries {
		spec := utils.GetEnv(e.env, e.fallback, s.log)
		if spec == "" {
			s.log.Info("stage schedule disabled", "stage", e.name)
			continue
		}
		name, run := e.name, e.run
		if _, err := s.cron.AddFunc(spec, func() {
			s.log.Info("scheduled stage starting", "stage", name)
			if err := run(ctx); err != nil {
				if errors.Is(err, services.ErrStageLocked) {
					s.log.Warn("scheduled stage skipped, lock held", "stage", name)
					return
				}
				s.log.Error("scheduled stage failed", "stage", name, "error", err)
				return
			}
			s.log.Info("scheduled stage finished", "stage", name)
		}); err != nil {
			return err
		}
		s.log.Info("stage scheduled", "stage", name, "spec", spec)
	}

	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

// runGeneration resolves the flag at trigger time, same as the HTTP route.
func (s *Scheduler) runGeneration(ctx context.Context) error {
	if s.generation == nil {
		s.log.Warn("generation service not configured, scheduled run skipped")
		return nil
	}
	enabled, err := s.flagRepo.Get(ctx, nil, types.FlagGenerationEnabled)
	if err != nil {
		return err
	}
	_, err = s.generation.Run(ctx, enabled)
	return err
}
