package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry collects per-stage pipeline counters. One instance per process;
// nil receivers are no-ops so wiring stays optional in tests.
type Registry struct {
	reg *prometheus.Registry

	StageRuns     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
	RecordsSeen   *prometheus.CounterVec
	RecordsFailed *prometheus.CounterVec
	QualityFlags  *prometheus.CounterVec
	Quarantined   prometheus.Counter
	LLMRequests   *prometheus.CounterVec
	LockContended *prometheus.CounterVec
	RevalidateHit prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	stageRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobatt_pipeline_stage_runs_total",
		Help: "Pipeline stage executions by stage and outcome.",
	}, []string{"stage", "status"})
	stageDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mobatt_pipeline_stage_duration_seconds",
		Help:    "Pipeline stage wall time by stage.",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"stage"})
	recordsSeen := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobatt_pipeline_records_total",
		Help: "Records processed by stage.",
	}, []string{"stage"})
	recordsFailed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobatt_pipeline_record_failures_total",
		Help: "Per-record failures that were isolated, by stage.",
	}, []string{"stage"})
	qualityFlags := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobatt_quality_flags_total",
		Help: "Quality flags raised during sweeps, by flag.",
	}, []string{"flag"})
	quarantined := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mobatt_quality_quarantined_total",
		Help: "Records moved to quarantine.",
	})
	llmRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobatt_llm_requests_total",
		Help: "Language model requests by kind and outcome.",
	}, []string{"kind", "status"})
	lockContended := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mobatt_job_lock_contended_total",
		Help: "Stage triggers skipped because the job lock was held.",
	}, []string{"stage"})
	revalidateHit := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "mobatt_revalidate_requests_total",
		Help: "Accepted revalidation requests.",
	})

	r.MustRegister(stageRuns, stageDuration, recordsSeen, recordsFailed,
		qualityFlags, quarantined, llmRequests, lockContended, revalidateHit)

	return &Registry{
		reg:           r,
		StageRuns:     stageRuns,
		StageDuration: stageDuration,
		RecordsSeen:   recordsSeen,
		RecordsFailed: recordsFailed,
		QualityFlags:  qualityFlags,
		Quarantined:   quarantined,
		LLMRequests:   llmRequests,
		LockContended: lockContended,
		RevalidateHit: revalidateHit,
	}
}

func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// ObserveStage records one stage execution. Safe on a nil registry.
func (r *Registry) ObserveStage(stage, status string, dur time.Duration) {
	if r == nil {
		return
	}
	r.StageRuns.WithLabelValues(stage, status).Inc()
	if dur > 0 {
		r.StageDuration.WithLabelValues(stage).Observe(dur.Seconds())
	}
}

func (r *Registry) AddRecords(stage string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.RecordsSeen.WithLabelValues(stage).Add(float64(n))
}

func (r *Registry) IncRecordFailure(stage string) {
	if r == nil {
		return
	}
	r.RecordsFailed.WithLabelValues(stage).Inc()
}

func (r *Registry) IncQualityFlag(flag string) {
	if r == nil {
		return
	}
	r.QualityFlags.WithLabelValues(flag).Inc()
}

func (r *Registry) IncQuarantined() {
	if r == nil {
		return
	}
	r.Quarantined.Inc()
}

func (r *Registry) IncLLMRequest(kind, status string) {
	if r == nil {
		return
	}
	r.LLMRequests.WithLabelValues(kind, status).Inc()
}

func (r *Registry) IncLockContended(stage string) {
	if r == nil {
		return
	}
	r.LockContended.WithLabelValues(stage).Inc()
}

func (r *Registry) IncRevalidate() {
	if r == nil {
		return
	}
	r.RevalidateHit.Inc()
}
