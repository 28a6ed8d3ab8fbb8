package search

import (
	"context"
	"log/slog"
	"time"

	apperrors "github.com/greenboardhq/greenboard/src/internal/errors"
)

// Orchestrator fans one query out across the enabled sources and joins
// on every sub-query settling.
type Orchestrator struct {
	sources map[SourceType]Source
	logger  *slog.Logger
}

// NewOrchestrator registers the given sources for fanout.
func NewOrchestrator(logger *slog.Logger, sources ...Source) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	registry := make(map[SourceType]Source, len(sources))
	for _, s := range sources {
		registry[s.Type()] = s
	}
	return &Orchestrator{sources: registry, logger: logger}
}

// FanoutResult carries the per-source candidate sets of one execution.
// Order holds the enabled sources in fanout iteration order; downstream
// stages iterate it so merge and facet output stays deterministic.
type FanoutResult struct {
	Order      []SourceType
	Candidates map[SourceType][]CandidateRecord
	Statuses   []SourceStatus
}

// Run dispatches the enabled sub-queries concurrently and collects every
// outcome, success or failure. A failing source contributes zero
// candidates and a recorded status; Run fails only when every enabled
// source fails.
func (o *Orchestrator) Run(ctx context.Context, q Query) (*FanoutResult, error) {
	enabled := make([]SourceType, 0, len(AllSources))
	for _, t := range q.Filters.EnabledSources() {
		if _, ok := o.sources[t]; ok {
			enabled = append(enabled, t)
		}
	}
	if len(enabled) == 0 {
		return nil, apperrors.NewValidationError("no registered source matches the requested content types", "content_types")
	}

	// Each source gets an equal share of the page, rounded up.
	perSource := (q.Limit + len(enabled) - 1) / len(enabled)
	sub := SourceQuery{FreeText: q.FreeText, Filters: q.Filters, Limit: perSource}

	type outcome struct {
		source  SourceType
		records []CandidateRecord
		err     error
		elapsed time.Duration
	}
	outcomes := make(chan outcome, len(enabled))
	for _, t := range enabled {
		go func(t SourceType, src Source) {
			start := time.Now()
			records, err := src.Search(ctx, sub)
			outcomes <- outcome{source: t, records: records, err: err, elapsed: time.Since(start)}
		}(t, o.sources[t])
	}

	candidates := make(map[SourceType][]CandidateRecord, len(enabled))
	statusBySource := make(map[SourceType]SourceStatus, len(enabled))
	failed := 0
	var lastErr error
	for i := 0; i < len(enabled); i++ {
		out := <-outcomes
		status := SourceStatus{Source: out.source, ElapsedMs: out.elapsed.Milliseconds()}
		if out.err != nil {
			failed++
			lastErr = out.err
			status.Error = out.err.Error()
			candidates[out.source] = nil
			o.logger.Warn("source query failed",
				"source", string(out.source),
				"error", out.err)
		} else {
			status.OK = true
			status.Count = len(out.records)
			candidates[out.source] = out.records
		}
		statusBySource[out.source] = status
	}

	if failed == len(enabled) {
		return nil, apperrors.NewAllSourcesFailedError(lastErr)
	}

	statuses := make([]SourceStatus, 0, len(enabled))
	for _, t := range enabled {
		statuses = append(statuses, statusBySource[t])
	}
	return &FanoutResult{Order: enabled, Candidates: candidates, Statuses: statuses}, nil
}
