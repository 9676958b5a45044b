// Package pipeline orchestrates one ingestion run across all configured
// sources.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/archive"
	"github.com/voyantlabs/advisory-pipeline/internal/dedup"
	"github.com/voyantlabs/advisory-pipeline/internal/extract"
	"github.com/voyantlabs/advisory-pipeline/internal/logging"
	"github.com/voyantlabs/advisory-pipeline/internal/metrics"
	"github.com/voyantlabs/advisory-pipeline/internal/normalize"
	"github.com/voyantlabs/advisory-pipeline/internal/report"
	"github.com/voyantlabs/advisory-pipeline/internal/store"
)

// Config controls Pipeline behavior.
type Config struct {
	// Concurrency bounds how many source jobs run at once. Defaults to 4.
	Concurrency int
	// PersistTimeout bounds the store write after a run is cancelled, so an
	// in-flight batch can still land. Defaults to 30s.
	PersistTimeout time.Duration
}

// Pipeline drives fetch, extract, normalize, dedup, and persist for a set of
// sources. One Pipeline instance serves many runs.
type Pipeline struct {
	sources  []advisory.Source
	fetcher  advisory.Fetcher
	store    store.Store
	sink     report.Sink
	archiver *archive.Archiver
	clock    advisory.Clock
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Pipeline. The archiver may be nil; archiving is then
// skipped.
func New(
	sources []advisory.Source,
	fetcher advisory.Fetcher,
	st store.Store,
	sink report.Sink,
	archiver *archive.Archiver,
	clock advisory.Clock,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = report.NewFanout()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 30 * time.Second
	}
	metrics.Init()
	return &Pipeline{
		sources:  sources,
		fetcher:  fetcher,
		store:    st,
		sink:     sink,
		archiver: archiver,
		clock:    clock,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes one full pass over all sources and publishes the run report.
// It returns an error only when the run could not start at all; per-source
// failures are carried in the report so one broken source never blocks the
// rest.
func (p *Pipeline) Run(ctx context.Context) (report.RunReport, error) {
	rep := report.RunReport{
		RunID:     uuid.New(),
		StartedAt: p.clock.Now(),
	}

	known, err := p.store.LoadFingerprints(ctx)
	if err != nil {
		return rep, fmt.Errorf("load fingerprints: %w", err)
	}
	p.logger.Info("run starting",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("sources", len(p.sources)),
		zap.Int("known_fingerprints", len(known)),
	)

	results := make([]report.SourceJobResult, len(p.sources))
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func(i int, src advisory.Source) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			metrics.IncActiveJobs()
			defer metrics.DecActiveJobs()
			results[i] = p.runSource(ctx, src, known)
		}(i, src)
	}
	wg.Wait()

	rep.FinishedAt = p.clock.Now()
	rep.Results = results

	if err := p.sink.Publish(context.WithoutCancel(ctx), rep); err != nil {
		p.logger.Warn("report publish failed", zap.Error(err))
	}
	return rep, nil
}

// runSource executes the full stage sequence for one source.
func (p *Pipeline) runSource(ctx context.Context, src advisory.Source, known dedup.Known) report.SourceJobResult {
	start := p.clock.Now()
	res := report.SourceJobResult{SourceName: src.Name}
	defer func() {
		res.Duration = p.clock.Now().Sub(start)
	}()
	logger := logging.ForSource(p.logger, src.Name)

	raw, err := p.fetcher.Fetch(ctx, advisory.FetchRequest{
		SourceName: src.Name,
		URL:        src.URL,
		Render:     src.Render,
		Headers:    src.ExtraHeaders,
	})
	if err != nil {
		logger.Error("fetch failed", zap.Error(err))
		res.Outcome = report.OutcomeFetchFailed
		res.Error = err.Error()
		return res
	}
	metrics.ObserveFetch(src.URL, raw.Duration)

	if p.archiver != nil {
		if uri, err := p.archiver.Archive(ctx, src.Name, raw); err != nil {
			// Archive failures never fail the job; the payload is a
			// convenience copy, not pipeline state.
			logger.Warn("archive failed", zap.Error(err))
		} else {
			logger.Debug("payload archived", zap.String("uri", uri))
		}
	}

	extractor, err := extract.New(src.Kind)
	if err != nil {
		// No registered extractor is a configuration problem, not drift on
		// the remote site.
		logger.Error("no extractor for source kind", zap.Error(err))
		res.Outcome = report.OutcomeConfigError
		res.Error = err.Error()
		return res
	}
	candidates, err := extractor.Extract(raw)
	if err != nil {
		logger.Error("extraction failed", zap.Error(err))
		res.Outcome = report.OutcomeStructureChanged
		res.Error = err.Error()
		return res
	}
	res.RecordsFound = len(candidates)
	if len(candidates) == 0 {
		logger.Info("source returned no advisories")
		res.Outcome = report.OutcomeEmpty
		return res
	}

	normalizer := normalize.New(src, p.clock)
	records := make([]advisory.Record, 0, len(candidates))
	for _, cand := range candidates {
		rec, err := normalizer.Normalize(cand)
		if err != nil {
			res.Dropped++
			metrics.ObserveDroppedRecord(src.Name, dropReason(err))
			logger.Warn("record dropped",
				zap.String("country", cand.Country),
				zap.Error(err),
			)
			continue
		}
		records = append(records, rec)
	}

	batch := dedup.Split(records, known)
	res.Unchanged = batch.Unchanged

	toWrite := append(batch.Inserts, batch.Updates...)
	if len(toWrite) > 0 {
		// Persistence runs detached from run cancellation so a batch that
		// already made it through the pipeline is not lost mid-write.
		persistCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.PersistTimeout)
		defer cancel()

		upserted, err := p.store.Upsert(persistCtx, toWrite)
		if err != nil {
			logger.Error("persist failed", zap.Error(err))
			res.Outcome = report.OutcomePersistFailed
			res.Error = err.Error()
			return res
		}
		res.Inserted = upserted.Inserted
		res.Updated = upserted.Updated
		res.Unchanged += upserted.Unchanged
	}

	res.Outcome = report.OutcomeOK
	logger.Info("source job done",
		zap.Int("found", res.RecordsFound),
		zap.Int("inserted", res.Inserted),
		zap.Int("updated", res.Updated),
		zap.Int("unchanged", res.Unchanged),
		zap.Int("dropped", res.Dropped),
	)
	return res
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, advisory.ErrUnresolvableCountry):
		return "unresolvable_country"
	case errors.Is(err, advisory.ErrMalformedDate):
		return "malformed_date"
	default:
		return "invalid"
	}
}
