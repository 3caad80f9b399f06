// Package pipeline orchestrates an ingestion run: reference data first, then
// facts per indicator, with per-record fault containment.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/health-data-etl-service/internal/domain"
	"github.com/couchcryptid/health-data-etl-service/internal/observability"
)

// Source provides reference and indicator data. Implementations never fail:
// an unreachable or empty source yields empty slices.
type Source interface {
	FetchCountries(ctx context.Context) []domain.RawCountryRecord
	FetchIndicator(ctx context.Context, code string) []domain.RawFactRecord
}

// Store persists reference and fact rows. Errors from Store are fatal to the
// run; a constraint rejection is reported through the outcome, not the error.
type Store interface {
	UpsertCountry(ctx context.Context, country domain.Country) error
	InsertHealthFact(ctx context.Context, fact domain.HealthFact) (domain.InsertOutcome, error)
}

// Publisher emits ingested facts for downstream consumers. Optional.
type Publisher interface {
	PublishFacts(ctx context.Context, facts []domain.HealthFact) error
}

// Summary reports what one ingestion run did.
type Summary struct {
	CountriesUpserted int `json:"countries_upserted"`
	FactsInserted     int `json:"facts_inserted"`
	FactsRejected     int `json:"facts_rejected"`
	RecordsSkipped    int `json:"records_skipped"`
}

// Pipeline drives ingestion runs. Reference upserts always complete before
// any fact insert, so the foreign-key check sees the freshest dimension data.
type Pipeline struct {
	source    Source
	store     Store
	publisher Publisher // may be nil
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Pipeline. publisher may be nil when fact events are disabled.
func New(source Source, store Store, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:    source,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// run, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed an ingestion run yet")
	}
	return nil
}

// Run executes one full ingestion pass over the given indicator codes, in
// order. A record the store rejects is skipped and the run continues; only a
// failure of the store itself aborts the run. An empty or unreachable source
// is not an error.
func (p *Pipeline) Run(ctx context.Context, indicators []string) (Summary, error) {
	start := time.Now()
	p.metrics.IngestRunning.Set(1)
	defer p.metrics.IngestRunning.Set(0)
	defer func() {
		p.metrics.IngestDuration.Observe(time.Since(start).Seconds())
	}()

	p.logger.Info("ingestion run started", "indicators", indicators)

	var sum Summary
	if err := p.ingestCountries(ctx, &sum); err != nil {
		return sum, err
	}

	for _, code := range indicators {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := p.ingestIndicator(ctx, code, &sum); err != nil {
			return sum, err
		}
	}

	p.ready.Store(true)
	p.logger.Info("ingestion run finished",
		"countries_upserted", sum.CountriesUpserted,
		"facts_inserted", sum.FactsInserted,
		"facts_rejected", sum.FactsRejected,
		"records_skipped", sum.RecordsSkipped,
	)
	return sum, nil
}

func (p *Pipeline) ingestCountries(ctx context.Context, sum *Summary) error {
	records := p.source.FetchCountries(ctx)
	if len(records) == 0 {
		p.logger.Warn("no country records from source, reference data unchanged")
		return nil
	}

	for _, rec := range records {
		country := domain.CountryFromRecord(rec)
		if err := p.store.UpsertCountry(ctx, country); err != nil {
			return fmt.Errorf("ingest countries: %w", err)
		}
		sum.CountriesUpserted++
	}
	p.logger.Info("reference data upserted", "countries", sum.CountriesUpserted)
	return nil
}

func (p *Pipeline) ingestIndicator(ctx context.Context, code string, sum *Summary) error {
	records := p.source.FetchIndicator(ctx, code)
	if len(records) == 0 {
		p.logger.Warn("no observations from source", "indicator", code)
		return nil
	}

	inserted := make([]domain.HealthFact, 0, len(records))
	for _, rec := range records {
		fact, err := domain.FactFromRecord(rec)
		if err != nil {
			p.logger.Warn("skipping unusable observation", "indicator", code, "error", err)
			p.metrics.RecordsSkipped.Inc()
			sum.RecordsSkipped++
			continue
		}

		outcome, err := p.store.InsertHealthFact(ctx, fact)
		if err != nil {
			return fmt.Errorf("ingest indicator %s: %w", code, err)
		}
		switch outcome {
		case domain.FactInserted:
			sum.FactsInserted++
			inserted = append(inserted, fact)
		case domain.FactRejected:
			sum.FactsRejected++
		}
	}

	p.publish(ctx, code, inserted)
	return nil
}

// publish sends inserted facts downstream. Publishing is best-effort: a sink
// failure is logged and counted but never aborts ingestion.
func (p *Pipeline) publish(ctx context.Context, code string, facts []domain.HealthFact) {
	if p.publisher == nil || len(facts) == 0 {
		return
	}
	if err := p.publisher.PublishFacts(ctx, facts); err != nil {
		p.logger.Warn("publish facts failed", "indicator", code, "count", len(facts), "error", err)
		p.metrics.PublishErrors.Inc()
		return
	}
	p.metrics.FactsPublished.Add(float64(len(facts)))
}
