package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/health-data-etl-service/internal/domain"
	"github.com/couchcryptid/health-data-etl-service/internal/observability"
	"github.com/couchcryptid/health-data-etl-service/internal/pipeline"
)

// --- mocks ---

type mockSource struct {
	countries  []domain.RawCountryRecord
	indicators map[string][]domain.RawFactRecord
}

func (m *mockSource) FetchCountries(_ context.Context) []domain.RawCountryRecord {
	return m.countries
}

func (m *mockSource) FetchIndicator(_ context.Context, code string) []domain.RawFactRecord {
	return m.indicators[code]
}

type mockStore struct {
	upserted     []domain.Country
	inserted     []domain.HealthFact
	rejectCodes  map[string]bool
	upsertErr    error
	insertErr    error
	insertErrFor string
}

func (m *mockStore) UpsertCountry(_ context.Context, country domain.Country) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, country)
	return nil
}

func (m *mockStore) InsertHealthFact(_ context.Context, fact domain.HealthFact) (domain.InsertOutcome, error) {
	if m.insertErr != nil && (m.insertErrFor == "" || m.insertErrFor == fact.CountryCode) {
		return domain.FactRejected, m.insertErr
	}
	if m.rejectCodes[fact.CountryCode] {
		return domain.FactRejected, nil
	}
	m.inserted = append(m.inserted, fact)
	return domain.FactInserted, nil
}

type mockPublisher struct {
	published []domain.HealthFact
	err       error
}

func (m *mockPublisher) PublishFacts(_ context.Context, facts []domain.HealthFact) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, facts...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func value(v float64) *float64 { return &v }

func testSource() *mockSource {
	return &mockSource{
		countries: []domain.RawCountryRecord{
			{Code: "FRA", Title: "France", ParentDimension: "EURO"},
			{Code: "GBR", Title: "United Kingdom", ParentDimension: ""},
		},
		indicators: map[string][]domain.RawFactRecord{
			"WHOSIS_000001": {
				{IndicatorCode: "WHOSIS_000001", SpatialDim: "FRA", TimeDim: 2021, Dim1: "MLE", NumericValue: value(82.5)},
				{IndicatorCode: "WHOSIS_000001", SpatialDim: "GBR", TimeDim: 2021, Dim1: "FMLE", NumericValue: value(83.1)},
			},
		},
	}
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	src := testSource()
	store := &mockStore{}
	pub := &mockPublisher{}

	p := pipeline.New(src, store, pub, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.CountriesUpserted)
	assert.Equal(t, 2, sum.FactsInserted)
	assert.Zero(t, sum.FactsRejected)
	assert.Zero(t, sum.RecordsSkipped)

	require.Len(t, store.upserted, 2)
	assert.Equal(t, domain.Country{Code: "FRA", Name: "France", Region: "EURO"}, store.upserted[0])
	assert.Equal(t, domain.UnknownRegion, store.upserted[1].Region, "blank region maps to the sentinel")

	require.Len(t, store.inserted, 2)
	sex, ok := store.inserted[0].Sex.Text()
	require.True(t, ok)
	assert.Equal(t, "Male", sex, "sex is normalized before the store sees it")

	assert.Len(t, pub.published, 2)
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_EmptySourceIsNotAnError(t *testing.T) {
	src := &mockSource{}
	store := &mockStore{}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)
	assert.Zero(t, sum.CountriesUpserted)
	assert.Zero(t, sum.FactsInserted)
	assert.Empty(t, store.upserted)
	assert.Empty(t, store.inserted)
}

func TestPipeline_Run_ContinuesPastRejectedFacts(t *testing.T) {
	src := testSource()
	src.indicators["WHOSIS_000001"] = append(src.indicators["WHOSIS_000001"],
		domain.RawFactRecord{IndicatorCode: "WHOSIS_000001", SpatialDim: "ZZZ", TimeDim: 2021, NumericValue: value(1)})
	store := &mockStore{rejectCodes: map[string]bool{"ZZZ": true}}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.FactsInserted)
	assert.Equal(t, 1, sum.FactsRejected)
}

func TestPipeline_Run_SkipsUnusableRecords(t *testing.T) {
	src := testSource()
	src.indicators["WHOSIS_000001"] = append(src.indicators["WHOSIS_000001"],
		domain.RawFactRecord{IndicatorCode: "WHOSIS_000001", SpatialDim: "", TimeDim: 2021})
	store := &mockStore{}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.FactsInserted)
	assert.Equal(t, 1, sum.RecordsSkipped)
}

func TestPipeline_Run_SkipsCompositeSexRecords(t *testing.T) {
	// A structured dimension member must be contained at the record level;
	// only a broken store may abort the run.
	src := testSource()
	src.indicators["WHOSIS_000001"] = append(src.indicators["WHOSIS_000001"],
		domain.RawFactRecord{
			IndicatorCode: "WHOSIS_000001",
			SpatialDim:    "FRA",
			TimeDim:       2021,
			Dim1:          map[string]any{"code": "MLE"},
			NumericValue:  value(1),
		})
	store := &mockStore{}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.FactsInserted)
	assert.Equal(t, 1, sum.RecordsSkipped)
}

func TestPipeline_Run_AbortsOnFatalStoreError(t *testing.T) {
	src := testSource()
	store := &mockStore{upsertErr: errors.New("database is locked")}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	_, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.Error(t, err)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_AbortsOnFatalInsertError(t *testing.T) {
	src := testSource()
	store := &mockStore{insertErr: errors.New("disk I/O error"), insertErrFor: "GBR"}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.Error(t, err)
	assert.Equal(t, 1, sum.FactsInserted, "records before the fatal error were persisted")
}

func TestPipeline_Run_PublishFailureDoesNotAbort(t *testing.T) {
	src := testSource()
	store := &mockStore{}
	pub := &mockPublisher{err: errors.New("broker unreachable")}

	p := pipeline.New(src, store, pub, discardLogger(), newTestMetrics())

	sum, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.FactsInserted)
	assert.Empty(t, pub.published)
}

func TestPipeline_Run_IndicatorOrderPreserved(t *testing.T) {
	src := testSource()
	src.indicators["NCD_BMI_30A"] = []domain.RawFactRecord{
		{IndicatorCode: "NCD_BMI_30A", SpatialDim: "FRA", TimeDim: 2020, Dim1: "BTSX", NumericValue: value(21.6)},
	}
	store := &mockStore{}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	_, err := p.Run(context.Background(), []string{"NCD_BMI_30A", "WHOSIS_000001"})
	require.NoError(t, err)

	require.Len(t, store.inserted, 3)
	assert.Equal(t, "NCD_BMI_30A", store.inserted[0].Indicator)
	assert.Equal(t, "WHOSIS_000001", store.inserted[1].Indicator)
}

func TestPipeline_Run_StampsIngestTime(t *testing.T) {
	frozen := time.Date(2024, time.April, 26, 15, 10, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(frozen))
	t.Cleanup(func() { domain.SetClock(nil) })

	src := testSource()
	store := &mockStore{}

	p := pipeline.New(src, store, nil, discardLogger(), newTestMetrics())

	_, err := p.Run(context.Background(), []string{"WHOSIS_000001"})
	require.NoError(t, err)
	require.NotEmpty(t, store.inserted)
	assert.Equal(t, frozen, store.inserted[0].IngestedAt)
}

func TestPipeline_CheckReadiness_BeforeFirstRun(t *testing.T) {
	p := pipeline.New(&mockSource{}, &mockStore{}, nil, discardLogger(), newTestMetrics())
	assert.Error(t, p.CheckReadiness(context.Background()))
}
