package pipeline

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/report"
	"github.com/voyantlabs/advisory-pipeline/internal/store/memory"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

// scriptedFetcher serves canned bodies per URL and counts fetches.
type scriptedFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	errs   map[string]error
	calls  map[string]int
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		bodies: make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (f *scriptedFetcher) Fetch(_ context.Context, req advisory.FetchRequest) (advisory.RawContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.URL]++
	if err, ok := f.errs[req.URL]; ok {
		return advisory.RawContent{}, err
	}
	body, ok := f.bodies[req.URL]
	if !ok {
		return advisory.RawContent{}, fmt.Errorf("no script for %s", req.URL)
	}
	return advisory.RawContent{
		URL:         req.URL,
		StatusCode:  200,
		Body:        []byte(body),
		RetrievedAt: time.Unix(1700000000, 0),
	}, nil
}

func (f *scriptedFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type captureSink struct {
	mu      sync.Mutex
	reports []report.RunReport
}

func (s *captureSink) Publish(_ context.Context, rep report.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, rep)
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func reliefWebBody(country, title, body string) string {
	return fmt.Sprintf(`{"data": [{"fields": {
		"title": %q,
		"body": %q,
		"country": [{"name": %q}],
		"date": {"created": "2023-11-02T08:00:00+00:00"},
		"url": "https://reliefweb.int/report/x"
	}}]}`, title, body, country)
}

func testSource(name, url string) advisory.Source {
	return advisory.Source{
		Name: name,
		URL:  url,
		Kind: advisory.KindReliefWeb,
		RiskVocab: map[string]advisory.RiskLevel{
			"reconsider travel": advisory.RiskHigh,
			"do not travel":     advisory.RiskCritical,
		},
	}
}

func TestRunPersistsAndIsIdempotent(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/france"] = reliefWebBody(
		"France", "France: Reconsider Travel", "Demonstrations expected nationwide.",
	)

	st := memory.New()
	sink := &captureSink{}
	p := New(
		[]advisory.Source{testSource("reliefweb_fr", "https://api.test/france")},
		fetcher, st, sink, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{Concurrency: 2},
		nil,
	)

	ctx := context.Background()

	rep, err := p.Run(ctx)
	require.NoError(t, err)
	require.False(t, rep.AnyFailed())
	require.Len(t, rep.Results, 1)
	require.Equal(t, report.OutcomeOK, rep.Results[0].Outcome)
	require.Equal(t, 1, rep.Results[0].Inserted)
	require.Equal(t, 1, st.Len())

	// An identical second run re-observes the record without rewriting it.
	rep, err = p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Results[0].Inserted)
	require.Equal(t, 0, rep.Results[0].Updated)
	require.Equal(t, 1, rep.Results[0].Unchanged)
	require.Equal(t, 1, st.Len())

	// Risk escalation on the same advisory text: the identity fields are
	// untouched, only the level moves, so the stored row is updated in place
	// rather than duplicated.
	fetcher.mu.Lock()
	fetcher.bodies["https://api.test/france"] = reliefWebBody(
		"France", "France: Do Not Travel", "Demonstrations expected nationwide.",
	)
	fetcher.mu.Unlock()

	rep, err = p.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, rep.Results[0].Inserted)
	require.Equal(t, 1, rep.Results[0].Updated)
	require.Equal(t, 1, st.Len())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.reports, 3)
}

func TestRunIsolatesSourceFailures(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/sudan"] = reliefWebBody(
		"Sudan", "Sudan: Do Not Travel", "Armed conflict is ongoing.",
	)
	fetcher.errs["https://api.test/broken"] = &advisory.FetchError{
		Kind: advisory.FetchTransient,
		URL:  "https://api.test/broken",
		Err:  fmt.Errorf("connect: connection refused"),
	}

	st := memory.New()
	p := New(
		[]advisory.Source{
			testSource("reliefweb_sd", "https://api.test/sudan"),
			testSource("reliefweb_broken", "https://api.test/broken"),
		},
		fetcher, st, &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{Concurrency: 2},
		nil,
	)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rep.AnyFailed())
	require.Len(t, rep.Results, 2)

	byName := make(map[string]report.SourceJobResult)
	for _, res := range rep.Results {
		byName[res.SourceName] = res
	}
	require.Equal(t, report.OutcomeOK, byName["reliefweb_sd"].Outcome)
	require.Equal(t, 1, byName["reliefweb_sd"].Inserted)
	require.Equal(t, report.OutcomeFetchFailed, byName["reliefweb_broken"].Outcome)
	require.NotEmpty(t, byName["reliefweb_broken"].Error)
	require.Equal(t, 1, st.Len())
}

func TestRunDistinguishesDriftFromEmpty(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/empty"] = `{"data": []}`
	fetcher.bodies["https://api.test/drifted"] = `<html>maintenance page</html>`

	p := New(
		[]advisory.Source{
			testSource("reliefweb_empty", "https://api.test/empty"),
			testSource("reliefweb_drifted", "https://api.test/drifted"),
		},
		fetcher, memory.New(), &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{},
		nil,
	)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)

	byName := make(map[string]report.SourceJobResult)
	for _, res := range rep.Results {
		byName[res.SourceName] = res
	}
	require.Equal(t, report.OutcomeEmpty, byName["reliefweb_empty"].Outcome)
	require.False(t, byName["reliefweb_empty"].Failed())
	require.Equal(t, report.OutcomeStructureChanged, byName["reliefweb_drifted"].Outcome)
	require.True(t, byName["reliefweb_drifted"].Failed())
}

func TestRunReportsUnknownKindAsConfigError(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/odd"] = `{"data": []}`

	src := testSource("misconfigured", "https://api.test/odd")
	src.Kind = "carrier-pigeon"

	p := New(
		[]advisory.Source{src},
		fetcher, memory.New(), &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{},
		nil,
	)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	// A kind with no registered extractor is a config problem, not drift on
	// the remote site.
	require.Equal(t, report.OutcomeConfigError, rep.Results[0].Outcome)
	require.True(t, rep.Results[0].Failed())
	require.NotEmpty(t, rep.Results[0].Error)
}

func TestRunDropsUnresolvableCountries(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/mixed"] = fmt.Sprintf(`{"data": [
		{"fields": {"title": "Chad: Reconsider Travel", "body": "Border instability.",
			"country": [{"name": "Chad"}], "date": {"created": ""}, "url": ""}},
		{"fields": {"title": "Atlantis: Do Not Travel", "body": "Not a real place.",
			"country": [{"name": "Atlantis"}], "date": {"created": ""}, "url": ""}}
	]}`)

	st := memory.New()
	p := New(
		[]advisory.Source{testSource("reliefweb_mixed", "https://api.test/mixed")},
		fetcher, st, &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{},
		nil,
	)

	rep, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, report.OutcomeOK, rep.Results[0].Outcome)
	require.Equal(t, 2, rep.Results[0].RecordsFound)
	require.Equal(t, 1, rep.Results[0].Inserted)
	require.Equal(t, 1, rep.Results[0].Dropped)
	require.Equal(t, 1, st.Len())
}

func TestRunFailsWhenFingerprintLoadFails(t *testing.T) {
	t.Parallel()

	p := New(
		[]advisory.Source{testSource("reliefweb_fr", "https://api.test/france")},
		newScriptedFetcher(), failingStore{}, &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{},
		nil,
	)

	_, err := p.Run(context.Background())
	require.Error(t, err)
}

type failingStore struct{}

func (failingStore) LoadFingerprints(context.Context) (map[string]string, error) {
	return nil, fmt.Errorf("connection refused")
}

func (failingStore) Upsert(context.Context, []advisory.Record) (advisory.UpsertReport, error) {
	return advisory.UpsertReport{}, fmt.Errorf("connection refused")
}

func (failingStore) Close() {}
