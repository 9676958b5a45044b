package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voyantlabs/advisory-pipeline/internal/advisory"
	"github.com/voyantlabs/advisory-pipeline/internal/store/memory"
)

func TestSchedulerSingleRunWhenIntervalZero(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/france"] = reliefWebBody(
		"France", "France: Reconsider Travel", "Demonstrations expected.",
	)

	p := New(
		[]advisory.Source{testSource("reliefweb_fr", "https://api.test/france")},
		fetcher, memory.New(), &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{},
		nil,
	)

	rep, err := NewScheduler(p, 0, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Results, 1)
	require.Equal(t, 1, fetcher.count("https://api.test/france"))
}

func TestSchedulerRepeatsUntilCancelled(t *testing.T) {
	t.Parallel()

	fetcher := newScriptedFetcher()
	fetcher.bodies["https://api.test/france"] = reliefWebBody(
		"France", "France: Reconsider Travel", "Demonstrations expected.",
	)

	p := New(
		[]advisory.Source{testSource("reliefweb_fr", "https://api.test/france")},
		fetcher, memory.New(), &captureSink{}, nil,
		fixedClock{t: time.Unix(1700000000, 0)},
		Config{},
		nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := NewScheduler(p, 5*time.Millisecond, nil).Run(ctx)
		require.NoError(t, err)
	}()

	require.Eventually(t, func() bool {
		return fetcher.count("https://api.test/france") >= 3
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}
