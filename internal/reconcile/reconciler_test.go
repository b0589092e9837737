package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scrapeworks/mediascraper/internal/media"
	memorystore "github.com/scrapeworks/mediascraper/internal/store/memory"
)

func seedPending(t *testing.T, store media.Store, urls ...string) {
	t.Helper()
	require.NoError(t, store.UpsertPending(context.Background(), urls))
}

func statusOf(t *testing.T, store media.Store, url string) media.Status {
	t.Helper()
	statuses, err := store.Statuses(context.Background(), []string{url})
	require.NoError(t, err)
	return statuses[url]
}

func TestJobCompleted_PersistsMediaAndMarksProcessed(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://a.example.com")

	job := media.Job{ID: "job-1", URLs: []string{"https://a.example.com"}}
	results := []media.Item{
		{SourceURL: "https://a.example.com", MediaURL: "https://a.example.com/1.jpg", MediaType: media.TypeImage},
		{SourceURL: "https://a.example.com", MediaURL: "https://a.example.com/2.mp4", MediaType: media.TypeVideo},
	}
	New(store, nil).JobCompleted(context.Background(), job, results, nil)

	require.Equal(t, media.StatusProcessed, statusOf(t, store, "https://a.example.com"))
	page, err := store.List(context.Background(), media.Query{Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 3, page.Total) // lifecycle row plus two assets
}

func TestJobCompleted_NoMediaMarkerStillProcessed(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://empty.example.com")

	job := media.Job{ID: "job-1", URLs: []string{"https://empty.example.com"}}
	results := []media.Item{{SourceURL: "https://empty.example.com"}}
	New(store, nil).JobCompleted(context.Background(), job, results, nil)

	require.Equal(t, media.StatusProcessed, statusOf(t, store, "https://empty.example.com"))
	page, err := store.List(context.Background(), media.Query{Limit: 10})
	require.NoError(t, err)
	require.EqualValues(t, 1, page.Total)
}

func TestJobCompleted_ErrorOnlyURLMarkedFailed(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://bad.example.com")

	job := media.Job{ID: "job-1", URLs: []string{"https://bad.example.com"}}
	errs := []media.ScrapeError{{SourceURL: "https://bad.example.com", Message: "connection refused"}}
	New(store, nil).JobCompleted(context.Background(), job, nil, errs)

	require.Equal(t, media.StatusFailed, statusOf(t, store, "https://bad.example.com"))
}

func TestJobCompleted_PartialSuccessWinsOverError(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://mixed.example.com")

	job := media.Job{ID: "job-1", URLs: []string{"https://mixed.example.com"}}
	results := []media.Item{{SourceURL: "https://mixed.example.com", MediaURL: "https://mixed.example.com/a.jpg", MediaType: media.TypeImage}}
	errs := []media.ScrapeError{{SourceURL: "https://mixed.example.com", Message: "second fetch failed"}}
	New(store, nil).JobCompleted(context.Background(), job, results, errs)

	require.Equal(t, media.StatusProcessed, statusOf(t, store, "https://mixed.example.com"))
}

func TestJobCompleted_UnreportedURLsSweptToProcessed(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://lost.example.com", "https://ok.example.com")

	job := media.Job{ID: "job-1", URLs: []string{"https://lost.example.com", "https://ok.example.com"}}
	results := []media.Item{{SourceURL: "https://ok.example.com", MediaURL: "https://ok.example.com/a.jpg", MediaType: media.TypeImage}}
	New(store, nil).JobCompleted(context.Background(), job, results, nil)

	require.Equal(t, media.StatusProcessed, statusOf(t, store, "https://lost.example.com"))
	require.Equal(t, media.StatusProcessed, statusOf(t, store, "https://ok.example.com"))
}

func TestJobCompleted_DoesNotResurrectTerminalStatuses(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://done.example.com")
	require.NoError(t, store.UpdateStatus(context.Background(), []string{"https://done.example.com"}, media.StatusPending, media.StatusFailed))

	// A redelivered outcome for an already-terminal URL must not move it.
	job := media.Job{ID: "job-1", URLs: []string{"https://done.example.com"}}
	New(store, nil).JobCompleted(context.Background(), job, nil, nil)

	require.Equal(t, media.StatusFailed, statusOf(t, store, "https://done.example.com"))
}

func TestJobFailed_ResolvesPendingLeniently(t *testing.T) {
	t.Parallel()

	store := memorystore.New(nil)
	seedPending(t, store, "https://p.example.com", "https://f.example.com")
	require.NoError(t, store.UpdateStatus(context.Background(), []string{"https://f.example.com"}, media.StatusPending, media.StatusFailed))

	job := media.Job{ID: "job-1", URLs: []string{"https://p.example.com", "https://f.example.com"}}
	New(store, nil).JobFailed(context.Background(), job, errors.New("attempts exhausted"))

	require.Equal(t, media.StatusProcessed, statusOf(t, store, "https://p.example.com"))
	require.Equal(t, media.StatusFailed, statusOf(t, store, "https://f.example.com"))
}

type failingTxStore struct {
	media.Store
	failures int
}

func (s *failingTxStore) RunInTx(_ context.Context, _ func(media.Store) error) error {
	s.failures++
	return errors.New("tx unavailable")
}

func TestJobCompleted_TxFailureFallsBackToSweep(t *testing.T) {
	t.Parallel()

	inner := memorystore.New(nil)
	seedPending(t, inner, "https://a.example.com")
	store := &failingTxStore{Store: inner}

	job := media.Job{ID: "job-1", URLs: []string{"https://a.example.com"}}
	New(store, nil).JobCompleted(context.Background(), job, nil, nil)

	require.Equal(t, 1, store.failures)
	require.Equal(t, media.StatusProcessed, statusOf(t, inner, "https://a.example.com"))
}
