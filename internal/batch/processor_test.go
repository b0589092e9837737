package batch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scrapeworks/mediascraper/internal/fetch"
	"github.com/scrapeworks/mediascraper/internal/media"
)

type fakeFetcher struct {
	docs map[string]fetch.Document
	errs map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (fetch.Document, error) {
	if err, ok := f.errs[url]; ok {
		return fetch.Document{}, err
	}
	return f.docs[url], nil
}

type fakeExtractor struct {
	items map[string][]media.Item
	errs  map[string]error
}

func (e *fakeExtractor) Extract(pageURL string, _ []byte) ([]media.Item, error) {
	if err, ok := e.errs[pageURL]; ok {
		return nil, err
	}
	if items, ok := e.items[pageURL]; ok {
		return items, nil
	}
	return []media.Item{{SourceURL: pageURL}}, nil
}

func TestProcess_IsolatesPerURLFailures(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		docs: map[string]fetch.Document{
			"https://ok.example.com":    {URL: "https://ok.example.com", StatusCode: 200},
			"https://empty.example.com": {URL: "https://empty.example.com", StatusCode: 200},
		},
		errs: map[string]error{
			"https://down.example.com": &fetch.Error{Kind: fetch.KindConnection, URL: "https://down.example.com", Err: errors.New("refused")},
		},
	}
	extractor := &fakeExtractor{
		items: map[string][]media.Item{
			"https://ok.example.com": {
				{SourceURL: "https://ok.example.com", MediaURL: "https://ok.example.com/a.jpg", MediaType: media.TypeImage},
			},
		},
	}
	proc := New(fetcher, extractor, nil, nil)

	out := proc.Process(context.Background(), []string{
		"https://ok.example.com",
		"https://down.example.com",
		"https://empty.example.com",
	})

	require.Len(t, out.Errors, 1)
	require.Equal(t, "https://down.example.com", out.Errors[0].SourceURL)

	require.Len(t, out.Results, 2)
	require.Equal(t, "https://ok.example.com/a.jpg", out.Results[0].MediaURL)
	require.True(t, out.Results[1].Empty())
}

func TestProcess_TimeoutDowngradedToEmptyResult(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		errs: map[string]error{
			"https://slow.example.com": &fetch.Error{Kind: fetch.KindTimeout, URL: "https://slow.example.com", Err: context.DeadlineExceeded},
		},
	}
	proc := New(fetcher, &fakeExtractor{}, nil, nil)

	out := proc.Process(context.Background(), []string{"https://slow.example.com"})
	require.Empty(t, out.Errors)
	require.Len(t, out.Results, 1)
	require.True(t, out.Results[0].Empty())
	require.Equal(t, "https://slow.example.com", out.Results[0].SourceURL)
}

func TestProcess_ExtractionErrorRecorded(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{
		docs: map[string]fetch.Document{
			"https://bad.example.com": {URL: "https://bad.example.com", StatusCode: 200},
		},
	}
	extractor := &fakeExtractor{
		errs: map[string]error{
			"https://bad.example.com": errors.New("parse failed"),
		},
	}
	proc := New(fetcher, extractor, nil, nil)

	out := proc.Process(context.Background(), []string{"https://bad.example.com"})
	require.Empty(t, out.Results)
	require.Len(t, out.Errors, 1)
	require.Contains(t, out.Errors[0].Message, "parse failed")
}

func TestProcess_AttributesItemsToSubmittedURL(t *testing.T) {
	t.Parallel()

	// The fetch may land on a post-redirect URL; results must still carry the
	// URL the caller submitted.
	fetcher := &fakeFetcher{
		docs: map[string]fetch.Document{
			"https://short.example.com": {URL: "https://final.example.com/landing", StatusCode: 200},
		},
	}
	extractor := &fakeExtractor{
		items: map[string][]media.Item{
			"https://final.example.com/landing": {
				{SourceURL: "https://final.example.com/landing", MediaURL: "https://cdn.example.com/x.png", MediaType: media.TypeImage},
			},
		},
	}
	proc := New(fetcher, extractor, nil, nil)

	out := proc.Process(context.Background(), []string{"https://short.example.com"})
	require.Len(t, out.Results, 1)
	require.Equal(t, "https://short.example.com", out.Results[0].SourceURL)
}

func TestProcess_StopsWhenContextEnds(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gate := NewMemoryGate(1, time.Minute, nil)
	gate.heapInuse = func() uint64 { return 2 * 1024 * 1024 }
	proc := New(&fakeFetcher{}, &fakeExtractor{}, gate, nil)

	out := proc.Process(ctx, []string{"https://a.example.com", "https://b.example.com"})
	require.Empty(t, out.Results)
	require.Empty(t, out.Errors)
}
