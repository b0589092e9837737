// Package batch drives the fetch/extract pipeline over one bounded set of
// URLs with per-URL error isolation.
package batch

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/fetch"
	"github.com/scrapeworks/mediascraper/internal/media"
	"github.com/scrapeworks/mediascraper/internal/metrics"
)

// Fetcher retrieves one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Document, error)
}

// Extractor discovers media items in one fetched document.
type Extractor interface {
	Extract(pageURL string, body []byte) ([]media.Item, error)
}

// Processor runs batches sequentially, URL by URL. A single URL failure never
// aborts the batch; it is isolated into the error list and processing
// continues.
type Processor struct {
	fetcher   Fetcher
	extractor Extractor
	gate      *MemoryGate
	logger    *zap.Logger
}

// New builds a Processor.
func New(fetcher Fetcher, extractor Extractor, gate *MemoryGate, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Processor{
		fetcher:   fetcher,
		extractor: extractor,
		gate:      gate,
		logger:    logger,
	}
}

// Process fetches and extracts every URL in the batch. Timeout-class fetch
// failures are downgraded to a successful empty result: a site that is
// unreachable in time is treated as processed-with-nothing rather than
// failed.
func (p *Processor) Process(ctx context.Context, urls []string) media.BatchResult {
	var out media.BatchResult
	for _, url := range urls {
		if err := p.gate.Wait(ctx); err != nil {
			// Context ended mid-batch; the remaining URLs stay unreported and
			// the job-level timeout path takes over.
			return out
		}
		p.processURL(ctx, url, &out)
	}
	return out
}

func (p *Processor) processURL(ctx context.Context, url string, out *media.BatchResult) {
	start := time.Now()
	doc, err := p.fetcher.Fetch(ctx, url)
	metrics.ObserveFetch(time.Since(start))
	if err != nil {
		if fetch.IsTimeout(err) {
			p.logger.Warn("fetch timed out, recording empty result", zap.String("url", url))
			metrics.ObserveURL("timeout")
			out.Results = append(out.Results, media.Item{SourceURL: url})
			return
		}
		p.logger.Error("fetch failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveURL("failed")
		out.Errors = append(out.Errors, media.ScrapeError{SourceURL: url, Message: err.Error()})
		return
	}

	items, err := p.extractor.Extract(doc.URL, doc.Body)
	if err != nil {
		p.logger.Error("extraction failed", zap.String("url", url), zap.Error(err))
		metrics.ObserveURL("failed")
		out.Errors = append(out.Errors, media.ScrapeError{SourceURL: url, Message: err.Error()})
		return
	}
	// Attribute items to the submitted URL, not the post-redirect one, so
	// reconciliation lines up with the persisted pending rows.
	for i := range items {
		items[i].SourceURL = url
		if !items[i].Empty() {
			metrics.ObserveMedia(string(items[i].MediaType))
		}
	}
	metrics.ObserveURL("processed")
	out.Results = append(out.Results, items...)
}
