// Package fetch retrieves single pages using the Colly collector.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// Document is one fetched page. An empty Body on a sub-500 response is valid;
// it simply yields zero media downstream.
type Document struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Config controls collector behavior.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodySize  int
	MaxRedirects int
}

const (
	defaultTimeout      = 45 * time.Second
	defaultMaxBodySize  = 20_000_000
	defaultMaxRedirects = 10
)

// Fetcher implements single-page retrieval using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = defaultMaxBodySize
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	)
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch normalizes rawURL and executes a single GET. Responses below 500 are
// returned as documents even when the status is 4xx; 5xx responses and
// transport failures come back as a classified *Error.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (Document, error) {
	target, err := media.NormalizeSourceURL(rawURL)
	if err != nil {
		return Document{}, &Error{Kind: KindOther, URL: rawURL, Err: err}
	}

	var (
		result   Document
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(target, start, &result, &fetchErr)

	if err := f.runCollector(ctx, collector, target); err != nil {
		return Document{}, wrap(target, err)
	}
	if fetchErr != nil {
		return Document{}, wrap(target, fetchErr)
	}
	if result.URL == "" {
		// No response callback fired and no error surfaced; treat as a
		// connection-level failure rather than returning a zero Document.
		return Document{}, &Error{Kind: KindConnection, URL: target, Err: errors.New("no response received")}
	}
	return result, nil
}

func (f *Fetcher) buildCollector(target string, start time.Time, result *Document, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	maxRedirects := f.cfg.MaxRedirects
	collector.SetRedirectHandler(func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	})

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.5")
		r.Headers.Set("Cache-Control", "no-cache")
		r.Headers.Set("Pragma", "no-cache")
		r.Headers.Set("Referer", "https://www.google.com/")
	})

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= http.StatusInternalServerError {
			*fetchErr = &Error{
				Kind: KindOther,
				URL:  target,
				Err:  fmt.Errorf("server responded with status %d", r.StatusCode),
			}
			return
		}
		if tooLarge(r, f.cfg.MaxBodySize) {
			*fetchErr = &Error{
				Kind: KindTooLarge,
				URL:  target,
				Err:  fmt.Errorf("response exceeds %d bytes", f.cfg.MaxBodySize),
			}
			return
		}
		*result = Document{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 && r.StatusCode < http.StatusInternalServerError {
			// Colly surfaces some non-2xx paths as errors; the policy is to
			// accept anything below 500 as a usable document.
			*result = Document{
				URL:        target,
				StatusCode: r.StatusCode,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		*fetchErr = err
	})

	return collector
}

// tooLarge checks the declared length; the collector already truncates reads
// at MaxBodySize, so a truncated body is also flagged.
func tooLarge(r *colly.Response, maxBody int) bool {
	if cl := r.Headers.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n > int64(maxBody) {
			return true
		}
	}
	return len(r.Body) >= maxBody
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return &Error{Kind: Classify(ctx.Err()), URL: url, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return err
		}
		return nil
	}
}
