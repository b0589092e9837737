// Package extract discovers media assets embedded in fetched documents. It is
// a pure function of (page URL, document body); the only work done is the
// parse itself.
package extract

import (
	"bytes"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/scrapeworks/mediascraper/internal/media"
)

// Strategy is one site-specific selection profile: a host predicate, the
// image selectors to walk, the attribute preference order for the asset URL,
// a URL rewrite chain, and an element filter. New sites slot into the table
// without touching dispatch.
type Strategy struct {
	Name           string
	Match          func(page *url.URL) bool
	ImageSelectors []string
	SourceOf       func(sel *goquery.Selection) string
	Rewrite        func(src string, page *url.URL) string
	SkipElement    func(sel *goquery.Selection) bool
	SkipResolved   func(abs string) bool
}

// strategies is evaluated in order; the generic strategy matches everything
// and must stay last.
var strategies = []Strategy{
	wikipediaStrategy,
	genericStrategy,
}

func strategyFor(page *url.URL) Strategy {
	for _, s := range strategies {
		if s.Match(page) {
			return s
		}
	}
	return strategies[len(strategies)-1]
}

// Engine extracts media items from documents.
type Engine struct {
	logger *zap.Logger
}

// New builds an Engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Extract returns the media items discovered in body, deduplicated by
// resolved absolute URL. A document that yields nothing still produces a
// single no-media marker so callers can tell "nothing found" from "not
// attempted".
func (e *Engine) Extract(pageURL string, body []byte) ([]media.Item, error) {
	page, err := url.Parse(pageURL)
	if err != nil {
		return nil, &Error{URL: pageURL, Err: err}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &Error{URL: pageURL, Err: err}
	}

	strategy := strategyFor(page)
	seen := make(map[string]struct{})
	var items []media.Item

	emit := func(abs string, typ media.Type) {
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		items = append(items, media.Item{SourceURL: pageURL, MediaURL: abs, MediaType: typ})
	}

	e.collectImages(doc, page, strategy, emit)
	e.collectVideos(doc, page, emit)

	if len(items) == 0 {
		items = append(items, media.Item{SourceURL: pageURL})
	}
	e.logger.Debug("extraction finished",
		zap.String("url", pageURL),
		zap.String("strategy", strategy.Name),
		zap.Int("items", len(items)),
	)
	return items, nil
}

func (e *Engine) collectImages(doc *goquery.Document, page *url.URL, strategy Strategy, emit func(string, media.Type)) {
	for _, selector := range strategy.ImageSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			if strategy.SkipElement != nil && strategy.SkipElement(sel) {
				return
			}
			src := strategy.SourceOf(sel)
			if src == "" {
				return
			}
			if strategy.Rewrite != nil {
				src = strategy.Rewrite(src, page)
				if src == "" {
					return
				}
			}
			abs := media.ResolveURL(src, page)
			if abs == "" {
				return
			}
			if strategy.SkipResolved != nil && strategy.SkipResolved(abs) {
				return
			}
			emit(abs, media.TypeImage)
		})
	}
}

// Error reports a parse-level extraction failure for one document.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return "extract " + e.URL + ": " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }
