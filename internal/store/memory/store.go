// Package memory provides an in-memory media store for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scrapeworks/mediascraper/internal/media"
)

type row struct {
	id        int64
	sourceURL string
	mediaURL  string
	mediaType media.Type
	status    media.Status
	createdAt time.Time
	updatedAt time.Time
}

// Store keeps media rows in process memory. It mirrors the Postgres store's
// row model: one lifecycle row per source URL (empty media URL) plus asset
// rows, keyed on (source URL, media URL).
type Store struct {
	mu     sync.Mutex
	nextID int64
	rows   map[string]*row
	clock  media.Clock
}

var _ media.Store = (*Store)(nil)

// New creates an empty Store.
func New(clock media.Clock) *Store {
	return &Store{rows: make(map[string]*row), clock: clock}
}

func key(sourceURL, mediaURL string) string {
	return sourceURL + "\x00" + mediaURL
}

func (s *Store) now() time.Time {
	if s.clock != nil {
		return s.clock.Now()
	}
	return time.Now().UTC()
}

// UpsertPending creates or resets the lifecycle row per source URL.
func (s *Store) UpsertPending(_ context.Context, sourceURLs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, u := range sourceURLs {
		k := key(u, "")
		if existing, ok := s.rows[k]; ok {
			existing.status = media.StatusPending
			existing.updatedAt = now
			continue
		}
		s.nextID++
		s.rows[k] = &row{
			id:        s.nextID,
			sourceURL: u,
			status:    media.StatusPending,
			createdAt: now,
			updatedAt: now,
		}
	}
	return nil
}

// InsertMedia upserts discovered assets on (source URL, media URL).
func (s *Store) InsertMedia(_ context.Context, items []media.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, it := range items {
		if it.Empty() {
			continue
		}
		k := key(it.SourceURL, it.MediaURL)
		if existing, ok := s.rows[k]; ok {
			existing.mediaType = it.MediaType
			existing.status = media.StatusProcessed
			existing.updatedAt = now
			continue
		}
		s.nextID++
		s.rows[k] = &row{
			id:        s.nextID,
			sourceURL: it.SourceURL,
			mediaURL:  it.MediaURL,
			mediaType: it.MediaType,
			status:    media.StatusProcessed,
			createdAt: now,
			updatedAt: now,
		}
	}
	return nil
}

// UpdateStatus moves every matching row currently in the from status.
func (s *Store) UpdateStatus(_ context.Context, sourceURLs []string, from, to media.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wanted := make(map[string]bool, len(sourceURLs))
	for _, u := range sourceURLs {
		wanted[u] = true
	}
	now := s.now()
	for _, r := range s.rows {
		if wanted[r.sourceURL] && r.status == from {
			r.status = to
			r.updatedAt = now
		}
	}
	return nil
}

// Statuses returns the lifecycle status per source URL.
func (s *Store) Statuses(_ context.Context, sourceURLs []string) (map[string]media.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]media.Status, len(sourceURLs))
	for _, u := range sourceURLs {
		if r, ok := s.rows[key(u, "")]; ok {
			out[u] = r.status
		}
	}
	return out, nil
}

// List returns a paginated, filtered view of media rows ordered newest first.
func (s *Store) List(_ context.Context, q media.Query) (media.Page, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 20
	}

	// Rows are copied by value so later mutations under the lock cannot be
	// observed mid-read.
	s.mu.Lock()
	matched := make([]row, 0, len(s.rows))
	for _, r := range s.rows {
		if q.Type != "" && r.mediaType != q.Type {
			continue
		}
		if q.Search != "" {
			needle := strings.ToLower(q.Search)
			if !strings.Contains(strings.ToLower(r.sourceURL), needle) &&
				!strings.Contains(strings.ToLower(r.mediaURL), needle) {
				continue
			}
		}
		matched = append(matched, *r)
	}
	s.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].createdAt.Equal(matched[j].createdAt) {
			return matched[i].createdAt.After(matched[j].createdAt)
		}
		return matched[i].id > matched[j].id
	})

	total := int64(len(matched))
	page := media.Page{
		Total:       total,
		Pages:       int((total + int64(q.Limit) - 1) / int64(q.Limit)),
		CurrentPage: q.Page,
		Media:       []media.Record{},
	}
	start := (q.Page - 1) * q.Limit
	if start < len(matched) {
		end := start + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		for _, r := range matched[start:end] {
			page.Media = append(page.Media, media.Record{
				ID:        r.id,
				SourceURL: r.sourceURL,
				MediaURL:  r.mediaURL,
				MediaType: r.mediaType,
				Status:    r.status,
				CreatedAt: r.createdAt,
				UpdatedAt: r.updatedAt,
			})
		}
	}
	return page, nil
}

// Clear removes every media row.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]*row)
	return nil
}

// RunInTx runs fn directly; the in-memory store has no transactions, but each
// operation is atomic under the store mutex.
func (s *Store) RunInTx(_ context.Context, fn func(media.Store) error) error {
	return fn(s)
}
