// Package media defines core types shared across subsystems.
package media

import (
	"encoding/json"
	"time"
)

// Type classifies a discovered media asset.
type Type string

// Media types persisted alongside each discovered asset.
const (
	TypeImage Type = "image"
	TypeVideo Type = "video"
)

// Status represents the lifecycle state of a source URL.
type Status string

// Status values persisted in the media store. A source URL starts at
// StatusPending and moves to exactly one of the terminal values; it is never
// moved back to pending except by an explicit resubmission.
const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusFailed
}

// Record is a persisted media row. A row with an empty MediaURL is the
// lifecycle row for the source URL itself; rows with a MediaURL are assets
// discovered under that source.
type Record struct {
	ID        int64     `json:"id"`
	SourceURL string    `json:"sourceUrl"`
	MediaURL  string    `json:"-"`
	MediaType Type      `json:"-"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// MarshalJSON emits null for absent media fields so API consumers can
// distinguish "no media" from an empty string.
func (r Record) MarshalJSON() ([]byte, error) {
	type alias Record
	out := struct {
		alias
		MediaURL  *string `json:"mediaUrl"`
		MediaType *Type   `json:"type"`
	}{alias: alias(r)}
	if r.MediaURL != "" {
		out.MediaURL = &r.MediaURL
	}
	if r.MediaType != "" {
		out.MediaType = &r.MediaType
	}
	return json.Marshal(out)
}

// Item is one discovered media asset attributed to a source URL. An Item with
// an empty MediaURL is the "fetched, nothing found" marker: the source was
// processed successfully but yielded no assets.
type Item struct {
	SourceURL string `json:"sourceUrl"`
	MediaURL  string `json:"mediaUrl"`
	MediaType Type   `json:"type"`
}

// Empty reports whether the item is the no-media marker.
func (it Item) Empty() bool { return it.MediaURL == "" }

// ScrapeError records one isolated per-URL failure inside a job.
type ScrapeError struct {
	SourceURL string `json:"sourceUrl"`
	Message   string `json:"error"`
}

// BatchResult aggregates the outcome of one processed batch. A URL failure
// never aborts the batch; it lands in Errors while the rest continue.
type BatchResult struct {
	Results []Item        `json:"results"`
	Errors  []ScrapeError `json:"errors"`
}

// Merge appends another batch's outcome into this one.
func (b *BatchResult) Merge(other BatchResult) {
	b.Results = append(b.Results, other.Results...)
	b.Errors = append(b.Errors, other.Errors...)
}

// Job is one scrape request spanning a deduplicated set of URLs. It is owned
// by the scheduler from submission until a terminal outcome is delivered.
type Job struct {
	ID        string    `json:"id"`
	URLs      []string  `json:"urls"`
	Attempt   int       `json:"attempt"`
	Submitted time.Time `json:"submitted_at"`
}

// JobOutcome is the terminal payload for a job: either the aggregated
// results/errors of a completed run, or Err set when infrastructure retries
// were exhausted.
type JobOutcome struct {
	JobID   string
	Results []Item
	Errors  []ScrapeError
	Err     error
}

// Failed reports whether the job ended in infrastructure failure rather than
// completing with per-URL outcomes.
func (o JobOutcome) Failed() bool { return o.Err != nil }

// Query selects a page of media rows.
type Query struct {
	Page   int
	Limit  int
	Type   Type
	Search string
}

// Page is a paginated media listing.
type Page struct {
	Total       int64    `json:"total"`
	Pages       int      `json:"pages"`
	CurrentPage int      `json:"currentPage"`
	Media       []Record `json:"media"`
}
