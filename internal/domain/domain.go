package domain

import (
	"strings"
	"time"
)

// CandidateItem is a single news item offered to the operator for selection.
// Identity is the canonical article URL; items are immutable once scraped.
type CandidateItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Lang        string    `json:"lang"`
	PublishedAt time.Time `json:"publishedAt"`
}

// SelectionBatch is the single pending list of candidates awaiting a numeric
// selection. A batch is logically absent once its expiry passes, even when
// still on disk; readers clear it eagerly.
type SelectionBatch struct {
	CreatedAt time.Time       `json:"createdAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Items     []CandidateItem `json:"items"`
}

// Expired reports whether the batch must be treated as absent at time now.
func (b SelectionBatch) Expired(now time.Time) bool {
	return now.After(b.ExpiresAt)
}

// Draft is the single pending candidate post awaiting approval. When Units is
// present it holds the full thread; Units[0] always mirrors Content. A draft
// never expires on its own: it lives until publish success or cancellation.
type Draft struct {
	Content  string    `json:"content"`
	Units    []string  `json:"units,omitempty"`
	ImageURL string    `json:"imageUrl,omitempty"`
	SavedAt  time.Time `json:"savedAt"`
}

// Thread returns the content units to publish, falling back to the flat
// content for single-post drafts.
func (d Draft) Thread() []string {
	if len(d.Units) > 1 {
		return d.Units
	}
	return []string{d.Content}
}

// SourceUnitPrefix marks the source-link unit of auto-generated drafts.
const SourceUnitPrefix = "🗞 "

// SourceURL returns the source article URL carried by the secondary unit,
// or "" when the draft has none.
func (d Draft) SourceURL() string {
	if len(d.Units) < 2 {
		return ""
	}
	url := strings.TrimSpace(strings.TrimPrefix(d.Units[1], strings.TrimSpace(SourceUnitPrefix)))
	if !strings.HasPrefix(url, "http") {
		return ""
	}
	return url
}

// PublishResult records the outcome of one attempted content unit. Position
// is 1-based within the chain.
type PublishResult struct {
	Position int
	PostID   string
	URL      string
	Err      error
}

// OK reports whether the unit was accepted by the network.
func (r PublishResult) OK() bool {
	return r.Err == nil
}

// Action is a named button pressed by the operator.
type Action string

const (
	ActionPublish     Action = "publish"
	ActionModifyText  Action = "modify"
	ActionModifyImage Action = "modify_image"
	ActionCancel      Action = "cancel"
)
