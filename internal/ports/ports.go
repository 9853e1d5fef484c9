package ports

import (
	"context"

	"NewsPublisher/internal/domain"
)

// DraftStore is the durable single-slot holder for the pending draft.
// Load returns (nil, nil) when the slot is empty.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft domain.Draft) error
	LoadDraft(ctx context.Context) (*domain.Draft, error)
	ClearDraft(ctx context.Context) error
}

// SelectionStore is the durable single-slot holder for the pending
// selection batch. Load applies the expiry check on every read and eagerly
// clears an expired batch; it returns (nil, nil) when absent or expired.
type SelectionStore interface {
	SaveSelection(ctx context.Context, batch domain.SelectionBatch) error
	LoadSelection(ctx context.Context) (*domain.SelectionBatch, error)
	ClearSelection(ctx context.Context) error
}

// CursorStore persists the inbound-event offset.
type CursorStore interface {
	LoadCursor(ctx context.Context) (int64, error)
	SaveCursor(ctx context.Context, offset int64) error
}

// SeenStore tracks recently handled article URLs so the auto-draft job does
// not draft the same story twice within its horizon.
type SeenStore interface {
	SeenURLs(ctx context.Context) (map[string]bool, error)
	MarkSeen(ctx context.Context, url string) error
}

// PublishLog is the append-only, date-keyed record of publish attempts.
type PublishLog interface {
	AppendResult(ctx context.Context, res domain.PublishResult) error
}

// Publisher posts content units to the publishing network.
type Publisher interface {
	PostOne(ctx context.Context, text, mediaID string) domain.PublishResult
	PostChain(ctx context.Context, units []string, mediaID string) []domain.PublishResult
	UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Copywriter is the opaque content generator.
type Copywriter interface {
	// Draft composes a post from operator-selected items.
	Draft(ctx context.Context, items []domain.CandidateItem) (string, error)
	// Pick chooses the most newsworthy candidate, 0-based.
	Pick(ctx context.Context, items []domain.CandidateItem) (int, error)
	// Compose writes a post for one item given its article body text.
	Compose(ctx context.Context, item domain.CandidateItem, body string) (string, error)
	// Revise rewrites an existing draft following operator instructions.
	Revise(ctx context.Context, current, instructions string) (string, error)
}

// OperatorChannel is the outbound side of the approval conversation.
type OperatorChannel interface {
	SendMessage(ctx context.Context, text string) error
	// SendDraft presents a draft with its approval buttons, as a photo
	// message when imageURL is set.
	SendDraft(ctx context.Context, content, imageURL string) error
}

// PageFetcher retrieves remote documents with bounded redirect following.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	// ArticleImages lists absolute image URLs referenced by an article page,
	// og:image candidates first.
	ArticleImages(ctx context.Context, pageURL string) ([]string, error)
	// ArticleText extracts readable body text from an article page.
	ArticleText(ctx context.Context, pageURL string) (string, error)
}

// FeedSource pulls fresh candidate items from the configured feeds.
type FeedSource interface {
	FetchAll(ctx context.Context) ([]domain.CandidateItem, error)
}

// Scheduler controls when background jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(context.Context)) error
	Stop(ctx context.Context) error
}
