package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

const fallbackPoolSize = 5

// AutoDraft proposes a post without waiting for a selection: it scans the
// feeds, lets the copywriter pick the most newsworthy unseen story, composes
// a post from the article body and parks it as the pending draft.
type AutoDraft struct {
	feeds   ports.FeedSource
	seen    ports.SeenStore
	writer  ports.Copywriter
	pages   ports.PageFetcher
	drafts  ports.DraftStore
	channel ports.OperatorChannel
	logger  *slog.Logger
	now     func() time.Time
}

// AutoDraftDeps wires the auto-draft job.
type AutoDraftDeps struct {
	Feeds   ports.FeedSource
	Seen    ports.SeenStore
	Writer  ports.Copywriter
	Pages   ports.PageFetcher
	Drafts  ports.DraftStore
	Channel ports.OperatorChannel
	Logger  *slog.Logger
}

// NewAutoDraft builds the job.
func NewAutoDraft(deps AutoDraftDeps) *AutoDraft {
	return &AutoDraft{
		feeds:   deps.Feeds,
		seen:    deps.Seen,
		writer:  deps.Writer,
		pages:   deps.Pages,
		drafts:  deps.Drafts,
		channel: deps.Channel,
		logger:  deps.Logger.With("component", "autodraft"),
		now:     time.Now,
	}
}

// SetClock injects a deterministic clock for tests.
func (a *AutoDraft) SetClock(now func() time.Time) { a.now = now }

// Run executes one auto-draft pass. It overwrites any pending draft; the
// operator approves from the notification either way.
func (a *AutoDraft) Run(ctx context.Context) error {
	items, err := a.feeds.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch feeds: %w", err)
	}
	if len(items) == 0 {
		a.logger.Warn("no candidates found, auto-draft skipped")
		return nil
	}

	seen, err := a.seen.SeenURLs(ctx)
	if err != nil {
		return fmt.Errorf("load seen urls: %w", err)
	}

	pool := a.candidatePool(items, seen)
	if len(pool) == 0 {
		a.logger.Info("nothing new to draft")
		return nil
	}

	idx, err := a.writer.Pick(ctx, pool)
	if err != nil {
		return fmt.Errorf("pick candidate: %w", err)
	}
	if idx < 0 || idx >= len(pool) {
		idx = 0
	}
	item := pool[idx]

	// Body extraction is best effort: a paywalled or broken page still
	// yields a draft from the headline alone.
	body, err := a.pages.ArticleText(ctx, item.URL)
	if err != nil {
		a.logger.Warn("article text unavailable", "url", item.URL, "error", err)
		body = ""
	}

	post, err := a.writer.Compose(ctx, item, body)
	if err != nil {
		return fmt.Errorf("compose post: %w", err)
	}

	draft := domain.Draft{
		Content: post,
		Units:   []string{post, domain.SourceUnitPrefix + item.URL},
		SavedAt: a.now(),
	}
	if images, err := a.pages.ArticleImages(ctx, item.URL); err == nil && len(images) > 0 {
		draft.ImageURL = images[0]
	}

	if err := a.seen.MarkSeen(ctx, item.URL); err != nil {
		a.logger.Warn("mark seen failed", "url", item.URL, "error", err)
	}
	if err := a.drafts.SaveDraft(ctx, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}

	a.logger.Info("auto-draft proposed", "source", item.Source, "url", item.URL)
	return a.channel.SendDraft(ctx, draft.Content, draft.ImageURL)
}

// candidatePool widens the time window until it finds something: the last
// two hours, then four, then every unseen item, then the newest few stories
// regardless of the seen set.
func (a *AutoDraft) candidatePool(items []domain.CandidateItem, seen map[string]bool) []domain.CandidateItem {
	unseen := make([]domain.CandidateItem, 0, len(items))
	for _, item := range items {
		if !seen[item.URL] {
			unseen = append(unseen, item)
		}
	}

	now := a.now()
	for _, window := range []time.Duration{2 * time.Hour, 4 * time.Hour} {
		var pool []domain.CandidateItem
		for _, item := range unseen {
			if now.Sub(item.PublishedAt) <= window {
				pool = append(pool, item)
			}
		}
		if len(pool) > 0 {
			return pool
		}
	}
	if len(unseen) > 0 {
		return unseen
	}

	// Everything was already drafted once; offer the newest stories again
	// rather than going silent.
	if len(items) > fallbackPoolSize {
		items = items[:fallbackPoolSize]
	}
	return items
}
