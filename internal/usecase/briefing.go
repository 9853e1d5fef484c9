// Package usecase holds the scheduled jobs: the daily briefing that offers
// the operator a candidate list, and the hourly auto-draft that proposes a
// post on its own.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

const titleKeyLen = 60

// Briefing gathers fresh candidates, stores them as the pending selection
// batch and numbers them for the operator.
type Briefing struct {
	feeds      ports.FeedSource
	selections ports.SelectionStore
	channel    ports.OperatorChannel
	logger     *slog.Logger
	ttl        time.Duration
	maxItems   int
	now        func() time.Time
}

// BriefingDeps wires the briefing job.
type BriefingDeps struct {
	Feeds      ports.FeedSource
	Selections ports.SelectionStore
	Channel    ports.OperatorChannel
	Logger     *slog.Logger
	TTL        time.Duration
	MaxItems   int
}

// NewBriefing builds the job.
func NewBriefing(deps BriefingDeps) *Briefing {
	return &Briefing{
		feeds:      deps.Feeds,
		selections: deps.Selections,
		channel:    deps.Channel,
		logger:     deps.Logger.With("component", "briefing"),
		ttl:        deps.TTL,
		maxItems:   deps.MaxItems,
		now:        time.Now,
	}
}

// SetClock injects a deterministic clock for tests.
func (b *Briefing) SetClock(now func() time.Time) { b.now = now }

// Run executes one briefing pass. A fresh batch replaces whatever selection
// was pending before.
func (b *Briefing) Run(ctx context.Context) error {
	items, err := b.feeds.FetchAll(ctx)
	if err != nil {
		return fmt.Errorf("fetch feeds: %w", err)
	}

	items = dedupeByTitle(items)
	if len(items) == 0 {
		b.logger.Warn("no candidates found, briefing skipped")
		return nil
	}
	if len(items) > b.maxItems {
		items = items[:b.maxItems]
	}

	now := b.now()
	batch := domain.SelectionBatch{
		CreatedAt: now,
		ExpiresAt: now.Add(b.ttl),
		Items:     items,
	}
	if err := b.selections.SaveSelection(ctx, batch); err != nil {
		return fmt.Errorf("save selection: %w", err)
	}

	b.logger.Info("briefing published", "items", len(items))
	return b.channel.SendMessage(ctx, formatBriefing(items))
}

// dedupeByTitle drops near-duplicate stories syndicated across feeds,
// matching on a lowercased title prefix. Order is preserved, first feed wins.
func dedupeByTitle(items []domain.CandidateItem) []domain.CandidateItem {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, item := range items {
		key := strings.ToLower(strings.TrimSpace(item.Title))
		if len(key) > titleKeyLen {
			key = key[:titleKeyLen]
		}
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func formatBriefing(items []domain.CandidateItem) string {
	var sb strings.Builder
	sb.WriteString("🗞 <b>Today's briefing</b>\n\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "%d. [%s] %s\n%s\n\n", i+1, item.Source, item.Title, item.URL)
	}
	sb.WriteString("Reply with the numbers (e.g. 1,3,5) of the articles to draft.")
	return sb.String()
}
