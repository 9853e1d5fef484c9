package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPublisher/internal/domain"
)

var testTime = time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)

type feedsFake struct {
	items []domain.CandidateItem
	err   error
}

func (f *feedsFake) FetchAll(context.Context) ([]domain.CandidateItem, error) {
	return f.items, f.err
}

type selectionsFake struct {
	saved *domain.SelectionBatch
}

func (s *selectionsFake) SaveSelection(_ context.Context, b domain.SelectionBatch) error {
	s.saved = &b
	return nil
}

func (s *selectionsFake) LoadSelection(context.Context) (*domain.SelectionBatch, error) {
	return s.saved, nil
}

func (s *selectionsFake) ClearSelection(context.Context) error { s.saved = nil; return nil }

type channelFake struct {
	messages []string
	drafts   []string
	images   []string
}

func (c *channelFake) SendMessage(_ context.Context, text string) error {
	c.messages = append(c.messages, text)
	return nil
}

func (c *channelFake) SendDraft(_ context.Context, content, imageURL string) error {
	c.drafts = append(c.drafts, content)
	c.images = append(c.images, imageURL)
	return nil
}

func candidate(title string, age time.Duration) domain.CandidateItem {
	return domain.CandidateItem{
		Title:       title,
		URL:         "https://example.com/" + title,
		Source:      "CoinDesk",
		PublishedAt: testTime.Add(-age),
	}
}

func newBriefing(feeds *feedsFake, sel *selectionsFake, ch *channelFake, maxItems int) *Briefing {
	b := NewBriefing(BriefingDeps{
		Feeds:      feeds,
		Selections: sel,
		Channel:    ch,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		TTL:        20 * time.Hour,
		MaxItems:   maxItems,
	})
	b.SetClock(func() time.Time { return testTime })
	return b
}

func TestBriefingSavesBatchAndNotifies(t *testing.T) {
	t.Parallel()

	feeds := &feedsFake{items: []domain.CandidateItem{
		candidate("Bitcoin hits new high", time.Hour),
		candidate("Ether upgrade ships", 2*time.Hour),
	}}
	sel := &selectionsFake{}
	ch := &channelFake{}

	err := newBriefing(feeds, sel, ch, 20).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, sel.saved)
	assert.Len(t, sel.saved.Items, 2)
	assert.Equal(t, testTime.Add(20*time.Hour), sel.saved.ExpiresAt)

	require.Len(t, ch.messages, 1)
	assert.Contains(t, ch.messages[0], "1. [CoinDesk] Bitcoin hits new high")
	assert.Contains(t, ch.messages[0], "2. [CoinDesk] Ether upgrade ships")
	assert.Contains(t, ch.messages[0], "Reply with the numbers")
}

func TestBriefingDeduplicatesSyndicatedTitles(t *testing.T) {
	t.Parallel()

	a := candidate("SEC approves the first solana ETF after months of delay review", time.Hour)
	b := a
	b.Title = "SEC Approves The First Solana ETF After Months Of Delay Review Period"
	b.URL = "https://other.example.com/sec-solana"
	feeds := &feedsFake{items: []domain.CandidateItem{a, b}}
	sel := &selectionsFake{}

	err := newBriefing(feeds, sel, &channelFake{}, 20).Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, sel.saved)
	require.Len(t, sel.saved.Items, 1, "same title prefix counts as the same story")
	assert.Equal(t, a.URL, sel.saved.Items[0].URL, "first feed wins")
}

func TestBriefingCapsItemCount(t *testing.T) {
	t.Parallel()

	feeds := &feedsFake{}
	for i := 0; i < 30; i++ {
		feeds.items = append(feeds.items, candidate(fmt.Sprintf("Story number %02d", i), time.Hour))
	}
	sel := &selectionsFake{}

	err := newBriefing(feeds, sel, &channelFake{}, 20).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, sel.saved.Items, 20)
}

func TestBriefingSkipsWhenFeedsEmpty(t *testing.T) {
	t.Parallel()

	sel := &selectionsFake{}
	ch := &channelFake{}

	err := newBriefing(&feedsFake{}, sel, ch, 20).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sel.saved)
	assert.Empty(t, ch.messages)
}

func TestBriefingPropagatesFeedError(t *testing.T) {
	t.Parallel()

	feeds := &feedsFake{err: errors.New("dns failure")}
	err := newBriefing(feeds, &selectionsFake{}, &channelFake{}, 20).Run(context.Background())
	assert.ErrorContains(t, err, "dns failure")
}

func TestBriefingReplacesStaleBatch(t *testing.T) {
	t.Parallel()

	sel := &selectionsFake{saved: &domain.SelectionBatch{
		CreatedAt: testTime.Add(-25 * time.Hour),
		ExpiresAt: testTime.Add(-5 * time.Hour),
		Items:     []domain.CandidateItem{candidate("Old story", 30*time.Hour)},
	}}
	feeds := &feedsFake{items: []domain.CandidateItem{candidate("Fresh story", time.Hour)}}

	err := newBriefing(feeds, sel, &channelFake{}, 20).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Fresh story", sel.saved.Items[0].Title)
}
