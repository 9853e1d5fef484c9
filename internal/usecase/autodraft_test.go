package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPublisher/internal/domain"
)

type seenFake struct {
	urls   map[string]bool
	marked []string
}

func (s *seenFake) SeenURLs(context.Context) (map[string]bool, error) {
	if s.urls == nil {
		return map[string]bool{}, nil
	}
	return s.urls, nil
}

func (s *seenFake) MarkSeen(_ context.Context, url string) error {
	s.marked = append(s.marked, url)
	return nil
}

type writerStub struct {
	pickIdx  int
	pickErr  error
	picked   []domain.CandidateItem
	post     string
	postErr  error
	composed domain.CandidateItem
	body     string
}

func (w *writerStub) Draft(context.Context, []domain.CandidateItem) (string, error) {
	return "", nil
}

func (w *writerStub) Pick(_ context.Context, items []domain.CandidateItem) (int, error) {
	w.picked = items
	return w.pickIdx, w.pickErr
}

func (w *writerStub) Compose(_ context.Context, item domain.CandidateItem, body string) (string, error) {
	w.composed = item
	w.body = body
	return w.post, w.postErr
}

func (w *writerStub) Revise(context.Context, string, string) (string, error) { return "", nil }

type pagesStub struct {
	text    string
	textErr error
	images  []string
}

func (p *pagesStub) Fetch(context.Context, string) ([]byte, error) { return nil, nil }

func (p *pagesStub) ArticleImages(context.Context, string) ([]string, error) {
	return p.images, nil
}

func (p *pagesStub) ArticleText(context.Context, string) (string, error) {
	return p.text, p.textErr
}

type draftsFake struct {
	saved *domain.Draft
}

func (d *draftsFake) SaveDraft(_ context.Context, draft domain.Draft) error {
	d.saved = &draft
	return nil
}

func (d *draftsFake) LoadDraft(context.Context) (*domain.Draft, error) { return d.saved, nil }
func (d *draftsFake) ClearDraft(context.Context) error                 { d.saved = nil; return nil }

type autoDraftFixture struct {
	job     *AutoDraft
	feeds   *feedsFake
	seen    *seenFake
	writer  *writerStub
	pages   *pagesStub
	drafts  *draftsFake
	channel *channelFake
}

func newAutoDraftFixture() *autoDraftFixture {
	f := &autoDraftFixture{
		feeds:   &feedsFake{},
		seen:    &seenFake{},
		writer:  &writerStub{},
		pages:   &pagesStub{},
		drafts:  &draftsFake{},
		channel: &channelFake{},
	}
	f.job = NewAutoDraft(AutoDraftDeps{
		Feeds:   f.feeds,
		Seen:    f.seen,
		Writer:  f.writer,
		Pages:   f.pages,
		Drafts:  f.drafts,
		Channel: f.channel,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	f.job.SetClock(func() time.Time { return testTime })
	return f
}

func TestAutoDraftComposesAndPresents(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	f.feeds.items = []domain.CandidateItem{
		candidate("Markets rally", time.Hour),
		candidate("Exchange hacked", 90*time.Minute),
	}
	f.writer.pickIdx = 1
	f.writer.post = "Exchange hacked, funds safu"
	f.pages.text = "full article body"
	f.pages.images = []string{"https://cdn.example.com/hack.jpg"}

	err := f.job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Exchange hacked", f.writer.composed.Title)
	assert.Equal(t, "full article body", f.writer.body)

	require.NotNil(t, f.drafts.saved)
	assert.Equal(t, "Exchange hacked, funds safu", f.drafts.saved.Content)
	require.Len(t, f.drafts.saved.Units, 2)
	assert.Equal(t, "Exchange hacked, funds safu", f.drafts.saved.Units[0])
	assert.Equal(t, "🗞 https://example.com/Exchange hacked", f.drafts.saved.Units[1])
	assert.Equal(t, "https://cdn.example.com/hack.jpg", f.drafts.saved.ImageURL)

	assert.Equal(t, []string{"https://example.com/Exchange hacked"}, f.seen.marked)
	assert.Equal(t, []string{"Exchange hacked, funds safu"}, f.channel.drafts)
}

func TestAutoDraftPrefersRecentWindow(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	f.feeds.items = []domain.CandidateItem{
		candidate("Fresh story", time.Hour),
		candidate("Stale story", 10*time.Hour),
	}
	f.writer.post = "post"

	require.NoError(t, f.job.Run(context.Background()))
	require.Len(t, f.writer.picked, 1, "only items inside the two hour window offered")
	assert.Equal(t, "Fresh story", f.writer.picked[0].Title)
}

func TestAutoDraftWidensWindowWhenQuiet(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	f.feeds.items = []domain.CandidateItem{
		candidate("Three hours old", 3*time.Hour),
		candidate("Ten hours old", 10*time.Hour),
	}
	f.writer.post = "post"

	require.NoError(t, f.job.Run(context.Background()))
	require.Len(t, f.writer.picked, 1)
	assert.Equal(t, "Three hours old", f.writer.picked[0].Title)
}

func TestAutoDraftSkipsSeenStories(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	fresh := candidate("Fresh story", time.Hour)
	old := candidate("Older story", 6*time.Hour)
	f.feeds.items = []domain.CandidateItem{fresh, old}
	f.seen.urls = map[string]bool{fresh.URL: true}
	f.writer.post = "post"

	require.NoError(t, f.job.Run(context.Background()))
	require.Len(t, f.writer.picked, 1)
	assert.Equal(t, "Older story", f.writer.picked[0].Title)
}

func TestAutoDraftFallsBackToNewestWhenAllSeen(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	for _, title := range []string{"One", "Two", "Three", "Four", "Five", "Six", "Seven"} {
		item := candidate(title, 3*time.Hour)
		f.feeds.items = append(f.feeds.items, item)
		if f.seen.urls == nil {
			f.seen.urls = map[string]bool{}
		}
		f.seen.urls[item.URL] = true
	}
	f.writer.post = "post"

	require.NoError(t, f.job.Run(context.Background()))
	require.Len(t, f.writer.picked, fallbackPoolSize, "newest slice offered despite the seen set")
	assert.Equal(t, "One", f.writer.picked[0].Title)
}

func TestAutoDraftSurvivesUnreadableArticle(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	f.feeds.items = []domain.CandidateItem{candidate("Paywalled story", time.Hour)}
	f.pages.textErr = errors.New("403")
	f.writer.post = "post from headline"

	require.NoError(t, f.job.Run(context.Background()))
	assert.Equal(t, "", f.writer.body, "compose still runs on the headline alone")
	require.NotNil(t, f.drafts.saved)
}

func TestAutoDraftPropagatesComposeFailure(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	f.feeds.items = []domain.CandidateItem{candidate("Story", time.Hour)}
	f.writer.postErr = domain.ErrEmptyGeneration

	err := f.job.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrEmptyGeneration)
	assert.Nil(t, f.drafts.saved)
	assert.Empty(t, f.seen.marked, "a failed compose leaves the story eligible")
}

func TestAutoDraftDoesNothingWithoutCandidates(t *testing.T) {
	t.Parallel()

	f := newAutoDraftFixture()
	require.NoError(t, f.job.Run(context.Background()))
	assert.Nil(t, f.drafts.saved)
	assert.Empty(t, f.channel.drafts)
}
