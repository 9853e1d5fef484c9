package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPublisher/internal/config"
)

type fetcherStub struct {
	docs map[string][]byte
	errs map[string]error
}

func (f *fetcherStub) Fetch(_ context.Context, url string) ([]byte, error) {
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	return f.docs[url], nil
}

func (f *fetcherStub) ArticleImages(context.Context, string) ([]string, error) { return nil, nil }
func (f *fetcherStub) ArticleText(context.Context, string) (string, error)    { return "", nil }

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <item>
    <title><![CDATA[Bitcoin breaks $100k & holds]]></title>
    <link>https://example.com/btc-100k</link>
    <pubDate>Thu, 27 Aug 2026 09:00:00 +0000</pubDate>
  </item>
  <item>
    <title>ETF inflows slow</title>
    <link>https://example.com/etf</link>
    <dc:date>2026-08-28T07:30:00Z</dc:date>
  </item>
  <item>
    <title>No link, skipped</title>
  </item>
</channel>
</rss>`

func TestFetchAllParsesAndSortsNewestFirst(t *testing.T) {
	t.Parallel()

	stub := &fetcherStub{docs: map[string][]byte{
		"https://feeds.example.com/rss": []byte(sampleFeed),
	}}
	source := NewSource([]config.FeedConfig{
		{Name: "Example", URL: "https://feeds.example.com/rss", Lang: "EN"},
	}, stub, nil)

	items, err := source.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "ETF inflows slow", items[0].Title, "dc:date item is newest")
	assert.Equal(t, "Bitcoin breaks $100k & holds", items[1].Title, "CDATA and entities decoded")
	assert.Equal(t, "https://example.com/btc-100k", items[1].URL)
	assert.Equal(t, "Example", items[1].Source)
	assert.Equal(t, "EN", items[1].Lang)
	assert.Equal(t, time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC), items[1].PublishedAt)
}

func TestFetchAllSkipsFailingFeed(t *testing.T) {
	t.Parallel()

	stub := &fetcherStub{
		docs: map[string][]byte{"https://ok.example.com/rss": []byte(sampleFeed)},
		errs: map[string]error{"https://down.example.com/rss": assert.AnError},
	}
	source := NewSource([]config.FeedConfig{
		{Name: "Down", URL: "https://down.example.com/rss", Lang: "EN"},
		{Name: "OK", URL: "https://ok.example.com/rss", Lang: "EN"},
	}, stub, nil)

	items, err := source.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2, "healthy feed still reports when a sibling fails")
}

func TestParseFeedCapsPerFeed(t *testing.T) {
	t.Parallel()

	doc := `<rss><channel>`
	for i := 0; i < 15; i++ {
		doc += `<item><title>t</title><link>https://example.com/</link></item>`
	}
	doc += `</channel></rss>`

	items, err := parseFeed([]byte(doc), config.FeedConfig{Name: "Big"}, time.Now())
	require.NoError(t, err)
	assert.Len(t, items, maxPerFeed)
}
