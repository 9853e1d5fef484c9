// Package scraper pulls candidate items from the configured RSS feeds.
package scraper

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"NewsPublisher/internal/config"
	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

// maxPerFeed caps how many items a single feed may contribute.
const maxPerFeed = 10

// Source implements ports.FeedSource over plain RSS documents.
type Source struct {
	feeds   []config.FeedConfig
	fetcher ports.PageFetcher
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.FeedSource = (*Source)(nil)

// NewSource wires the configured feeds with the bounded-redirect fetcher.
func NewSource(feeds []config.FeedConfig, fetcher ports.PageFetcher, logger *slog.Logger) *Source {
	return &Source{
		feeds:   feeds,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
	}
}

// FetchAll walks every feed and aggregates their items, newest first. A
// failing feed is logged and skipped; the remaining sources still report.
func (s *Source) FetchAll(ctx context.Context) ([]domain.CandidateItem, error) {
	var all []domain.CandidateItem
	for _, feed := range s.feeds {
		raw, err := s.fetcher.Fetch(ctx, feed.URL)
		if err != nil {
			s.warn("feed fetch failed", "feed", feed.Name, "error", err)
			continue
		}

		items, err := parseFeed(raw, feed, s.now())
		if err != nil {
			s.warn("feed parse failed", "feed", feed.Name, "error", err)
			continue
		}

		s.debug("feed fetched", "feed", feed.Name, "items", len(items))
		all = append(all, items...)
	}

	sortNewestFirst(all)
	return all, nil
}

type rssDocument struct {
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	Title   string `xml:"title"`
	Link    string `xml:"link"`
	PubDate string `xml:"pubDate"`
	DCDate  string `xml:"date"`
}

func parseFeed(raw []byte, feed config.FeedConfig, fallback time.Time) ([]domain.CandidateItem, error) {
	var doc rssDocument
	decoder := xml.NewDecoder(strings.NewReader(string(raw)))
	decoder.Strict = false
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}

	items := make([]domain.CandidateItem, 0, len(doc.Channel.Items))
	for _, entry := range doc.Channel.Items {
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		items = append(items, domain.CandidateItem{
			Title:       title,
			URL:         link,
			Source:      feed.Name,
			Lang:        feed.Lang,
			PublishedAt: parseDate(entry.PubDate, entry.DCDate, fallback),
		})
		if len(items) == maxPerFeed {
			break
		}
	}
	return items, nil
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z07:00",
}

func parseDate(pubDate, dcDate string, fallback time.Time) time.Time {
	for _, candidate := range []string{pubDate, dcDate} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, candidate); err == nil {
				return parsed.UTC()
			}
		}
	}
	return fallback.UTC()
}

func sortNewestFirst(items []domain.CandidateItem) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
}

func (s *Source) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Source) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
