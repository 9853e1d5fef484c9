// Package fetch retrieves remote documents with bounded redirect following
// and extracts images and readable text from article pages.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

const (
	maxRedirects = 5
	maxBodyBytes = 4 << 20
	userAgent    = "Mozilla/5.0 (compatible; NewsPublisher/1.0)"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Fetcher implements ports.PageFetcher. Redirects are followed manually so
// the remaining-hop count is explicit.
type Fetcher struct {
	client *http.Client
}

var _ ports.PageFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; redirect handling is taken over here.
func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	// Copy so disabling the automatic redirect policy stays local.
	own := *client
	own.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Fetcher{client: &own}
}

// Fetch downloads a document, following at most maxRedirects hops.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	return f.fetch(ctx, rawURL, maxRedirects)
}

// fetch carries the remaining-hop counter down each redirect.
func (f *Fetcher) fetch(ctx context.Context, rawURL string, hopsLeft int) ([]byte, error) {
	if hopsLeft < 0 {
		return nil, domain.ErrTooManyRedirects
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/xml, text/xml, text/html, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		location := resp.Header.Get("Location")
		if location == "" {
			return nil, fmt.Errorf("redirect from %s without location", rawURL)
		}
		next, err := resp.Request.URL.Parse(location)
		if err != nil {
			return nil, fmt.Errorf("bad redirect location %q: %w", location, err)
		}
		return f.fetch(ctx, next.String(), hopsLeft-1)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rawURL, err)
	}
	return body, nil
}

// ArticleImages lists absolute image URLs referenced by an article page,
// og:image candidates first, then inline img tags with image extensions.
func (f *Fetcher) ArticleImages(ctx context.Context, pageURL string) ([]string, error) {
	raw, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse article page: %w", err)
	}

	var (
		images []string
		seen   = map[string]struct{}{}
	)
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if !strings.HasPrefix(candidate, "http") {
			return
		}
		if _, ok := seen[candidate]; ok {
			return
		}
		seen[candidate] = struct{}{}
		images = append(images, candidate)
	}

	doc.Find(`meta[property="og:image"]`).Each(func(_ int, sel *goquery.Selection) {
		if content, ok := sel.Attr("content"); ok {
			add(content)
		}
	})

	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if hasImageExtension(src) {
			add(src)
		}
	})

	return images, nil
}

// ArticleText extracts readable body text, capped to what a generator
// prompt can use.
func (f *Fetcher) ArticleText(ctx context.Context, pageURL string) (string, error) {
	raw, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parse article page: %w", err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	text := strings.Join(strings.Fields(doc.Text()), " ")
	const maxChars = 3000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text, nil
}

func hasImageExtension(src string) bool {
	parsed, err := url.Parse(src)
	if err != nil {
		return false
	}
	path := strings.ToLower(parsed.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
