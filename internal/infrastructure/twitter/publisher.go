// Package twitter publishes approved drafts to the X API, one post or a
// causally chained thread, with OAuth 1.0 signed requests.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/infrastructure/oauth"
	"NewsPublisher/internal/ports"
)

// maxUnitLen is the network's per-post character ceiling.
const maxUnitLen = 280

const (
	defaultPostURL   = "https://api.twitter.com/2/tweets"
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
)

// Publisher implements ports.Publisher against the X create-post and
// media-upload endpoints.
type Publisher struct {
	signer    *oauth.Signer
	client    *http.Client
	postURL   string
	uploadURL string
	handle    string
	pace      time.Duration
	journal   ports.PublishLog
	logger    *slog.Logger
}

var _ ports.Publisher = (*Publisher)(nil)

// Options tunes non-credential behaviour of the publisher.
type Options struct {
	PostURL   string
	UploadURL string
	// Pace is the cool-down between successful chain units.
	Pace   time.Duration
	Client *http.Client
}

// NewPublisher wires the signer, the append-only publish journal and the
// account handle used to build public URLs.
func NewPublisher(signer *oauth.Signer, handle string, journal ports.PublishLog, logger *slog.Logger, opts Options) *Publisher {
	if opts.PostURL == "" {
		opts.PostURL = defaultPostURL
	}
	if opts.UploadURL == "" {
		opts.UploadURL = defaultUploadURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 20 * time.Second}
	}
	if opts.Pace == 0 {
		opts.Pace = time.Second
	}
	return &Publisher{
		signer:    signer,
		client:    opts.Client,
		postURL:   opts.PostURL,
		uploadURL: opts.UploadURL,
		handle:    handle,
		pace:      opts.Pace,
		journal:   journal,
		logger:    logger,
	}
}

// PostOne publishes a single unit. Validation failures never reach the
// network. The attempt is journaled either way.
func (p *Publisher) PostOne(ctx context.Context, text, mediaID string) domain.PublishResult {
	res := p.submit(ctx, 1, text, "", mediaID)
	p.record(ctx, res)
	return res
}

// PostChain publishes units strictly in order, each replying to the previous
// one. The chain stops at the first failing unit; later units are never
// attempted. Each attempted unit is journaled exactly once.
func (p *Publisher) PostChain(ctx context.Context, units []string, mediaID string) []domain.PublishResult {
	if len(units) == 0 {
		return nil
	}

	// Burst 1 lets the first unit through immediately; every following unit
	// waits out the cool-down. No delay trails the final unit.
	limiter := rate.NewLimiter(rate.Every(p.pace), 1)

	results := make([]domain.PublishResult, 0, len(units))
	replyTo := ""
	for i, text := range units {
		if err := limiter.Wait(ctx); err != nil {
			break
		}

		// Media rides on the opening unit only.
		media := ""
		if i == 0 {
			media = mediaID
		}

		res := p.submit(ctx, i+1, text, replyTo, media)
		p.record(ctx, res)
		results = append(results, res)

		if !res.OK() {
			p.warn("chain aborted", "position", res.Position, "error", res.Err)
			break
		}
		replyTo = res.PostID
	}
	return results
}

// UploadMedia pushes raw bytes through the two-step media endpoint and
// returns the hosted media identifier.
func (p *Publisher) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", domain.NewValidationError("empty media payload")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("media", "media")
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write upload form: %w", err)
	}
	if mimeType != "" {
		if err := mw.WriteField("media_category", "tweet_image"); err != nil {
			return "", fmt.Errorf("write upload field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.uploadURL, &body)
	if err != nil {
		return "", fmt.Errorf("new upload request: %w", err)
	}
	// Multipart bodies are excluded from OAuth signing, so only the protocol
	// parameters participate.
	req.Header.Set("Authorization", p.signer.Header(http.MethodPost, p.uploadURL, nil))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", domain.NewTransportError(err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", domain.NewRemoteError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		MediaIDString string `json:"media_id_string"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil || parsed.MediaIDString == "" {
		return "", domain.NewRemoteError(resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return parsed.MediaIDString, nil
}

type createRequest struct {
	Text  string        `json:"text"`
	Reply *replyRef     `json:"reply,omitempty"`
	Media *mediaPayload `json:"media,omitempty"`
}

type replyRef struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type mediaPayload struct {
	MediaIDs []string `json:"media_ids"`
}

type createResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// accepted is the single predicate deciding success: created status plus a
// present identifier. Anything else is a remote failure with the raw body.
func accepted(status int, parsed createResponse) bool {
	return status == http.StatusCreated && parsed.Data.ID != ""
}

func (p *Publisher) submit(ctx context.Context, position int, text, replyTo, mediaID string) domain.PublishResult {
	res := domain.PublishResult{Position: position}

	switch n := utf8.RuneCountInString(text); {
	case n == 0:
		res.Err = domain.NewValidationError("empty unit")
		return res
	case n > maxUnitLen:
		res.Err = domain.NewValidationError(fmt.Sprintf("unit is %d chars (max %d)", n, maxUnitLen))
		return res
	}

	payload := createRequest{Text: text}
	if replyTo != "" {
		payload.Reply = &replyRef{InReplyToTweetID: replyTo}
	}
	if mediaID != "" {
		payload.Media = &mediaPayload{MediaIDs: []string{mediaID}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		res.Err = fmt.Errorf("marshal create request: %w", err)
		return res
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.postURL, bytes.NewReader(body))
	if err != nil {
		res.Err = fmt.Errorf("new create request: %w", err)
		return res
	}
	req.Header.Set("Authorization", p.signer.Header(http.MethodPost, p.postURL, nil))
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		res.Err = domain.NewTransportError(err)
		return res
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var parsed createResponse
	_ = json.Unmarshal(raw, &parsed)

	if !accepted(resp.StatusCode, parsed) {
		res.Err = domain.NewRemoteError(resp.StatusCode, strings.TrimSpace(string(raw)))
		return res
	}

	res.PostID = parsed.Data.ID
	res.URL = fmt.Sprintf("https://twitter.com/%s/status/%s", p.handle, parsed.Data.ID)
	return res
}

func (p *Publisher) record(ctx context.Context, res domain.PublishResult) {
	if p.journal == nil {
		return
	}
	if err := p.journal.AppendResult(ctx, res); err != nil {
		p.warn("journal append failed", "error", err)
	}
}

func (p *Publisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
