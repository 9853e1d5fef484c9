// Package llm is the content generator: it drafts posts from selected
// items, picks the best candidate, and revises drafts on instruction.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"NewsPublisher/internal/config"
	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

const copywriterSystem = `You are the copywriter for a crypto news account.
Write short, punchy posts. One idea per line. No hashtags, no links, no
financial advice, at most one emoji per post. Facts only, never copy the
source wording. Reply with the post text and nothing else.`

const pickSystem = `You are a news editor. Reply ONLY with valid JSON:
{"index": <1-based number>}. Criteria: breaking news > precise figures >
market impact > general interest.`

// Copywriter implements ports.Copywriter against a messages-style API.
type Copywriter struct {
	endpoint   string
	model      string
	pickModel  string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Copywriter = (*Copywriter)(nil)

// NewCopywriter builds a client from configuration.
func NewCopywriter(cfg config.CopywriterConfig) *Copywriter {
	pick := cfg.PickModel
	if pick == "" {
		pick = cfg.Model
	}
	return &Copywriter{
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		pickModel: pick,
		apiKey:    cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// SetHTTPClient swaps the transport, for tests.
func (c *Copywriter) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Draft composes a post from the operator-selected items.
func (c *Copywriter) Draft(ctx context.Context, items []domain.CandidateItem) (string, error) {
	var list strings.Builder
	for i, item := range items {
		fmt.Fprintf(&list, "%d. %s (%s)\n", i+1, item.Title, item.Source)
	}

	user := fmt.Sprintf("Here are the %d selected articles.\nWrite a punchy post covering them.\n\n%s",
		len(items), list.String())

	return c.complete(ctx, c.model, copywriterSystem, user, 1500)
}

// Pick chooses the most newsworthy candidate and returns its 0-based index.
func (c *Copywriter) Pick(ctx context.Context, items []domain.CandidateItem) (int, error) {
	var list strings.Builder
	for i, item := range items {
		fmt.Fprintf(&list, "%d. [%s] %s\n", i+1, item.Source, item.Title)
	}

	text, err := c.complete(ctx, c.pickModel, pickSystem,
		"Pick the best article to post:\n\n"+list.String(), 80)
	if err != nil {
		return 0, err
	}

	text = strings.TrimSpace(strings.NewReplacer("```json", "", "```", "").Replace(text))
	var parsed struct {
		Index int `json:"index"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return 0, fmt.Errorf("parse pick reply %q: %w", text, domain.ErrEmptyGeneration)
	}

	idx := parsed.Index - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(items) {
		idx = len(items) - 1
	}
	return idx, nil
}

// Compose writes a post for one item given its article body text.
func (c *Copywriter) Compose(ctx context.Context, item domain.CandidateItem, body string) (string, error) {
	var content string
	if body != "" {
		content = fmt.Sprintf("Title: %s\nSource: %s\n\nBody:\n%s", item.Title, item.Source, body)
	} else {
		content = fmt.Sprintf("Title: %s\nSource: %s", item.Title, item.Source)
	}

	return c.complete(ctx, c.model, copywriterSystem,
		"Write the post for this story:\n\n"+content, 600)
}

// Revise rewrites the current draft following the operator's instructions.
func (c *Copywriter) Revise(ctx context.Context, current, instructions string) (string, error) {
	user := fmt.Sprintf("Here is the current draft:\n\n%s\n\nEdit instructions:\n%s\n\nWrite the corrected version in the same style.",
		current, instructions)

	return c.complete(ctx, c.model, copywriterSystem, user, 1500)
}

func (c *Copywriter) complete(ctx context.Context, model, system, user string, maxTokens int) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || model == "" {
		return "", fmt.Errorf("copywriter misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model":      model,
		"max_tokens": maxTokens,
		"system":     system,
		"messages": []map[string]string{
			{"role": "user", "content": user},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal completion payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("completion error %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}

	// A malformed or empty reply is a generator failure, never silently
	// substituted.
	if len(parsed.Content) == 0 || strings.TrimSpace(parsed.Content[0].Text) == "" {
		return "", domain.ErrEmptyGeneration
	}
	return strings.TrimSpace(parsed.Content[0].Text), nil
}
