package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsPublisher/internal/config"
	"NewsPublisher/internal/domain"
)

func newTestCopywriter(t *testing.T, reply func(model, user string) string) (*Copywriter, *[]string) {
	t.Helper()

	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.NotEmpty(t, r.Header.Get("anthropic-version"))

		var payload struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		models = append(models, payload.Model)

		text := reply(payload.Model, payload.Messages[0].Content)
		fmt.Fprintf(w, `{"content":[{"text":%q}]}`, text)
	}))
	t.Cleanup(srv.Close)

	return NewCopywriter(config.CopywriterConfig{
		Endpoint:  srv.URL,
		Model:     "writer-model",
		PickModel: "picker-model",
		APIKey:    "key",
	}), &models
}

func TestDraftSendsNumberedItems(t *testing.T) {
	t.Parallel()

	var prompt string
	c, models := newTestCopywriter(t, func(_, user string) string {
		prompt = user
		return "  Bitcoin pumps again\n"
	})

	got, err := c.Draft(context.Background(), []domain.CandidateItem{
		{Title: "BTC breaks 100k", Source: "CoinDesk"},
		{Title: "ETF inflows surge", Source: "The Block"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bitcoin pumps again", got, "reply is trimmed")
	assert.Contains(t, prompt, "1. BTC breaks 100k (CoinDesk)")
	assert.Contains(t, prompt, "2. ETF inflows surge (The Block)")
	assert.Equal(t, []string{"writer-model"}, *models)
}

func TestPickParsesFencedJSON(t *testing.T) {
	t.Parallel()

	c, models := newTestCopywriter(t, func(string, string) string {
		return "```json\n{\"index\": 2}\n```"
	})

	idx, err := c.Pick(context.Background(), []domain.CandidateItem{
		{Title: "a"}, {Title: "b"}, {Title: "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, idx, "1-based reply becomes a 0-based index")
	assert.Equal(t, []string{"picker-model"}, *models)
}

func TestPickClampsOutOfRangeIndex(t *testing.T) {
	t.Parallel()

	c, _ := newTestCopywriter(t, func(string, string) string {
		return `{"index": 99}`
	})

	idx, err := c.Pick(context.Background(), []domain.CandidateItem{{Title: "a"}, {Title: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestPickRejectsUnparsableReply(t *testing.T) {
	t.Parallel()

	c, _ := newTestCopywriter(t, func(string, string) string {
		return "the second one, obviously"
	})

	_, err := c.Pick(context.Background(), []domain.CandidateItem{{Title: "a"}, {Title: "b"}})
	assert.ErrorIs(t, err, domain.ErrEmptyGeneration)
}

func TestEmptyReplyIsAGeneratorFailure(t *testing.T) {
	t.Parallel()

	c, _ := newTestCopywriter(t, func(string, string) string { return "   " })

	_, err := c.Revise(context.Background(), "draft", "make it shorter")
	assert.ErrorIs(t, err, domain.ErrEmptyGeneration)
}

func TestRemoteErrorCarriesBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := NewCopywriter(config.CopywriterConfig{Endpoint: srv.URL, Model: "m", APIKey: "key"})
	_, err := c.Compose(context.Background(), domain.CandidateItem{Title: "t"}, "")
	assert.ErrorContains(t, err, "overloaded")
}

func TestMisconfiguredClientFailsFast(t *testing.T) {
	t.Parallel()

	c := NewCopywriter(config.CopywriterConfig{Endpoint: "https://example.com", Model: "m"})
	_, err := c.Draft(context.Background(), []domain.CandidateItem{{Title: "t"}})
	assert.ErrorContains(t, err, "misconfigured")
}
