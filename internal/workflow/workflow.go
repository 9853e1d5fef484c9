// Package workflow is the approval state machine: it interprets operator
// events against the pending draft and selection batch and drives the
// content generator and the publisher.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/ports"
)

// State is the workflow's position in the approval conversation.
type State int

const (
	// StateIdle awaits selections or button actions.
	StateIdle State = iota
	// StateAwaitingEdit buffers the next free-text message as edit
	// instructions for the pending draft.
	StateAwaitingEdit
)

// Workflow owns the two-state machine. It is driven by a single-flight
// event loop, so no internal locking is needed. The edit-wait state is kept
// in memory only: a restart drops back to idle.
type Workflow struct {
	drafts     ports.DraftStore
	selections ports.SelectionStore
	writer     ports.Copywriter
	publisher  ports.Publisher
	channel    ports.OperatorChannel
	pages      ports.PageFetcher
	logger     *slog.Logger
	now        func() time.Time
	state      State
}

// Deps wires the collaborating adapters.
type Deps struct {
	Drafts     ports.DraftStore
	Selections ports.SelectionStore
	Writer     ports.Copywriter
	Publisher  ports.Publisher
	Channel    ports.OperatorChannel
	Pages      ports.PageFetcher
	Logger     *slog.Logger
}

// New builds an idle workflow.
func New(deps Deps) *Workflow {
	return &Workflow{
		drafts:     deps.Drafts,
		selections: deps.Selections,
		writer:     deps.Writer,
		publisher:  deps.Publisher,
		channel:    deps.Channel,
		pages:      deps.Pages,
		logger:     deps.Logger,
		now:        time.Now,
		state:      StateIdle,
	}
}

// SetClock injects a deterministic clock for tests.
func (w *Workflow) SetClock(now func() time.Time) { w.now = now }

// State exposes the current machine state.
func (w *Workflow) State() State { return w.state }

// HandleMessage routes a free-text operator message: edit instructions when
// awaiting them, a selection when it looks like one, otherwise ignored.
func (w *Workflow) HandleMessage(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)

	if w.state == StateAwaitingEdit {
		return w.applyEdit(ctx, text)
	}
	if IsSelection(text) {
		return w.handleSelection(ctx, text)
	}
	return nil
}

// HandleAction routes a button press.
func (w *Workflow) HandleAction(ctx context.Context, action domain.Action) error {
	switch action {
	case domain.ActionPublish:
		return w.publish(ctx)
	case domain.ActionModifyText:
		w.state = StateAwaitingEdit
		return w.channel.SendMessage(ctx, "✏️ Tell me what to change:")
	case domain.ActionModifyImage:
		return w.replaceImage(ctx)
	case domain.ActionCancel:
		return w.cancel(ctx)
	default:
		w.warn("unknown action ignored", "action", string(action))
		return nil
	}
}

func (w *Workflow) handleSelection(ctx context.Context, text string) error {
	batch, err := w.selections.LoadSelection(ctx)
	if err != nil {
		return fmt.Errorf("load selection: %w", err)
	}
	if batch == nil {
		return domain.ErrNoPendingSelection
	}

	indices := ParseSelection(text, len(batch.Items))
	if len(indices) == 0 {
		return domain.ErrEmptySelection
	}

	items := make([]domain.CandidateItem, 0, len(indices))
	for _, n := range indices {
		items = append(items, batch.Items[n-1])
	}

	if err := w.channel.SendMessage(ctx, fmt.Sprintf("⏳ Drafting a post from %d articles...", len(items))); err != nil {
		w.warn("progress message failed", "error", err)
	}

	content, err := w.writer.Draft(ctx, items)
	if err != nil {
		return fmt.Errorf("generate draft: %w", err)
	}

	if err := w.selections.ClearSelection(ctx); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}

	draft := domain.Draft{Content: content, SavedAt: w.now()}
	if err := w.drafts.SaveDraft(ctx, draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return w.present(ctx, draft)
}

func (w *Workflow) applyEdit(ctx context.Context, instructions string) error {
	// Leaving the edit state first means a failure below does not swallow
	// the operator's next ordinary message.
	w.state = StateIdle

	draft, err := w.drafts.LoadDraft(ctx)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return domain.ErrNoPendingDraft
	}

	if err := w.channel.SendMessage(ctx, "⏳ Revising..."); err != nil {
		w.warn("progress message failed", "error", err)
	}

	revised, err := w.writer.Revise(ctx, draft.Content, instructions)
	if err != nil {
		return fmt.Errorf("revise draft: %w", err)
	}

	// The primary unit mirrors the flat content; media and secondary units
	// survive the edit untouched.
	draft.Content = revised
	if len(draft.Units) > 0 {
		draft.Units[0] = revised
	}
	draft.SavedAt = w.now()

	if err := w.drafts.SaveDraft(ctx, *draft); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return w.present(ctx, *draft)
}

func (w *Workflow) publish(ctx context.Context) error {
	draft, err := w.drafts.LoadDraft(ctx)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return domain.ErrNoPendingDraft
	}

	if err := w.channel.SendMessage(ctx, "🚀 Publishing..."); err != nil {
		w.warn("progress message failed", "error", err)
	}

	mediaID := w.uploadMedia(ctx, draft.ImageURL)

	units := draft.Thread()
	var results []domain.PublishResult
	if len(units) > 1 {
		results = w.publisher.PostChain(ctx, units, mediaID)
	} else {
		results = []domain.PublishResult{w.publisher.PostOne(ctx, units[0], mediaID)}
	}

	for _, res := range results {
		if !res.OK() {
			// The draft stays put so the operator can retry or edit without
			// re-running generation.
			return w.reportFailure(ctx, results)
		}
	}

	if err := w.drafts.ClearDraft(ctx); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	return w.channel.SendMessage(ctx, "✅ Published!\n🔗 "+results[0].URL)
}

// uploadMedia is best effort: any failure is logged and publishing proceeds
// without media rather than aborting.
func (w *Workflow) uploadMedia(ctx context.Context, imageURL string) string {
	if imageURL == "" {
		return ""
	}

	data, err := w.pages.Fetch(ctx, imageURL)
	if err != nil {
		w.warn("image fetch failed, publishing without media", "url", imageURL, "error", err)
		return ""
	}

	mediaID, err := w.publisher.UploadMedia(ctx, data, mimeForImageURL(imageURL))
	if err != nil {
		w.warn("media upload failed, publishing without media", "url", imageURL, "error", err)
		return ""
	}
	return mediaID
}

func (w *Workflow) reportFailure(ctx context.Context, results []domain.PublishResult) error {
	var b strings.Builder
	b.WriteString("❌ Publish failed.\n")
	for _, res := range results {
		if res.OK() {
			fmt.Fprintf(&b, "• unit %d: published %s\n", res.Position, res.URL)
		} else {
			fmt.Fprintf(&b, "• unit %d: %v\n", res.Position, res.Err)
		}
	}
	b.WriteString("The draft is kept; retry or edit it.")
	return w.channel.SendMessage(ctx, b.String())
}

func (w *Workflow) replaceImage(ctx context.Context) error {
	draft, err := w.drafts.LoadDraft(ctx)
	if err != nil {
		return fmt.Errorf("load draft: %w", err)
	}
	if draft == nil {
		return domain.ErrNoPendingDraft
	}

	articleURL := draft.SourceURL()
	if articleURL == "" {
		return w.channel.SendMessage(ctx, "⚠️ This draft has no source article. Send me an image directly and I will use it.")
	}

	if err := w.channel.SendMessage(ctx, "⏳ Looking for another image..."); err != nil {
		w.warn("progress message failed", "error", err)
	}

	images, err := w.pages.ArticleImages(ctx, articleURL)
	if err != nil {
		w.warn("image lookup failed", "url", articleURL, "error", err)
		images = nil
	}

	for _, candidate := range images {
		if candidate == draft.ImageURL {
			continue
		}
		draft.ImageURL = candidate
		draft.SavedAt = w.now()
		if err := w.drafts.SaveDraft(ctx, *draft); err != nil {
			return fmt.Errorf("save draft: %w", err)
		}
		return w.present(ctx, *draft)
	}

	return w.channel.SendMessage(ctx, "⚠️ No other image found. Send me an image directly and I will use it.")
}

func (w *Workflow) cancel(ctx context.Context) error {
	if err := w.drafts.ClearDraft(ctx); err != nil {
		return fmt.Errorf("clear draft: %w", err)
	}
	if err := w.selections.ClearSelection(ctx); err != nil {
		return fmt.Errorf("clear selection: %w", err)
	}
	w.state = StateIdle
	return w.channel.SendMessage(ctx, "❌ Draft cancelled.")
}

func (w *Workflow) present(ctx context.Context, draft domain.Draft) error {
	return w.channel.SendDraft(ctx, draft.Content, draft.ImageURL)
}

func mimeForImageURL(imageURL string) string {
	trimmed := imageURL
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	switch {
	case strings.HasSuffix(strings.ToLower(trimmed), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(trimmed), ".gif"):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

func (w *Workflow) warn(msg string, args ...any) {
	if w.logger != nil {
		w.logger.Warn(msg, args...)
	}
}
