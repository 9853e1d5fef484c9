// Package poller runs the single-threaded inbound event loop: it long-polls
// the operator channel, advances the durable cursor, and dispatches each
// event to the approval workflow.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"NewsPublisher/internal/domain"
	"NewsPublisher/internal/infrastructure/telegram"
	"NewsPublisher/internal/ports"
	"NewsPublisher/internal/workflow"
)

// UpdateSource is the inbound side of the operator channel.
type UpdateSource interface {
	Updates(ctx context.Context, offset int64) ([]telegram.Update, error)
	AnswerCallback(ctx context.Context, callbackID string) error
	ChatID() string
}

// Poller drains updates one batch at a time. Events run strictly in order on
// a single goroutine, so the workflow never sees concurrent calls.
type Poller struct {
	source   UpdateSource
	cursor   ports.CursorStore
	workflow *workflow.Workflow
	channel  ports.OperatorChannel
	logger   *slog.Logger
	interval time.Duration
	chatID   int64
}

// New builds a poller. interval is the pause between empty cycles.
func New(source UpdateSource, cursor ports.CursorStore, wf *workflow.Workflow, channel ports.OperatorChannel, interval time.Duration, logger *slog.Logger) *Poller {
	chatID, err := strconv.ParseInt(source.ChatID(), 10, 64)
	if err != nil {
		chatID = 0
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		source:   source,
		cursor:   cursor,
		workflow: wf,
		channel:  channel,
		logger:   logger.With("component", "poller"),
		interval: interval,
		chatID:   chatID,
	}
}

// Run loops until the context is cancelled. A failing cycle is logged and the
// loop carries on; only cancellation stops it.
func (p *Poller) Run(ctx context.Context) error {
	offset, err := p.cursor.LoadCursor(ctx)
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	p.logger.Info("poller started", "offset", offset)

	for {
		next, err := p.Cycle(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logger.Error("poll cycle failed", "error", err)
		} else {
			offset = next
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.interval):
		}
	}
}

// Cycle fetches one batch, persists the advanced cursor before handling any
// event, and returns the offset for the next cycle. Persist-then-process
// means a crash mid-batch re-delivers nothing: stale events are dropped, not
// replayed.
func (p *Poller) Cycle(ctx context.Context, offset int64) (int64, error) {
	updates, err := p.source.Updates(ctx, offset)
	if err != nil {
		return offset, fmt.Errorf("fetch updates: %w", err)
	}
	if len(updates) == 0 {
		return offset, nil
	}

	next := offset
	for _, u := range updates {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	if err := p.cursor.SaveCursor(ctx, next); err != nil {
		return offset, fmt.Errorf("save cursor: %w", err)
	}

	for _, u := range updates {
		p.dispatch(ctx, u)
	}
	return next, nil
}

func (p *Poller) dispatch(ctx context.Context, u telegram.Update) {
	switch {
	case u.CallbackQuery != nil:
		if !p.fromOperator(u.CallbackQuery.Message) {
			p.logger.Warn("callback from foreign chat ignored", "update_id", u.UpdateID)
			return
		}
		if err := p.source.AnswerCallback(ctx, u.CallbackQuery.ID); err != nil {
			p.logger.Warn("callback ack failed", "error", err)
		}
		p.report(ctx, p.workflow.HandleAction(ctx, domain.Action(u.CallbackQuery.Data)))
	case u.Message != nil:
		if !p.fromOperator(u.Message) {
			p.logger.Warn("message from foreign chat ignored", "update_id", u.UpdateID)
			return
		}
		p.report(ctx, p.workflow.HandleMessage(ctx, u.Message.Text))
	}
}

func (p *Poller) fromOperator(msg *telegram.Message) bool {
	return msg != nil && msg.Chat.ID == p.chatID
}

// report turns a workflow error into an operator-readable reply. Unknown
// errors are logged with a generic reply so the operator is never left
// staring at silence.
func (p *Poller) report(ctx context.Context, err error) {
	if err == nil {
		return
	}

	text := friendlyText(err)
	if text == "" {
		p.logger.Error("event handling failed", "error", err)
		text = "⚠️ Something went wrong. Check the logs."
	}
	if sendErr := p.channel.SendMessage(ctx, text); sendErr != nil {
		p.logger.Error("error reply failed", "error", sendErr)
	}
}

func friendlyText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNoPendingSelection):
		return "⚠️ There is no article list waiting for a selection. Ask for a briefing first."
	case errors.Is(err, domain.ErrNoPendingDraft):
		return "⚠️ There is no pending draft."
	case errors.Is(err, domain.ErrEmptySelection):
		return "⚠️ None of those numbers match the list. Try again."
	case errors.Is(err, domain.ErrEmptyGeneration):
		return "⚠️ The copywriter came back empty. Try again."
	}
	return ""
}
