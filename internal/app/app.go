// Package app assembles the adapters and runs the approval loop.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"NewsPublisher/internal/config"
	"NewsPublisher/internal/infrastructure/fetch"
	"NewsPublisher/internal/infrastructure/llm"
	"NewsPublisher/internal/infrastructure/oauth"
	"NewsPublisher/internal/infrastructure/scheduler"
	"NewsPublisher/internal/infrastructure/scraper"
	"NewsPublisher/internal/infrastructure/storage"
	"NewsPublisher/internal/infrastructure/telegram"
	"NewsPublisher/internal/infrastructure/twitter"
	"NewsPublisher/internal/poller"
	"NewsPublisher/internal/usecase"
	"NewsPublisher/internal/workflow"
)

// App owns the wired components for one process.
type App struct {
	cfg    config.Config
	logger *slog.Logger
}

// New validates the configuration and prepares the application.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// Run wires everything and blocks on the event loop until the context is
// cancelled or the loop fails.
func (a *App) Run(ctx context.Context) error {
	store, err := storage.Open(a.cfg.Storage.Path, a.cfg.AutoDraft.SeenTTL)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()

	channel := telegram.NewClient(a.cfg.Telegram.BotToken, a.cfg.Telegram.ChatID, a.cfg.Poller.LongPollSec)

	signer := oauth.NewSigner(oauth.Credentials{
		ConsumerKey:    a.cfg.Twitter.APIKey,
		ConsumerSecret: a.cfg.Twitter.APISecret,
		Token:          a.cfg.Twitter.AccessToken,
		TokenSecret:    a.cfg.Twitter.AccessTokenSecret,
	})
	publisher := twitter.NewPublisher(signer, a.cfg.Twitter.Handle, store, a.logger, twitter.Options{
		Pace: a.cfg.Twitter.ThreadPace,
	})

	pages := fetch.NewFetcher(nil)
	writer := llm.NewCopywriter(a.cfg.Copywriter)
	feeds := scraper.NewSource(a.cfg.Feeds, pages, a.logger)

	wf := workflow.New(workflow.Deps{
		Drafts:     store,
		Selections: store,
		Writer:     writer,
		Publisher:  publisher,
		Channel:    channel,
		Pages:      pages,
		Logger:     a.logger,
	})

	if a.cfg.Briefing.Enabled {
		briefing := usecase.NewBriefing(usecase.BriefingDeps{
			Feeds:      feeds,
			Selections: store,
			Channel:    channel,
			Logger:     a.logger,
			TTL:        a.cfg.Selection.TTL,
			MaxItems:   a.cfg.Selection.MaxItems,
		})
		sched := scheduler.NewInterval(a.cfg.Briefing.Interval)
		if err := sched.Start(ctx, a.logged("briefing", briefing.Run)); err != nil {
			return fmt.Errorf("start briefing: %w", err)
		}
		defer sched.Stop(context.Background())
	}

	if a.cfg.AutoDraft.Enabled {
		autodraft := usecase.NewAutoDraft(usecase.AutoDraftDeps{
			Feeds:   feeds,
			Seen:    store,
			Writer:  writer,
			Pages:   pages,
			Drafts:  store,
			Channel: channel,
			Logger:  a.logger,
		})
		sched := scheduler.NewInterval(a.cfg.AutoDraft.Interval)
		if err := sched.Start(ctx, a.logged("autodraft", autodraft.Run)); err != nil {
			return fmt.Errorf("start autodraft: %w", err)
		}
		defer sched.Stop(context.Background())
	}

	loop := poller.New(channel, store, wf, channel, a.cfg.Poller.Interval, a.logger)
	return loop.Run(ctx)
}

// logged adapts a fallible job to the scheduler signature; job failures are
// logged, never fatal.
func (a *App) logged(name string, job func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		if err := job(ctx); err != nil {
			a.logger.Error("scheduled job failed", "job", name, "error", err)
		}
	}
}
