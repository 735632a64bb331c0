// Package dispatcher drives one polling tick: reload config, fetch every
// feed's newest entry, compare fingerprints, render and fan out changed
// entries, then flush the fingerprint store.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"feedrelay/internal/discord"
	"feedrelay/internal/domain"
	"feedrelay/internal/ratelimiter"
	"feedrelay/internal/store"
	"feedrelay/internal/template"
	"feedrelay/internal/webhook"
)

const tickTimeout = 10 * time.Minute

type configLoader interface {
	Load(ctx context.Context) ([]domain.FeedConfig, bool, error)
}

type entryFetcher interface {
	Latest(ctx context.Context, feedURL string) (domain.Entry, error)
}

type endpointRegistry interface {
	EnsureAll(ctx context.Context, feeds []domain.FeedConfig)
	Resolve(ctx context.Context, feedID string, dest domain.Destination) (*webhook.Endpoint, bool)
}

type sender interface {
	Execute(ctx context.Context, wh *discord.Webhook, payload *discord.WebhookPayload) (*discord.Message, error)
	Crosspost(ctx context.Context, channelID string, messageID string) error
}

type Dispatcher struct {
	loader       configLoader
	fetcher      entryFetcher
	registry     endpointRegistry
	client       sender
	fingerprints *store.Fingerprints
	limiter      *ratelimiter.Limiter
	log          *slog.Logger

	// Single-flight guard: a tick firing while the previous one still
	// runs is skipped, not queued.
	running sync.Mutex
}

func New(
	loader configLoader,
	fetcher entryFetcher,
	registry endpointRegistry,
	client sender,
	fingerprints *store.Fingerprints,
	limiter *ratelimiter.Limiter,
	log *slog.Logger,
) *Dispatcher {
	return &Dispatcher{
		loader:       loader,
		fetcher:      fetcher,
		registry:     registry,
		client:       client,
		fingerprints: fingerprints,
		limiter:      limiter,
		log:          log,
	}
}

// RunTick polls every configured feed once. Feeds are processed
// sequentially in configured order; a failure in one feed or destination
// never blocks the rest. The fingerprint store is flushed exactly once at
// the end.
func (d *Dispatcher) RunTick(ctx context.Context) {
	if !d.running.TryLock() {
		d.log.WarnContext(ctx, "Skipping tick: previous tick is still running")
		ticksSkipped.Inc()

		return
	}
	defer d.running.Unlock()

	ctx, cancel := context.WithTimeout(ctx, tickTimeout)
	defer cancel()

	ticksTotal.Inc()

	feeds, changed, err := d.loader.Load(ctx)
	if err != nil {
		d.log.ErrorContext(ctx, "Failed to load feed config",
			"error", err)

		return
	}

	if changed {
		d.registry.EnsureAll(ctx, feeds)
	}

	for i := range feeds {
		d.processFeed(ctx, &feeds[i])
	}

	if err = d.fingerprints.Flush(ctx); err != nil {
		d.log.ErrorContext(ctx, "Failed to flush fingerprints",
			"error", err,
			"feedCount", len(feeds))
	}
}

func (d *Dispatcher) processFeed(ctx context.Context, feed *domain.FeedConfig) {
	feedsChecked.Inc()

	entry, err := d.fetcher.Latest(ctx, feed.URL)
	if err != nil {
		d.log.ErrorContext(ctx, "Failed to fetch feed",
			"error", err,
			"feedID", feed.ID,
			"feedURL", feed.URL)

		return
	}

	if last, ok := d.fingerprints.Get(feed.ID); ok && last == entry.URL {
		d.log.DebugContext(ctx, "Feed is unchanged",
			"feedID", feed.ID,
			"entryURL", entry.URL)

		return
	}

	payload := template.Render(feed.Template, &entry)
	payload.Username = feed.Name
	payload.AvatarURL = feed.AvatarURL

	for _, dest := range feed.Destinations {
		d.sendTo(ctx, feed, dest, payload)
	}

	// At-most-once notification per entry: the fingerprint advances even
	// when some destinations failed.
	d.fingerprints.Set(feed.ID, entry.URL)
	entriesDispatched.Inc()
}

func (d *Dispatcher) sendTo(
	ctx context.Context,
	feed *domain.FeedConfig,
	dest domain.Destination,
	payload *discord.WebhookPayload,
) {
	endpoint, ok := d.registry.Resolve(ctx, feed.ID, dest)
	if !ok {
		d.log.WarnContext(ctx, "Skipping destination without endpoint",
			"feedID", feed.ID,
			"guildID", dest.GuildID,
			"channelID", dest.ChannelID)
		sendErrors.Inc()

		return
	}

	if payload.IsEmpty() {
		d.log.DebugContext(ctx, "Skipping send of empty payload",
			"feedID", feed.ID,
			"channelID", dest.ChannelID)

		return
	}

	if err := d.limiter.Wait(ctx); err != nil {
		d.log.WarnContext(ctx, "Send pacing interrupted",
			"error", err,
			"feedID", feed.ID,
			"channelID", dest.ChannelID)

		return
	}

	message, err := d.client.Execute(ctx, endpoint.Webhook, payload)
	if err != nil {
		d.log.ErrorContext(ctx, "Failed to send payload",
			"error", err,
			"feedID", feed.ID,
			"channelID", dest.ChannelID)
		sendErrors.Inc()

		return
	}

	if endpoint.Announcement {
		if err = d.client.Crosspost(ctx, message.ChannelID, message.ID); err != nil {
			d.log.ErrorContext(ctx, "Failed to crosspost message",
				"error", err,
				"feedID", feed.ID,
				"channelID", message.ChannelID,
				"messageID", message.ID)
		}
	}
}
