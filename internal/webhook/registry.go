// Package webhook manages the relay endpoints: one provider webhook per
// (feed, destination) pair, created lazily and cached durably.
package webhook

import (
	"context"
	"fmt"
	"log/slog"

	"feedrelay/internal/discord"
	"feedrelay/internal/domain"
	"feedrelay/internal/store"
)

type chatClient interface {
	Channel(ctx context.Context, channelID string) (*discord.Channel, error)
	CreateWebhook(ctx context.Context, channelID string, name string) (*discord.Webhook, error)
	ChannelWebhooks(ctx context.Context, channelID string) ([]discord.Webhook, error)
}

// Endpoint is a resolved live webhook plus what the dispatcher needs to
// know about its channel.
type Endpoint struct {
	Webhook      *discord.Webhook
	Announcement bool
}

// Registry is the sole writer of the webhook records. Entries are
// append-only within a run; a webhook deleted out-of-band is not healed
// automatically, the next ensure pass recreates it.
type Registry struct {
	client  chatClient
	hooks   *store.Hooks
	botUser *discord.User
	log     *slog.Logger
}

func NewRegistry(
	client chatClient,
	hooks *store.Hooks,
	botUser *discord.User,
	log *slog.Logger,
) *Registry {
	return &Registry{
		client:  client,
		hooks:   hooks,
		botUser: botUser,
		log:     log,
	}
}

// EnsureAll runs the setup pass over every (feed, destination) pair. It is
// called at startup and after a config change, never per tick.
func (r *Registry) EnsureAll(ctx context.Context, feeds []domain.FeedConfig) {
	for _, feed := range feeds {
		for _, dest := range feed.Destinations {
			r.Ensure(ctx, feed.ID, dest, feed.Name)
		}
	}
}

// Ensure makes sure a webhook exists for the pair, creating and persisting
// one when the cache has no record. Failures are logged, never raised.
func (r *Registry) Ensure(ctx context.Context, feedID string, dest domain.Destination, name string) bool {
	if feedID == "" || dest.GuildID == "" || dest.ChannelID == "" {
		r.log.WarnContext(ctx, "Refusing to ensure webhook with missing IDs",
			"feedID", feedID,
			"guildID", dest.GuildID,
			"channelID", dest.ChannelID)

		return false
	}

	key := hookKey(feedID, dest)
	if _, ok := r.hooks.Get(key); ok {
		return true
	}

	if name == "" {
		name = r.botUser.Username
	}

	channel, err := r.client.Channel(ctx, dest.ChannelID)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to find destination channel",
			"error", err,
			"guildID", dest.GuildID,
			"channelID", dest.ChannelID)

		return false
	}

	if channel.GuildID != dest.GuildID {
		r.log.ErrorContext(ctx, "Destination channel belongs to another guild",
			"guildID", dest.GuildID,
			"channelID", dest.ChannelID,
			"actualGuildID", channel.GuildID)

		return false
	}

	created, err := r.client.CreateWebhook(ctx, dest.ChannelID, name)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to create webhook",
			"error", err,
			"channelID", dest.ChannelID,
			"name", name)

		return false
	}

	if err = r.hooks.Put(ctx, key, created.ID); err != nil {
		r.log.ErrorContext(ctx, "Failed to persist webhook record",
			"error", err,
			"hookKey", key,
			"webhookID", created.ID)

		return false
	}

	return true
}

// Resolve returns the live endpoint for the pair. The cached ID must match
// a webhook owned by this bot that still exists in the channel; anything
// else is logged and reported as not found.
func (r *Registry) Resolve(ctx context.Context, feedID string, dest domain.Destination) (*Endpoint, bool) {
	if feedID == "" || dest.GuildID == "" || dest.ChannelID == "" {
		r.log.WarnContext(ctx, "Refusing to resolve webhook with missing IDs",
			"feedID", feedID,
			"guildID", dest.GuildID,
			"channelID", dest.ChannelID)

		return nil, false
	}

	key := hookKey(feedID, dest)

	cachedID, ok := r.hooks.Get(key)
	if !ok {
		r.log.ErrorContext(ctx, "No cached webhook ID",
			"hookKey", key)

		return nil, false
	}

	channel, err := r.client.Channel(ctx, dest.ChannelID)
	if err != nil {
		r.log.ErrorContext(ctx, "Destination channel was not found",
			"error", err,
			"channelID", dest.ChannelID)

		return nil, false
	}

	webhooks, err := r.client.ChannelWebhooks(ctx, dest.ChannelID)
	if err != nil {
		r.log.ErrorContext(ctx, "Failed to list channel webhooks",
			"error", err,
			"channelID", dest.ChannelID)

		return nil, false
	}

	for i := range webhooks {
		wh := &webhooks[i]

		if wh.ID != cachedID {
			continue
		}
		if wh.User == nil || wh.User.ID != r.botUser.ID {
			continue
		}

		return &Endpoint{
			Webhook:      wh,
			Announcement: channel.IsAnnouncement(),
		}, true
	}

	r.log.ErrorContext(ctx, "Cached webhook no longer exists in channel",
		"hookKey", key,
		"webhookID", cachedID,
		"channelID", dest.ChannelID)

	return nil, false
}

func hookKey(feedID string, dest domain.Destination) string {
	return fmt.Sprintf("%s@%s/%s", feedID, dest.GuildID, dest.ChannelID)
}
