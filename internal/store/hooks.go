package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

type hookBackend interface {
	GetWebhooks(ctx context.Context) (map[string]string, error)
	UpsertWebhook(ctx context.Context, hookKey string, webhookID string) error
}

// Hooks maps a composite "feedId@guildId/channelId" key to the
// provider-assigned webhook ID. Unlike fingerprints, a new record is
// persisted immediately when it is created, not batched.
type Hooks struct {
	backend hookBackend
	log     *slog.Logger

	mu      sync.Mutex
	entries map[string]string
}

func NewHooks(backend hookBackend, log *slog.Logger) *Hooks {
	return &Hooks{
		backend: backend,
		log:     log,
		entries: make(map[string]string),
	}
}

// Load reads the persisted registry, degrading to empty on failure.
func (h *Hooks) Load(ctx context.Context) {
	entries, err := h.backend.GetWebhooks(ctx)
	if err != nil {
		h.log.WarnContext(ctx, "Starting with empty webhook registry",
			"error", err)

		entries = make(map[string]string)
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()
}

func (h *Hooks) Get(hookKey string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	webhookID, ok := h.entries[hookKey]

	return webhookID, ok
}

// Put records and immediately persists a newly created webhook.
func (h *Hooks) Put(ctx context.Context, hookKey string, webhookID string) error {
	if err := h.backend.UpsertWebhook(ctx, hookKey, webhookID); err != nil {
		return fmt.Errorf("upsert webhook: %w", err)
	}

	h.mu.Lock()
	h.entries[hookKey] = webhookID
	h.mu.Unlock()

	return nil
}
