// Package discord is a minimal REST client for the handful of endpoints
// the relay needs: identity lookup, channel lookup, webhook management,
// webhook execution and message crossposting.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"
	clientTimeout  = 20 * time.Second
	userAgent      = "feedrelay (https://github.com/feedrelay, 1.0)"

	maxErrorBodyBytes = 1 << 10
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	log        *slog.Logger
}

func NewClient(token string, log *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: clientTimeout},
		baseURL:    defaultBaseURL,
		token:      token,
		log:        log,
	}
}

// CurrentUser returns the bot user the token belongs to.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &user); err != nil {
		return nil, fmt.Errorf("get current user: %w", err)
	}

	return &user, nil
}

func (c *Client) Channel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	path := fmt.Sprintf("/channels/%s", channelID)

	if err := c.do(ctx, http.MethodGet, path, nil, &channel); err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}

	return &channel, nil
}

// CreateWebhook creates a webhook owned by the bot in the given channel.
// The REST avatar field wants inline image data, so only the name is set
// here; avatar and display name ride along as execute-time overrides.
func (c *Client) CreateWebhook(ctx context.Context, channelID string, name string) (*Webhook, error) {
	body := map[string]string{"name": name}

	var webhook Webhook
	path := fmt.Sprintf("/channels/%s/webhooks", channelID)

	if err := c.do(ctx, http.MethodPost, path, body, &webhook); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}

	return &webhook, nil
}

func (c *Client) ChannelWebhooks(ctx context.Context, channelID string) ([]Webhook, error) {
	var webhooks []Webhook
	path := fmt.Sprintf("/channels/%s/webhooks", channelID)

	if err := c.do(ctx, http.MethodGet, path, nil, &webhooks); err != nil {
		return nil, fmt.Errorf("get channel webhooks: %w", err)
	}

	return webhooks, nil
}

// Execute sends the payload through the webhook and returns the created
// message (wait=true, so the provider reports the message it stored).
func (c *Client) Execute(ctx context.Context, webhook *Webhook, payload *WebhookPayload) (*Message, error) {
	var message Message
	path := fmt.Sprintf("/webhooks/%s/%s?wait=true", webhook.ID, webhook.Token)

	if err := c.do(ctx, http.MethodPost, path, payload, &message); err != nil {
		return nil, fmt.Errorf("execute webhook: %w", err)
	}

	return &message, nil
}

// Crosspost publishes an already-sent message in an announcement channel
// to its followers.
func (c *Client) Crosspost(ctx context.Context, channelID string, messageID string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/crosspost", channelID, messageID)

	if err := c.do(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("crosspost message: %w", err)
	}

	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}

		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			c.log.ErrorContext(ctx, "Failed to close response body",
				"error", err,
				"method", method,
				"path", path)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

		return fmt.Errorf("do request: unexpected status %d: %s", resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}

	return nil
}
