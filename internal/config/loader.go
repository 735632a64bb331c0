package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"feedrelay/internal/domain"

	"github.com/BurntSushi/toml"
	"mvdan.cc/xurls/v2"
)

type feedsFile struct {
	Feeds []feedEntry `toml:"feeds"`
}

type feedEntry struct {
	URL          string             `toml:"url"`
	Name         string             `toml:"name"`
	AvatarURL    string             `toml:"avatar_url"`
	Destinations []destinationEntry `toml:"destinations"`
	Template     *domain.Template   `toml:"template"`
}

type destinationEntry struct {
	GuildID   string `toml:"guild_id"`
	ChannelID string `toml:"channel_id"`
}

// Loader reads the feeds file on demand. The dispatcher calls Load at the
// start of each tick instead of watching the file; a broken reload keeps
// the last good config.
type Loader struct {
	path string
	log  *slog.Logger

	mu     sync.Mutex
	feeds  []domain.FeedConfig
	sum    [sha256.Size]byte
	loaded bool
}

func NewLoader(path string, log *slog.Logger) *Loader {
	return &Loader{path: path, log: log}
}

// Load re-reads the feeds file and reports whether its content changed
// since the previous successful load. After the first successful load it
// never fails: a subsequent read or parse error is logged and the last
// good config is returned unchanged.
func (l *Loader) Load(ctx context.Context) ([]domain.FeedConfig, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	raw, err := os.ReadFile(l.path)
	if err != nil {
		return l.fallback(ctx, fmt.Errorf("read feeds file: %w", err))
	}

	sum := sha256.Sum256(raw)
	if l.loaded && sum == l.sum {
		return l.feeds, false, nil
	}

	feeds, err := parseFeeds(ctx, raw, l.log)
	if err != nil {
		return l.fallback(ctx, err)
	}

	l.feeds = feeds
	l.sum = sum
	l.loaded = true

	return feeds, true, nil
}

func (l *Loader) fallback(ctx context.Context, err error) ([]domain.FeedConfig, bool, error) {
	if !l.loaded {
		return nil, false, err
	}

	l.log.WarnContext(ctx, "Keeping previous feed config",
		"error", err,
		"path", l.path,
		"feedCount", len(l.feeds))

	return l.feeds, false, nil
}

func parseFeeds(ctx context.Context, raw []byte, log *slog.Logger) ([]domain.FeedConfig, error) {
	var file feedsFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse feeds file: %w", err)
	}

	httpsURLRe, err := xurls.StrictMatchingScheme("https://")
	if err != nil {
		return nil, fmt.Errorf("create regexp: %w", err)
	}

	feeds := make([]domain.FeedConfig, 0, len(file.Feeds))
	seen := make(map[string]struct{}, len(file.Feeds))

	for _, entry := range file.Feeds {
		feedURL := strings.TrimSpace(entry.URL)
		if feedURL == "" {
			return nil, errors.New("feed URL is empty")
		}
		if httpsURLRe.FindString(feedURL) != feedURL {
			return nil, fmt.Errorf("feed URL is not a valid https URL: %q", feedURL)
		}

		if _, ok := seen[feedURL]; ok {
			log.WarnContext(ctx, "Skipping duplicate feed",
				"feedURL", feedURL)

			continue
		}
		seen[feedURL] = struct{}{}

		destinations := make([]domain.Destination, 0, len(entry.Destinations))
		for _, d := range entry.Destinations {
			destinations = append(destinations, domain.Destination{
				GuildID:   strings.TrimSpace(d.GuildID),
				ChannelID: strings.TrimSpace(d.ChannelID),
			})
		}

		feeds = append(feeds, domain.FeedConfig{
			ID:           FeedID(feedURL),
			URL:          feedURL,
			Name:         strings.TrimSpace(entry.Name),
			AvatarURL:    strings.TrimSpace(entry.AvatarURL),
			Destinations: destinations,
			Template:     entry.Template,
		})
	}

	return feeds, nil
}

// FeedID derives the stable feed identifier from the feed URL.
func FeedID(feedURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(feedURL)))
	return hex.EncodeToString(sum[:])
}
