package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"feedrelay/internal/domain"

	"github.com/mmcdole/gofeed"
)

const fetchClientTimeout = 20 * time.Second

// Fetcher pulls a feed and reduces it to its single newest entry. Only the
// newest entry is ever considered; there is no backfill.
type Fetcher struct {
	parser *gofeed.Parser
	log    *slog.Logger
}

func NewFetcher(log *slog.Logger) *Fetcher {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: fetchClientTimeout}

	return &Fetcher{
		parser: parser,
		log:    log,
	}
}

// Latest fetches the feed and returns its newest entry, normalized.
// Fetch and parse errors propagate to the caller, which isolates them
// per feed.
func (f *Fetcher) Latest(ctx context.Context, feedURL string) (domain.Entry, error) {
	parsed, err := f.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return domain.Entry{}, fmt.Errorf("parse feed (URL = %s): %w", feedURL, err)
	}

	if len(parsed.Items) == 0 {
		return domain.Entry{}, fmt.Errorf("feed has no items (URL = %s)", feedURL)
	}

	return normalizeItem(latestItem(parsed.Items)), nil
}
