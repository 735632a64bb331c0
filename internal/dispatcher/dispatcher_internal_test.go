package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"testing"

	"feedrelay/internal/discord"
	"feedrelay/internal/domain"
	"feedrelay/internal/ratelimiter"
	"feedrelay/internal/store"
	"feedrelay/internal/webhook"
)

type fakeLoader struct {
	feeds   []domain.FeedConfig
	changed bool
	err     error
	calls   int
}

func (l *fakeLoader) Load(context.Context) ([]domain.FeedConfig, bool, error) {
	l.calls++
	changed := l.changed
	l.changed = false

	return l.feeds, changed, l.err
}

type fakeFetcher struct {
	entries map[string]domain.Entry
	errs    map[string]error
}

func (f *fakeFetcher) Latest(_ context.Context, feedURL string) (domain.Entry, error) {
	if err := f.errs[feedURL]; err != nil {
		return domain.Entry{}, err
	}

	return f.entries[feedURL], nil
}

type fakeRegistry struct {
	endpoints   map[string]*webhook.Endpoint
	ensureCalls int
}

func (r *fakeRegistry) EnsureAll(context.Context, []domain.FeedConfig) {
	r.ensureCalls++
}

func (r *fakeRegistry) Resolve(_ context.Context, feedID string, dest domain.Destination) (*webhook.Endpoint, bool) {
	endpoint, ok := r.endpoints[endpointKey(feedID, dest)]

	return endpoint, ok
}

func endpointKey(feedID string, dest domain.Destination) string {
	return fmt.Sprintf("%s@%s/%s", feedID, dest.GuildID, dest.ChannelID)
}

type sentMessage struct {
	webhookID string
	content   string
	username  string
}

type fakeSender struct {
	sent       []sentMessage
	crossposts []string
	execErr    error
}

func (s *fakeSender) Execute(
	_ context.Context,
	wh *discord.Webhook,
	payload *discord.WebhookPayload,
) (*discord.Message, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}

	s.sent = append(s.sent, sentMessage{
		webhookID: wh.ID,
		content:   payload.Content,
		username:  payload.Username,
	})

	return &discord.Message{ID: "m1", ChannelID: wh.ChannelID}, nil
}

func (s *fakeSender) Crosspost(_ context.Context, channelID string, messageID string) error {
	s.crossposts = append(s.crossposts, channelID+"/"+messageID)

	return nil
}

type memoryFingerprintBackend struct {
	fingerprints map[string]string
	replaceCalls int
}

func (b *memoryFingerprintBackend) GetFingerprints(context.Context) (map[string]string, error) {
	return maps.Clone(b.fingerprints), nil
}

func (b *memoryFingerprintBackend) ReplaceFingerprints(_ context.Context, fingerprints map[string]string) error {
	b.fingerprints = maps.Clone(fingerprints)
	b.replaceCalls++

	return nil
}

func testFeed(dests ...domain.Destination) domain.FeedConfig {
	return domain.FeedConfig{
		ID:           "feedA",
		URL:          "https://example.com/a.xml",
		Name:         "Feed A",
		Destinations: dests,
		Template:     &domain.Template{Text: "{{title}}"},
	}
}

func testEndpoint(channelID string, announcement bool) *webhook.Endpoint {
	return &webhook.Endpoint{
		Webhook:      &discord.Webhook{ID: "wh-" + channelID, Token: "token", ChannelID: channelID},
		Announcement: announcement,
	}
}

func newTestDispatcher(
	loader *fakeLoader,
	fetcher *fakeFetcher,
	registry *fakeRegistry,
	sender *fakeSender,
	backend *memoryFingerprintBackend,
) *Dispatcher {
	fingerprints := store.NewFingerprints(backend, slog.Default())
	fingerprints.Load(context.Background())

	return New(loader, fetcher, registry, sender, fingerprints, ratelimiter.New(), slog.Default())
}

func TestRunTickNotifiesOnceUntilEntryChanges(t *testing.T) {
	dest := domain.Destination{GuildID: "G", ChannelID: "C"}
	loader := &fakeLoader{feeds: []domain.FeedConfig{testFeed(dest)}, changed: true}
	fetcher := &fakeFetcher{entries: map[string]domain.Entry{
		"https://example.com/a.xml": {Title: "T1", URL: "https://example.com/u1"},
	}}
	registry := &fakeRegistry{endpoints: map[string]*webhook.Endpoint{
		endpointKey("feedA", dest): testEndpoint("C", false),
	}}
	sender := &fakeSender{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, fetcher, registry, sender, backend)
	ctx := context.Background()

	// First poll: new entry, one message.
	d.RunTick(ctx)
	if len(sender.sent) != 1 || sender.sent[0].content != "T1" {
		t.Fatalf("unexpected sent messages: %+v", sender.sent)
	}
	if got := backend.fingerprints["feedA"]; got != "https://example.com/u1" {
		t.Fatalf("unexpected fingerprint: %q", got)
	}

	// Second poll: same entry, no message.
	d.RunTick(ctx)
	if len(sender.sent) != 1 {
		t.Fatalf("expected no new message, got %d", len(sender.sent))
	}

	// Third poll: new entry URL.
	fetcher.entries["https://example.com/a.xml"] = domain.Entry{Title: "T2", URL: "https://example.com/u2"}
	d.RunTick(ctx)
	if len(sender.sent) != 2 || sender.sent[1].content != "T2" {
		t.Fatalf("unexpected sent messages: %+v", sender.sent)
	}
	if got := backend.fingerprints["feedA"]; got != "https://example.com/u2" {
		t.Fatalf("unexpected fingerprint: %q", got)
	}
	if backend.replaceCalls != 3 {
		t.Fatalf("expected one flush per tick, got %d", backend.replaceCalls)
	}
}

func TestRunTickResolveFailureSkipsOnlyThatDestination(t *testing.T) {
	destBroken := domain.Destination{GuildID: "G", ChannelID: "broken"}
	destOK := domain.Destination{GuildID: "G", ChannelID: "C"}
	loader := &fakeLoader{feeds: []domain.FeedConfig{testFeed(destBroken, destOK)}}
	fetcher := &fakeFetcher{entries: map[string]domain.Entry{
		"https://example.com/a.xml": {Title: "T1", URL: "https://example.com/u1"},
	}}
	registry := &fakeRegistry{endpoints: map[string]*webhook.Endpoint{
		endpointKey("feedA", destOK): testEndpoint("C", false),
	}}
	sender := &fakeSender{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, fetcher, registry, sender, backend)
	d.RunTick(context.Background())

	if len(sender.sent) != 1 || sender.sent[0].webhookID != "wh-C" {
		t.Fatalf("expected the healthy destination to receive the message, got %+v", sender.sent)
	}
	if got := backend.fingerprints["feedA"]; got != "https://example.com/u1" {
		t.Fatalf("expected fingerprint update despite destination failure, got %q", got)
	}
}

func TestRunTickFetchFailureIsIsolatedPerFeed(t *testing.T) {
	dest := domain.Destination{GuildID: "G", ChannelID: "C"}
	feedB := domain.FeedConfig{
		ID:           "feedB",
		URL:          "https://example.com/b.xml",
		Destinations: []domain.Destination{dest},
		Template:     &domain.Template{Text: "{{title}}"},
	}
	loader := &fakeLoader{feeds: []domain.FeedConfig{testFeed(dest), feedB}}
	fetcher := &fakeFetcher{
		entries: map[string]domain.Entry{
			"https://example.com/b.xml": {Title: "B1", URL: "https://example.com/b1"},
		},
		errs: map[string]error{
			"https://example.com/a.xml": errors.New("connection refused"),
		},
	}
	registry := &fakeRegistry{endpoints: map[string]*webhook.Endpoint{
		endpointKey("feedB", dest): testEndpoint("C", false),
	}}
	sender := &fakeSender{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, fetcher, registry, sender, backend)
	d.RunTick(context.Background())

	if len(sender.sent) != 1 || sender.sent[0].content != "B1" {
		t.Fatalf("expected feed B to be delivered, got %+v", sender.sent)
	}
	if _, ok := backend.fingerprints["feedA"]; ok {
		t.Fatalf("expected no fingerprint for the failed feed")
	}
	if backend.replaceCalls != 1 {
		t.Fatalf("expected exactly one flush, got %d", backend.replaceCalls)
	}
}

func TestRunTickCrosspostsToAnnouncementChannels(t *testing.T) {
	dest := domain.Destination{GuildID: "G", ChannelID: "news"}
	loader := &fakeLoader{feeds: []domain.FeedConfig{testFeed(dest)}}
	fetcher := &fakeFetcher{entries: map[string]domain.Entry{
		"https://example.com/a.xml": {Title: "T1", URL: "https://example.com/u1"},
	}}
	registry := &fakeRegistry{endpoints: map[string]*webhook.Endpoint{
		endpointKey("feedA", dest): testEndpoint("news", true),
	}}
	sender := &fakeSender{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, fetcher, registry, sender, backend)
	d.RunTick(context.Background())

	if len(sender.crossposts) != 1 || sender.crossposts[0] != "news/m1" {
		t.Fatalf("unexpected crossposts: %+v", sender.crossposts)
	}
}

func TestRunTickEnsurePassRunsOnlyOnConfigChange(t *testing.T) {
	loader := &fakeLoader{feeds: []domain.FeedConfig{}, changed: true}
	registry := &fakeRegistry{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, &fakeFetcher{}, registry, &fakeSender{}, backend)
	ctx := context.Background()

	d.RunTick(ctx)
	d.RunTick(ctx)

	if registry.ensureCalls != 1 {
		t.Fatalf("expected one ensure pass, got %d", registry.ensureCalls)
	}
}

func TestRunTickSkipsWhenPreviousTickStillRunning(t *testing.T) {
	loader := &fakeLoader{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, &fakeFetcher{}, &fakeRegistry{}, &fakeSender{}, backend)

	d.running.Lock()
	d.RunTick(context.Background())
	d.running.Unlock()

	if loader.calls != 0 {
		t.Fatalf("expected overlapping tick to be skipped, loader called %d times", loader.calls)
	}
}

func TestRunTickEmptyTemplateSendsNothingButAdvancesFingerprint(t *testing.T) {
	dest := domain.Destination{GuildID: "G", ChannelID: "C"}
	feed := testFeed(dest)
	feed.Template = nil

	loader := &fakeLoader{feeds: []domain.FeedConfig{feed}}
	fetcher := &fakeFetcher{entries: map[string]domain.Entry{
		"https://example.com/a.xml": {Title: "T1", URL: "https://example.com/u1"},
	}}
	registry := &fakeRegistry{endpoints: map[string]*webhook.Endpoint{
		endpointKey("feedA", dest): testEndpoint("C", false),
	}}
	sender := &fakeSender{}
	backend := &memoryFingerprintBackend{fingerprints: map[string]string{}}

	d := newTestDispatcher(loader, fetcher, registry, sender, backend)
	d.RunTick(context.Background())

	if len(sender.sent) != 0 {
		t.Fatalf("expected no sends for empty payload, got %+v", sender.sent)
	}
	if got := backend.fingerprints["feedA"]; got != "https://example.com/u1" {
		t.Fatalf("expected fingerprint update, got %q", got)
	}
}
