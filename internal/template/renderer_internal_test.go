package template

import (
	"testing"

	"feedrelay/internal/domain"
)

func strPtr(s string) *string {
	return &s
}

func TestRenderNilTemplateOrEntryYieldsEmptyPayload(t *testing.T) {
	entry := &domain.Entry{Title: "T"}

	payload := Render(nil, entry)
	if !payload.IsEmpty() {
		t.Fatalf("expected empty payload for nil template")
	}

	payload = Render(&domain.Template{Text: "{{title}}"}, nil)
	if !payload.IsEmpty() {
		t.Fatalf("expected empty payload for nil entry")
	}
}

func TestRenderSubstitutesFirstOccurrenceOnly(t *testing.T) {
	tmpl := &domain.Template{Text: "{{title}} {{title}}"}
	entry := &domain.Entry{Title: "X"}

	payload := Render(tmpl, entry)
	if payload.Content != "X {{title}}" {
		t.Fatalf("unexpected content: %q", payload.Content)
	}
}

func TestRenderLeavesUnknownPlaceholders(t *testing.T) {
	tmpl := &domain.Template{Text: "{{nope}} {{title}}"}
	entry := &domain.Entry{Title: "X"}

	payload := Render(tmpl, entry)
	if payload.Content != "{{nope}} X" {
		t.Fatalf("unexpected content: %q", payload.Content)
	}
}

func TestRenderDropsEmptyBlocks(t *testing.T) {
	tmpl := &domain.Template{
		Blocks: []domain.BlockSpec{
			{},
			{Fields: []domain.FieldSpec{{Name: "only name"}}},
			{Title: strPtr("{{title}}")},
		},
	}
	entry := &domain.Entry{Title: "T"}

	payload := Render(tmpl, entry)
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}
	if payload.Embeds[0].Title != "T" {
		t.Fatalf("unexpected embed title: %q", payload.Embeds[0].Title)
	}
}

func TestRenderHonorsAtMostTenBlocks(t *testing.T) {
	blocks := make([]domain.BlockSpec, 12)
	for i := range blocks {
		blocks[i].Title = strPtr("{{title}}")
	}

	payload := Render(&domain.Template{Blocks: blocks}, &domain.Entry{Title: "T"})
	if len(payload.Embeds) != 10 {
		t.Fatalf("expected 10 embeds, got %d", len(payload.Embeds))
	}
}

func TestRenderBlockProperties(t *testing.T) {
	tmpl := &domain.Template{
		Blocks: []domain.BlockSpec{{
			Author:      strPtr("{{author}}"),
			Color:       strPtr("#ff0000"),
			Description: strPtr("{{content}}"),
			Footer:      strPtr("via {{url}}"),
			Image:       strPtr("{{imageUrl}}"),
			Thumbnail:   strPtr("{{imageUrl}}"),
			Timestamp:   strPtr("{{publishedAt}}"),
			Title:       strPtr("{{title}}"),
			URL:         strPtr("{{url}}"),
			Fields: []domain.FieldSpec{
				{Name: "Author", Value: "{{author}}", Inline: true},
				{Name: "", Value: "dropped"},
				{Name: "dropped", Value: ""},
			},
		}},
	}
	entry := &domain.Entry{
		Title:       "T",
		URL:         "https://example.com/post",
		Author:      "A",
		Content:     "C",
		PublishedAt: "2024-05-01T12:00:00Z",
		ImageURL:    "https://example.com/i.png",
	}

	payload := Render(tmpl, entry)
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected 1 embed, got %d", len(payload.Embeds))
	}

	embed := payload.Embeds[0]
	if embed.Author == nil || embed.Author.Name != "A" {
		t.Fatalf("unexpected author: %+v", embed.Author)
	}
	if embed.Color != 0xff0000 {
		t.Fatalf("unexpected color: %d", embed.Color)
	}
	if embed.Description != "C" {
		t.Fatalf("unexpected description: %q", embed.Description)
	}
	if embed.Footer == nil || embed.Footer.Text != "via https://example.com/post" {
		t.Fatalf("unexpected footer: %+v", embed.Footer)
	}
	if embed.Image == nil || embed.Image.URL != "https://example.com/i.png" {
		t.Fatalf("unexpected image: %+v", embed.Image)
	}
	if embed.Thumbnail == nil || embed.Thumbnail.URL != "https://example.com/i.png" {
		t.Fatalf("unexpected thumbnail: %+v", embed.Thumbnail)
	}
	if embed.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected timestamp: %q", embed.Timestamp)
	}
	if embed.Title != "T" || embed.URL != "https://example.com/post" {
		t.Fatalf("unexpected title/url: %q %q", embed.Title, embed.URL)
	}
	if len(embed.Fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(embed.Fields))
	}
	if embed.Fields[0].Name != "Author" || embed.Fields[0].Value != "A" || !embed.Fields[0].Inline {
		t.Fatalf("unexpected field: %+v", embed.Fields[0])
	}
}

func TestRenderUnparsableColorStillCountsAsProperty(t *testing.T) {
	tmpl := &domain.Template{
		Blocks: []domain.BlockSpec{{Color: strPtr("not a color")}},
	}

	payload := Render(tmpl, &domain.Entry{})
	if len(payload.Embeds) != 1 {
		t.Fatalf("expected block with only a bad color to survive, got %d embeds", len(payload.Embeds))
	}
	if payload.Embeds[0].Color != 0 {
		t.Fatalf("expected color to be dropped, got %d", payload.Embeds[0].Color)
	}
}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"#ff0000", 0xff0000, true},
		{"15258703", 15258703, true},
		{" 16711680 ", 16711680, true},
		{"#zzz", 0, false},
		{"-5", 0, false},
		{"red", 0, false},
	}

	for _, c := range cases {
		got, ok := parseColor(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("parseColor(%q) = (%d, %v), want (%d, %v)", c.in, got, ok, c.want, c.ok)
		}
	}
}
