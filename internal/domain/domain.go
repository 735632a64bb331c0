package domain

// Destination identifies exactly one delivery target.
type Destination struct {
	GuildID   string
	ChannelID string
}

// FeedConfig is one polled feed with its delivery targets and template.
// Immutable within a tick; a config reload produces a fresh slice.
type FeedConfig struct {
	ID           string
	URL          string
	Name         string
	AvatarURL    string
	Destinations []Destination
	Template     *Template
}

// Entry is the normalized newest item of a feed. Every field is always
// present; normalization substitutes an empty string for anything missing.
type Entry struct {
	Title       string
	URL         string
	Author      string
	Content     string
	PublishedAt string
	ImageURL    string
}

// Fields maps placeholder names to entry values for template substitution.
func (e *Entry) Fields() map[string]string {
	return map[string]string{
		"title":       e.Title,
		"url":         e.URL,
		"author":      e.Author,
		"content":     e.Content,
		"publishedAt": e.PublishedAt,
		"imageUrl":    e.ImageURL,
	}
}

// Template is a destination-agnostic message template. Block properties are
// pointers so an absent property and an empty one can be told apart when
// deciding whether a block is empty.
type Template struct {
	Text   string      `toml:"text"`
	Blocks []BlockSpec `toml:"blocks"`
}

type BlockSpec struct {
	Author      *string     `toml:"author"`
	Color       *string     `toml:"color"`
	Description *string     `toml:"description"`
	Footer      *string     `toml:"footer"`
	Image       *string     `toml:"image"`
	Thumbnail   *string     `toml:"thumbnail"`
	Timestamp   *string     `toml:"timestamp"`
	Title       *string     `toml:"title"`
	URL         *string     `toml:"url"`
	Fields      []FieldSpec `toml:"fields"`
}

type FieldSpec struct {
	Name   string `toml:"name"`
	Value  string `toml:"value"`
	Inline bool   `toml:"inline"`
}
