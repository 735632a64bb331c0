package discord

import "fmt"

// https://discord.com/developers/docs/resources/channel#channel-object-channel-types
const channelTypeGuildAnnouncement = 5

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// AvatarURL builds the CDN URL for the user's avatar, empty when the user
// has none.
func (u *User) AvatarURL() string {
	if u == nil || u.Avatar == "" {
		return ""
	}

	return fmt.Sprintf("https://cdn.discordapp.com/avatars/%s/%s.png", u.ID, u.Avatar)
}

type Channel struct {
	ID      string `json:"id"`
	Type    int    `json:"type"`
	GuildID string `json:"guild_id"`
}

// IsAnnouncement reports whether messages sent to the channel can be
// published to followers.
func (c *Channel) IsAnnouncement() bool {
	return c != nil && c.Type == channelTypeGuildAnnouncement
}

type Webhook struct {
	ID        string `json:"id"`
	Token     string `json:"token"`
	Name      string `json:"name"`
	ChannelID string `json:"channel_id"`
	User      *User  `json:"user"`
}

type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// WebhookPayload is the rendered message sent through a webhook. Username
// and AvatarURL override how the webhook presents itself per message.
type WebhookPayload struct {
	Content   string  `json:"content,omitempty"`
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// IsEmpty reports whether the payload carries nothing worth sending.
func (p *WebhookPayload) IsEmpty() bool {
	return p == nil || (p.Content == "" && len(p.Embeds) == 0)
}

type Embed struct {
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	Color       int             `json:"color,omitempty"`
	Timestamp   string          `json:"timestamp,omitempty"`
	Author      *EmbedAuthor    `json:"author,omitempty"`
	Footer      *EmbedFooter    `json:"footer,omitempty"`
	Image       *EmbedImage     `json:"image,omitempty"`
	Thumbnail   *EmbedThumbnail `json:"thumbnail,omitempty"`
	Fields      []EmbedField    `json:"fields,omitempty"`
}

type EmbedAuthor struct {
	Name string `json:"name"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedThumbnail struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}
