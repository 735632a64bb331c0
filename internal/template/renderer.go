// Package template expands {{field}} placeholders from a normalized entry
// into a webhook payload.
package template

import (
	"strconv"
	"strings"

	"feedrelay/internal/discord"
	"feedrelay/internal/domain"
)

// At most this many blocks of a template are honored; extras are dropped.
const maxBlocks = 10

// Render produces the payload for one entry. A nil template or entry
// yields an empty payload, not an error.
func Render(tmpl *domain.Template, entry *domain.Entry) *discord.WebhookPayload {
	payload := &discord.WebhookPayload{}
	if tmpl == nil || entry == nil {
		return payload
	}

	fields := entry.Fields()

	if tmpl.Text != "" {
		payload.Content = substitute(tmpl.Text, fields)
	}

	for i := range tmpl.Blocks {
		if i >= maxBlocks {
			break
		}

		embed, ok := renderBlock(&tmpl.Blocks[i], fields)
		if !ok {
			continue
		}

		payload.Embeds = append(payload.Embeds, embed)
	}

	return payload
}

// substitute replaces the first occurrence of each placeholder only;
// repeated occurrences of the same token stay literal. Unknown names are
// left untouched.
func substitute(s string, fields map[string]string) string {
	for name, value := range fields {
		s = strings.Replace(s, "{{"+name+"}}", value, 1)
	}

	return s
}

// renderBlock assembles one embed. A block with no recognized properties
// and no valid field pairs reports ok=false and is not emitted.
func renderBlock(block *domain.BlockSpec, fields map[string]string) (discord.Embed, bool) {
	var embed discord.Embed
	empty := true

	if block.Author != nil {
		embed.Author = &discord.EmbedAuthor{Name: substitute(*block.Author, fields)}
		empty = false
	}
	if block.Color != nil {
		if color, ok := parseColor(substitute(*block.Color, fields)); ok {
			embed.Color = color
		}
		empty = false
	}
	if block.Description != nil {
		embed.Description = substitute(*block.Description, fields)
		empty = false
	}
	if block.Footer != nil {
		embed.Footer = &discord.EmbedFooter{Text: substitute(*block.Footer, fields)}
		empty = false
	}
	if block.Image != nil {
		embed.Image = &discord.EmbedImage{URL: substitute(*block.Image, fields)}
		empty = false
	}
	if block.Thumbnail != nil {
		embed.Thumbnail = &discord.EmbedThumbnail{URL: substitute(*block.Thumbnail, fields)}
		empty = false
	}
	if block.Timestamp != nil {
		embed.Timestamp = substitute(*block.Timestamp, fields)
		empty = false
	}
	if block.Title != nil {
		embed.Title = substitute(*block.Title, fields)
		empty = false
	}
	if block.URL != nil {
		embed.URL = substitute(*block.URL, fields)
		empty = false
	}

	for _, field := range block.Fields {
		if field.Name == "" || field.Value == "" {
			continue
		}

		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:   substitute(field.Name, fields),
			Value:  substitute(field.Value, fields),
			Inline: field.Inline,
		})
		empty = false
	}

	return embed, !empty
}

// parseColor accepts "#RRGGBB" hex or a plain decimal integer. Anything
// else drops the color value; the property still counts as present.
func parseColor(s string) (int, bool) {
	s = strings.TrimSpace(s)

	if hexDigits, ok := strings.CutPrefix(s, "#"); ok {
		color, err := strconv.ParseInt(hexDigits, 16, 32)
		if err != nil {
			return 0, false
		}

		return int(color), true
	}

	color, err := strconv.Atoi(s)
	if err != nil || color < 0 {
		return 0, false
	}

	return color, true
}
