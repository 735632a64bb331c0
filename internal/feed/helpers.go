package feed

import (
	"strings"
	"time"

	"feedrelay/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// latestItem selects the item with the latest parsed publish timestamp.
// The running maximum is seeded with the first item and only a strictly
// later timestamp replaces it, so ties keep first-seen order and a feed
// with no parsable timestamps falls back to the first item.
func latestItem(items []*gofeed.Item) *gofeed.Item {
	latest := items[0]
	latestTime := itemTime(items[0])

	for _, item := range items[1:] {
		if t := itemTime(item); t.After(latestTime) {
			latest = item
			latestTime = t
		}
	}

	return latest
}

func itemTime(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}

	return time.Time{}
}

func normalizeItem(item *gofeed.Item) domain.Entry {
	content := strings.TrimSpace(item.Content)
	if content == "" {
		content = strings.TrimSpace(item.Description)
	}

	return domain.Entry{
		Title:       strings.TrimSpace(item.Title),
		URL:         strings.TrimSpace(item.Link),
		Author:      itemAuthor(item),
		Content:     content,
		PublishedAt: strings.TrimSpace(item.Published),
		ImageURL:    imageURL(item, content),
	}
}

func itemAuthor(item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author == nil {
			continue
		}

		if name := strings.TrimSpace(author.Name); name != "" {
			return name
		}
	}

	if item.Author != nil {
		return strings.TrimSpace(item.Author.Name)
	}

	return ""
}

// imageURL resolves the entry image: the first enclosure URL when present,
// otherwise the first <img src> embedded in the content. Each step that
// finds nothing falls through to the next; the final fallback is empty.
func imageURL(item *gofeed.Item, content string) string {
	if u := enclosureURL(item); u != "" {
		return u
	}

	return imageFromContent(content)
}

func enclosureURL(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}

		if u := strings.TrimSpace(enclosure.URL); u != "" {
			return u
		}
	}

	return ""
}

func imageFromContent(content string) string {
	if content == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}

	src, _ := doc.Find("img").First().Attr("src")

	return strings.TrimSpace(src)
}
