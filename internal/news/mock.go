package news

import (
	"fmt"

	"github.com/bissquit/news-digest/internal/domain"
)

const placeholderImage = "https://placehold.co/600x400?text="

// mockArticles returns canned articles so the preview feed and digests keep
// working without provider credentials. Page 1 has three articles naming the
// first and last topic, later pages have two "older" articles.
func mockArticles(topics []string, page int) []domain.Article {
	if len(topics) == 0 {
		return nil
	}
	first := topics[0]
	last := topics[len(topics)-1]

	if page > 1 {
		return []domain.Article{
			{
				Title:       fmt.Sprintf("Page %d: More News on %s", page, first),
				Description: fmt.Sprintf("This is content from page %d.", page),
				URL:         "#",
				ImageURL:    fmt.Sprintf("%sPage+%d", placeholderImage, page),
			},
			{
				Title:       "Older Story",
				Description: "Deep dive into yesterday's events.",
				URL:         "#",
				ImageURL:    placeholderImage + "Older",
			},
		}
	}

	return []domain.Article{
		{
			Title:       "Breaking News in " + first,
			Description: fmt.Sprintf("This is a sample article description about %s to demonstrate the application layout.", first),
			URL:         "#",
			ImageURL:    placeholderImage + "News+Digest",
		},
		{
			Title:       "Latest Updates on " + last,
			Description: "Another sample article showing how the digest will look when fully connected.",
			URL:         "#",
			ImageURL:    placeholderImage + "Update",
		},
		{
			Title:       "Global Trends Report",
			Description: "A generic mock article to ensure your dashboard always has content to display.",
			URL:         "#",
			ImageURL:    placeholderImage + "Trends",
		},
	}
}
