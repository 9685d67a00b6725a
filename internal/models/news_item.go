package models

import "strings"

// NewsItem is a trending headline returned by the news fetch call
type NewsItem struct {
	ID            string `json:"id"`
	Title         string `json:"title" validate:"required"`
	Snippet       string `json:"snippet"`
	Source        string `json:"source,omitempty"`
	URL           string `json:"url,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
}

// NormalizedTitle is the key used to detect duplicate headlines.
func (n NewsItem) NormalizedTitle() string {
	return strings.ToLower(strings.Join(strings.Fields(n.Title), " "))
}
