package feed

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/bilgisen/newskit/internal/models"
)

// Parser handles cleaning and normalizing news items
type Parser struct {
	htmlTagRegex *regexp.Regexp
}

func NewParser() *Parser {
	return &Parser{
		htmlTagRegex: regexp.MustCompile(`<[^>]*>`),
	}
}

// CleanHTML removes HTML tags and normalizes whitespace
func (p *Parser) CleanHTML(input string) string {
	cleaned := p.htmlTagRegex.ReplaceAllString(input, " ")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// NormalizeNewsItem cleans a single news item
func (p *Parser) NormalizeNewsItem(item models.NewsItem) models.NewsItem {
	return models.NewsItem{
		ID:            strings.TrimSpace(item.ID),
		Title:         p.CleanHTML(item.Title),
		Snippet:       p.CleanHTML(item.Snippet),
		Source:        p.CleanHTML(item.Source),
		URL:           strings.TrimSpace(item.URL),
		PublishedDate: strings.TrimSpace(item.PublishedDate),
	}
}

// ValidateNewsItem checks if the news item has the required fields
func (p *Parser) ValidateNewsItem(item models.NewsItem) error {
	if item.ID == "" {
		return fmt.Errorf("missing required field: id")
	}
	if item.Title == "" {
		return fmt.Errorf("missing required field: title")
	}
	return nil
}

// ProcessNewsItems normalizes items in order and drops the invalid ones
func (p *Parser) ProcessNewsItems(items []models.NewsItem) ([]models.NewsItem, []error) {
	var valid []models.NewsItem
	var errs []error
	for i, item := range items {
		normalized := p.NormalizeNewsItem(item)
		if err := p.ValidateNewsItem(normalized); err != nil {
			errs = append(errs, fmt.Errorf("invalid news item %d: %w", i, err))
			continue
		}
		valid = append(valid, normalized)
	}
	return valid, errs
}
