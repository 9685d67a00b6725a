package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bilgisen/newskit/internal/models"
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

type PostProcessor struct {
	maxTitles       int
	maxSocialRunes  int
	maxListItems    int
	minSummaryRunes int
}

func NewPostProcessor() *PostProcessor {
	return &PostProcessor{
		maxTitles:       5,
		maxSocialRunes:  280,
		maxListItems:    5,
		minSummaryRunes: 20,
	}
}

// ProcessContent validates and cleans an AI-generated content kit
func (p *PostProcessor) ProcessContent(c *models.GeneratedContent) error {
	c.Summary = p.cleanText(c.Summary)
	c.SummaryEnglish = p.cleanText(c.SummaryEnglish)
	c.Script = p.cleanScript(c.Script)
	c.SocialPost = p.cleanText(c.SocialPost)

	if len([]rune(c.Summary)) < p.minSummaryRunes {
		return fmt.Errorf("summary too short, minimum %d characters required", p.minSummaryRunes)
	}
	if c.Script == "" {
		return fmt.Errorf("missing required field: script")
	}
	if c.SummaryEnglish == "" {
		c.SummaryEnglish = c.Summary
	}

	if runes := []rune(c.SocialPost); len(runes) > p.maxSocialRunes {
		c.SocialPost = string(runes[:p.maxSocialRunes-3]) + "..."
	}

	c.Titles = p.cleanList(c.Titles, p.maxTitles)
	c.VisualPrompts = p.cleanList(c.VisualPrompts, p.maxListItems)
	c.ImageQueries = p.cleanList(c.ImageQueries, p.maxListItems)
	return nil
}

// cleanText removes control characters and normalizes whitespace
func (p *PostProcessor) cleanText(s string) string {
	s = controlChars.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// cleanScript keeps line breaks between script beats
func (p *PostProcessor) cleanScript(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = controlChars.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// cleanList trims entries, drops blanks and case-insensitive duplicates, and caps the length
func (p *PostProcessor) cleanList(items []string, max int) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = p.cleanText(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if len(out) == max {
			break
		}
	}
	return out
}
