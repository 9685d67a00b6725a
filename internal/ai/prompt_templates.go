package ai

import (
	"fmt"
	"strings"

	"github.com/bilgisen/newskit/internal/models"
)

// PromptTemplates contains the prompt templates for each provider call
var PromptTemplates = struct {
	NewsList    string
	ContentKit  string
	ImageSearch string
}{
	NewsList: `You are a news desk editor tracking what is trending right now.
List the %d most discussed %s news stories for the region "%s" from the last 24 hours.

Rules:
- Each headline must be a distinct story; do not repeat a story with different wording.
- Write the title and snippet in %s.
- The snippet is one or two neutral sentences, no opinion.
- Include the publishing outlet, article url and publication date when known.

Respond with a JSON array of objects with these fields:
- title (string)
- snippet (string)
- source (string, optional)
- url (string, optional)
- published_date (string, optional, ISO 8601)`,

	ContentKit: `You are a senior video producer and social media editor.
Build a content kit for the news story below. The audience speaks %s.

1. summary: 3-4 sentence neutral summary in %s
2. summary_english: the same summary in English
3. script: a 60-90 second narration script in %s. Mark every shot or sound cue in square
   brackets, e.g. [VISUAL: aerial view of the capital] or [SFX: crowd noise]
4. social_post: one post under 280 characters in %s with 2-3 hashtags
5. titles: 5 catchy video titles in %s
6. visual_prompts: 3-5 prompts describing illustrative images to generate
7. image_queries: 3-5 short English web search queries for real photos of the story

Respond with a single JSON object with exactly these fields.

News story:
Title: %s

Snippet: %s

Source: %s`,

	ImageSearch: `Find recent news photographs and image galleries that illustrate this story.
Prefer reputable news agencies and official sources.

Story: %s
Context: %s`,
}

// BuildNewsListPrompt creates the prompt for the trending headline list
func BuildNewsListPrompt(opts models.GenerateOptions) string {
	return fmt.Sprintf(PromptTemplates.NewsList,
		opts.Count,
		escapeForPrompt(opts.Topic),
		escapeForPrompt(opts.Region),
		opts.LanguageName())
}

// BuildContentPrompt creates the prompt for a content kit
func BuildContentPrompt(item models.NewsItem, opts models.GenerateOptions) string {
	lang := opts.LanguageName()
	source := item.Source
	if source == "" {
		source = "unknown"
	}
	return fmt.Sprintf(PromptTemplates.ContentKit,
		lang, lang, lang, lang, lang,
		escapeForPrompt(item.Title),
		escapeForPrompt(item.Snippet),
		escapeForPrompt(source))
}

// BuildImageSearchPrompt creates the grounded search prompt for image leads
func BuildImageSearchPrompt(item models.NewsItem) string {
	return fmt.Sprintf(PromptTemplates.ImageSearch,
		escapeForPrompt(item.Title),
		escapeForPrompt(item.Snippet))
}

// escapeForPrompt escapes special characters for use in prompts
func escapeForPrompt(s string) string {
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

var stringArray = map[string]any{
	"type":  "ARRAY",
	"items": map[string]any{"type": "STRING"},
}

var newsListSchema = map[string]any{
	"type": "ARRAY",
	"items": map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"title":          map[string]any{"type": "STRING"},
			"snippet":        map[string]any{"type": "STRING"},
			"source":         map[string]any{"type": "STRING"},
			"url":            map[string]any{"type": "STRING"},
			"published_date": map[string]any{"type": "STRING"},
		},
		"required": []string{"title", "snippet"},
	},
}

var contentKitSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"summary":         map[string]any{"type": "STRING"},
		"summary_english": map[string]any{"type": "STRING"},
		"script":          map[string]any{"type": "STRING"},
		"social_post":     map[string]any{"type": "STRING"},
		"titles":          stringArray,
		"visual_prompts":  stringArray,
		"image_queries":   stringArray,
	},
	"required": []string{"summary", "summary_english", "script", "social_post", "titles", "visual_prompts", "image_queries"},
}
