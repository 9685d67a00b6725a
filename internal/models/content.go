package models

import (
	"regexp"
	"strings"
)

// GeneratedContent is the content kit produced for exactly one NewsItem
type GeneratedContent struct {
	Summary        string   `json:"summary"`
	SummaryEnglish string   `json:"summary_english"`
	Script         string   `json:"script"`
	SocialPost     string   `json:"social_post"`
	Titles         []string `json:"titles"`
	VisualPrompts  []string `json:"visual_prompts"`
	ImageQueries   []string `json:"image_queries"`
	Language       string   `json:"language,omitempty"`
}

// ScriptCue is a bracketed production note inside a script, e.g. [VISUAL: map of the region]
type ScriptCue struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

var cuePattern = regexp.MustCompile(`\[([^\[\]]+)\]`)

// ScriptCues extracts the bracket annotations from the script in order.
// A cue without a "KIND:" prefix is reported with kind "NOTE".
func (g GeneratedContent) ScriptCues() []ScriptCue {
	matches := cuePattern.FindAllStringSubmatch(g.Script, -1)
	cues := make([]ScriptCue, 0, len(matches))
	for _, m := range matches {
		body := strings.TrimSpace(m[1])
		if body == "" {
			continue
		}
		kind, text, found := strings.Cut(body, ":")
		if !found {
			cues = append(cues, ScriptCue{Kind: "NOTE", Text: body})
			continue
		}
		cues = append(cues, ScriptCue{
			Kind: strings.ToUpper(strings.TrimSpace(kind)),
			Text: strings.TrimSpace(text),
		})
	}
	return cues
}

// GroundingImage is an image reference taken from a search-grounded AI response
type GroundingImage struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Source string `json:"source"`
}

// MaxGroundingImages caps the image leads kept per search or project
const MaxGroundingImages = 10

// DedupeImages drops blank and repeated urls and keeps at most MaxGroundingImages entries
func DedupeImages(images []GroundingImage) []GroundingImage {
	seen := make(map[string]struct{}, len(images))
	out := make([]GroundingImage, 0, min(len(images), MaxGroundingImages))
	for _, img := range images {
		if img.URL == "" {
			continue
		}
		if _, dup := seen[img.URL]; dup {
			continue
		}
		seen[img.URL] = struct{}{}
		out = append(out, img)
		if len(out) == MaxGroundingImages {
			break
		}
	}
	return out
}
