package models

import "time"

// SavedProject is a user-saved headline together with whatever was generated for it
type SavedProject struct {
	ID       string            `json:"id"`
	NewsItem NewsItem          `json:"news_item"`
	Content  *GeneratedContent `json:"content,omitempty"`
	SavedAt  time.Time         `json:"saved_at"`
	Images   []GroundingImage  `json:"images"`
}
