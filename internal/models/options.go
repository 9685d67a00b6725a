package models

import "strings"

const (
	DefaultRegion    = "global"
	DefaultTopic     = "politics"
	DefaultNewsCount = 8
	MaxNewsCount     = 20
)

// Languages maps the supported ISO codes to the name used in prompts
var Languages = map[string]string{
	"en": "English",
	"tr": "Turkish",
	"es": "Spanish",
	"de": "German",
	"fr": "French",
	"ar": "Arabic",
	"hi": "Hindi",
	"pt": "Portuguese",
	"ru": "Russian",
	"ja": "Japanese",
}

// GenerateOptions controls localization of both the news fetch and the content kit
type GenerateOptions struct {
	Language string `json:"language" validate:"omitempty,len=2"`
	Region   string `json:"region" validate:"omitempty,max=64"`
	Topic    string `json:"topic" validate:"omitempty,max=64"`
	Count    int    `json:"count" validate:"omitempty,min=1,max=20"`
}

// WithDefaults fills empty fields. Unknown languages fall back to defaultLang.
func (o GenerateOptions) WithDefaults(defaultLang string) GenerateOptions {
	o.Language = strings.ToLower(strings.TrimSpace(o.Language))
	if _, ok := Languages[o.Language]; !ok {
		o.Language = defaultLang
	}
	if _, ok := Languages[o.Language]; !ok {
		o.Language = "en"
	}
	if strings.TrimSpace(o.Region) == "" {
		o.Region = DefaultRegion
	}
	if strings.TrimSpace(o.Topic) == "" {
		o.Topic = DefaultTopic
	}
	if o.Count <= 0 {
		o.Count = DefaultNewsCount
	}
	if o.Count > MaxNewsCount {
		o.Count = MaxNewsCount
	}
	return o
}

// LanguageName returns the prompt name for the options' language.
func (o GenerateOptions) LanguageName() string {
	if name, ok := Languages[o.Language]; ok {
		return name
	}
	return "English"
}
