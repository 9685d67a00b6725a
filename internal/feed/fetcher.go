package feed

import (
	"context"
	"fmt"

	"github.com/bilgisen/newskit/internal/models"
)

// Source produces trending headlines. ai.GeminiClient implements it.
type Source interface {
	FetchTrendingNews(ctx context.Context, opts models.GenerateOptions) ([]models.NewsItem, error)
}

type Fetcher struct {
	source Source
}

func NewFetcher(source Source) *Fetcher {
	return &Fetcher{source: source}
}

// Fetch retrieves one batch of headlines from the source
func (f *Fetcher) Fetch(ctx context.Context, opts models.GenerateOptions) ([]models.NewsItem, error) {
	if f.source == nil {
		return nil, fmt.Errorf("no news source configured")
	}
	items, err := f.source.FetchTrendingNews(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch trending news: %w", err)
	}
	return items, nil
}
