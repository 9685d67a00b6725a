package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bilgisen/newskit/internal/cache"
	"github.com/bilgisen/newskit/internal/logger"
	"github.com/bilgisen/newskit/internal/models"
	"github.com/bilgisen/newskit/internal/utils"
)

// Processor keeps a per-session news board with no duplicate titles
type Processor struct {
	fetcher *Fetcher
	parser  *Parser
	cache   cache.Store
	seenTTL time.Duration
	now     func() time.Time

	mu     sync.Mutex
	boards map[string]*board
}

// board holds one session's headlines and their title keys. Its seen markers in
// the cache live and die with it.
type board struct {
	items   []models.NewsItem
	titles  map[string]struct{}
	expires time.Time
}

func NewProcessor(source Source, store cache.Store, seenTTL time.Duration) *Processor {
	return &Processor{
		fetcher: NewFetcher(source),
		parser:  NewParser(),
		cache:   store,
		seenTTL: seenTTL,
		now:     time.Now,
		boards:  make(map[string]*board),
	}
}

// FetchTrending fetches a batch of headlines and appends the ones the session has not
// seen yet. Only the appended items are returned.
func (p *Processor) FetchTrending(ctx context.Context, session string, opts models.GenerateOptions) ([]models.NewsItem, error) {
	log := logger.Get()
	start := time.Now()

	items, err := p.fetcher.Fetch(ctx, opts)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("session", session).
		Int("total_items", len(items)).
		Dur("fetch_duration", time.Since(start)).
		Msg("Fetched trending news")

	validItems, errs := p.parser.ProcessNewsItems(items)
	if len(errs) > 0 {
		log.Warn().
			Errs("validation_errors", errs).
			Msg("Dropped invalid news items")
	}

	// Sequential per session so two fetches cannot both append the same title
	p.mu.Lock()
	defer p.mu.Unlock()

	b, err := p.boardFor(ctx, session)
	if err != nil {
		return nil, err
	}

	fresh, keys, err := p.filterDuplicates(ctx, session, b, validItems)
	if err != nil {
		return nil, fmt.Errorf("error filtering duplicates: %w", err)
	}

	b.items = append(b.items, fresh...)
	for _, key := range keys {
		b.titles[key] = struct{}{}
	}
	if p.seenTTL > 0 {
		b.expires = p.now().Add(p.seenTTL)
	}

	// The board is authoritative; markers only back it up in the shared cache
	for _, key := range keys {
		if err := p.cache.MarkSeen(ctx, key, p.seenTTL); err != nil {
			log.Warn().Err(err).Str("session", session).Msg("Could not mark headline as seen")
			break
		}
	}

	log.Info().
		Str("session", session).
		Int("new_items", len(fresh)).
		Int("duplicates", len(validItems)-len(fresh)).
		Int("board_size", len(b.items)).
		Msg("Updated news board")

	return fresh, nil
}

// boardFor returns the session's live board. A missing or expired board starts
// over and drops any seen markers left from its previous life.
func (p *Processor) boardFor(ctx context.Context, session string) (*board, error) {
	if b := p.liveBoard(session); b != nil {
		return b, nil
	}
	if err := p.cache.ClearSeen(ctx, sessionScope(session)); err != nil {
		return nil, fmt.Errorf("error clearing stale headlines: %w", err)
	}
	b := &board{titles: make(map[string]struct{})}
	p.boards[session] = b
	return b, nil
}

func (p *Processor) liveBoard(session string) *board {
	b, ok := p.boards[session]
	if !ok {
		return nil
	}
	if !b.expires.IsZero() && !b.expires.After(p.now()) {
		delete(p.boards, session)
		return nil
	}
	return b
}

// filterDuplicates drops titles already on the board, seen by the cache, or repeated
// earlier in the batch. It has no side effects; the caller records the returned keys.
func (p *Processor) filterDuplicates(ctx context.Context, session string, b *board, items []models.NewsItem) ([]models.NewsItem, []string, error) {
	fresh := make([]models.NewsItem, 0, len(items))
	keys := make([]string, 0, len(items))
	batch := make(map[string]struct{}, len(items))

	for _, item := range items {
		key := seenKey(session, item)
		if _, dup := batch[key]; dup {
			continue
		}
		batch[key] = struct{}{}

		if _, onBoard := b.titles[key]; onBoard {
			continue
		}
		seen, err := p.cache.IsSeen(ctx, key)
		if err != nil {
			return nil, nil, err
		}
		if seen {
			logger.Get().Debug().
				Str("session", session).
				Str("title", item.Title).
				Msg("Skipping already seen headline")
			continue
		}
		fresh = append(fresh, item)
		keys = append(keys, key)
	}
	return fresh, keys, nil
}

// List returns a copy of the session's board
func (p *Processor) List(session string) []models.NewsItem {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.liveBoard(session)
	if b == nil {
		return []models.NewsItem{}
	}
	out := make([]models.NewsItem, len(b.items))
	copy(out, b.items)
	return out
}

// Reset forgets the session's board and seen headlines
func (p *Processor) Reset(ctx context.Context, session string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.boards, session)
	if err := p.cache.ClearSeen(ctx, sessionScope(session)); err != nil {
		return fmt.Errorf("error clearing seen headlines: %w", err)
	}
	return nil
}

// sessionScope hashes the client-supplied session so scopes have a fixed length
// and carry no pattern characters.
func sessionScope(session string) string {
	return utils.Hash(session) + ":"
}

func seenKey(session string, item models.NewsItem) string {
	return sessionScope(session) + utils.Hash(item.NormalizedTitle())
}
