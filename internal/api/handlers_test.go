package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bilgisen/newskit/internal/ai"
	"github.com/bilgisen/newskit/internal/cache"
	"github.com/bilgisen/newskit/internal/config"
	"github.com/bilgisen/newskit/internal/feed"
	"github.com/bilgisen/newskit/internal/middleware"
	"github.com/bilgisen/newskit/internal/models"
	"github.com/bilgisen/newskit/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	items []models.NewsItem
	err   error
	opts  models.GenerateOptions
}

func (s *stubSource) FetchTrendingNews(_ context.Context, opts models.GenerateOptions) ([]models.NewsItem, error) {
	s.opts = opts
	return s.items, s.err
}

type stubGenerator struct {
	content *models.GeneratedContent
	images  []models.GroundingImage
	err     error
	opts    models.GenerateOptions
}

func (s *stubGenerator) GenerateContent(_ context.Context, _ models.NewsItem, opts models.GenerateOptions) (*models.GeneratedContent, error) {
	s.opts = opts
	return s.content, s.err
}

func (s *stubGenerator) SearchImages(_ context.Context, _ models.NewsItem) ([]models.GroundingImage, error) {
	return s.images, s.err
}

type stubArchiver struct {
	data []byte
	err  error
}

func (s *stubArchiver) Upload(_ context.Context, data []byte) (string, error) {
	s.data = data
	return "exports/x.json", s.err
}

type testEnv struct {
	app      *fiber.App
	cfg      *config.Config
	source   *stubSource
	gen      *stubGenerator
	archiver *stubArchiver
	store    *storage.ProjectStore
}

func newTestEnv(t *testing.T, adminKey string) *testEnv {
	t.Helper()
	cfg := &config.Config{DefaultLanguage: "en", DefaultRegion: "global", AdminAPIKey: adminKey}

	backend, err := storage.NewBackend("file", filepath.Join(t.TempDir(), "projects.json"))
	require.NoError(t, err)
	store := storage.NewProjectStore(backend)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{
		cfg:      cfg,
		source:   &stubSource{},
		gen:      &stubGenerator{},
		archiver: &stubArchiver{},
		store:    store,
	}
	news := feed.NewProcessor(env.source, cache.NewMemoryStore(""), time.Hour)
	h := NewHandlers(cfg, news, env.gen, store, env.archiver)

	env.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	env.app.Use(middleware.RequestID())
	SetupRoutes(env.app, h, prometheus.NewRegistry())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *http.Response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

type newsResponse struct {
	Session string            `json:"session"`
	Added   int               `json:"added"`
	Total   int               `json:"total"`
	Items   []models.NewsItem `json:"items"`
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/api/v1/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestFetchNewsDeduplicatesPerSession(t *testing.T) {
	env := newTestEnv(t, "")
	env.source.items = []models.NewsItem{{ID: "1", Title: "Budget passes"}, {ID: "2", Title: "Minister resigns"}}

	resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", map[string]any{"language": "tr", "count": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := resp.Header.Get(SessionHeader)
	require.NotEmpty(t, session)
	first := decode[newsResponse](t, resp)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, "tr", env.source.opts.Language)
	assert.Equal(t, 2, env.source.opts.Count)

	env.source.items = []models.NewsItem{{ID: "3", Title: "Budget passes"}, {ID: "4", Title: "Summit opens"}}
	resp = env.do(t, http.MethodPost, "/api/v1/news/fetch", nil, SessionHeader, session)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[newsResponse](t, resp)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Summit opens", second.Items[0].Title)
	assert.Equal(t, "en", env.source.opts.Language)

	resp = env.do(t, http.MethodGet, "/api/v1/news", nil, SessionHeader, session)
	list := decode[newsResponse](t, resp)
	assert.Equal(t, 3, list.Total)

	resp = env.do(t, http.MethodDelete, "/api/v1/news", nil, SessionHeader, session)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/v1/news", nil, SessionHeader, session)
	assert.Equal(t, 0, decode[newsResponse](t, resp).Total)
}

func TestSessionSurvivesConnectionReuse(t *testing.T) {
	env := newTestEnv(t, "")
	env.source.items = []models.NewsItem{{ID: "1", Title: "Budget passes"}}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = env.app.Listener(ln) }()
	t.Cleanup(func() { _ = env.app.Shutdown() })

	client := &http.Client{Transport: &http.Transport{MaxConnsPerHost: 1, MaxIdleConnsPerHost: 1}}
	base := "http://" + ln.Addr().String()
	send := func(method, path, session string) newsResponse {
		req, err := http.NewRequest(method, base+path, nil)
		require.NoError(t, err)
		req.Header.Set(SessionHeader, session)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return decode[newsResponse](t, resp)
	}

	assert.Equal(t, 1, send(http.MethodPost, "/api/v1/news/fetch", "session-AAAA").Added)
	assert.Equal(t, 0, send(http.MethodGet, "/api/v1/news", "session-BBBB").Total)
	assert.Equal(t, 0, send(http.MethodGet, "/api/v1/news", "session-CCCC").Total)

	list := send(http.MethodGet, "/api/v1/news", "session-AAAA")
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "Budget passes", list.Items[0].Title)
}

func TestFetchNewsRegionDefault(t *testing.T) {
	env := newTestEnv(t, "")
	env.cfg.DefaultRegion = "europe"

	resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", map[string]any{"region": "global"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "global", env.source.opts.Region)

	resp = env.do(t, http.MethodPost, "/api/v1/news/fetch", map[string]any{"topic": "sports"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "europe", env.source.opts.Region)

	env.cfg.DefaultRegion = ""
	resp = env.do(t, http.MethodPost, "/api/v1/news/fetch", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.DefaultRegion, env.source.opts.Region)
}

func TestFetchNewsValidation(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", map[string]any{"count": 99})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestAIErrorClasses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "rate limited", err: &ai.APIError{StatusCode: 429, Message: "quota"}, status: http.StatusTooManyRequests},
		{name: "max retries", err: ai.ErrMaxRetries, status: http.StatusTooManyRequests},
		{name: "other", err: errors.New("bad gateway"), status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.source.err = tt.err
			env.gen.err = tt.err

			resp := env.do(t, http.MethodPost, "/api/v1/news/fetch", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode[map[string]string](t, resp)
			assert.NotContains(t, body["error"], "quota")

			resp = env.do(t, http.MethodPost, "/api/v1/content/generate", map[string]any{"news_item": map[string]any{"title": "x"}})
			assert.Equal(t, tt.status, resp.StatusCode)

			resp = env.do(t, http.MethodPost, "/api/v1/images/search", map[string]any{"news_item": map[string]any{"title": "x"}})
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestGenerateContent(t *testing.T) {
	env := newTestEnv(t, "")
	env.gen.content = &models.GeneratedContent{Summary: "s", Script: "[VISUAL: flag] Text"}

	resp := env.do(t, http.MethodPost, "/api/v1/content/generate", map[string]any{
		"news_item": map[string]any{"id": "n1", "title": "Vote"},
		"options":   map[string]any{"language": "de"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[struct {
		Content models.GeneratedContent `json:"content"`
		Cues    []models.ScriptCue      `json:"cues"`
	}](t, resp)
	assert.Equal(t, "s", body.Content.Summary)
	assert.Equal(t, []models.ScriptCue{{Kind: "VISUAL", Text: "flag"}}, body.Cues)
	assert.Equal(t, "de", env.gen.opts.Language)

	resp = env.do(t, http.MethodPost, "/api/v1/content/generate", map[string]any{"news_item": map[string]any{}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSearchImages(t *testing.T) {
	env := newTestEnv(t, "")
	env.gen.images = []models.GroundingImage{{URL: "https://a", Title: "A", Source: "a"}}

	resp := env.do(t, http.MethodPost, "/api/v1/images/search", map[string]any{"news_item": map[string]any{"title": "Vote"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Total  int                     `json:"total"`
		Images []models.GroundingImage `json:"images"`
	}](t, resp)
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, "https://a", body.Images[0].URL)
}

func TestProjectLifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/projects", map[string]any{
		"news_item": map[string]any{"id": "n1", "title": "Vote"},
		"content":   map[string]any{"summary": "s", "script": "x"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	saved := decode[models.SavedProject](t, resp)
	require.NotEmpty(t, saved.ID)

	resp = env.do(t, http.MethodGet, "/api/v1/projects/"+saved.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[models.SavedProject](t, resp)
	assert.Equal(t, "Vote", got.NewsItem.Title)

	saved.Images = []models.GroundingImage{{URL: "https://img"}, {URL: "https://img"}}
	resp = env.do(t, http.MethodPost, "/api/v1/projects", saved)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/projects", nil)
	list := decode[struct {
		Total int                   `json:"total"`
		Items []models.SavedProject `json:"items"`
	}](t, resp)
	assert.Equal(t, 1, list.Total)
	assert.Len(t, list.Items[0].Images, 1)

	resp = env.do(t, http.MethodDelete, "/api/v1/projects/"+saved.ID, nil)
	assert.Equal(t, http.StatusPreconditionRequired, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/api/v1/projects/"+saved.ID+"?confirm=true", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/v1/projects/"+saved.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSaveProjectRequiresTitle(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodPost, "/api/v1/projects", map[string]any{"id": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExportImport(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	_, err := env.store.Save(ctx, models.SavedProject{ID: "existing", NewsItem: models.NewsItem{Title: "Old"}})
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/api/v1/projects/export", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
	exported := decode[[]models.SavedProject](t, resp)
	require.Len(t, exported, 1)

	resp = env.do(t, http.MethodGet, "/api/v1/projects/export?id=existing", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "newskit-project-existing.json")

	payload := []models.SavedProject{
		{ID: "existing", NewsItem: models.NewsItem{Title: "Old"}},
		{ID: "new", NewsItem: models.NewsItem{Title: "New"}},
	}
	resp = env.do(t, http.MethodPost, "/api/v1/projects/import", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, storage.ImportResult{Added: 1, Skipped: 1}, decode[storage.ImportResult](t, resp))

	resp = env.do(t, http.MethodPost, "/api/v1/projects/import", `{"id": "single"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	all, err := env.store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestArchiveProjects(t *testing.T) {
	env := newTestEnv(t, "admin")

	resp := env.do(t, http.MethodPost, "/api/v1/admin/projects/archive", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/v1/admin/projects/archive", nil, "X-API-Key", "admin")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "exports/x.json", body["key"])
	assert.JSONEq(t, `[]`, string(env.archiver.data))
}

func TestUnknownEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/api/v1/nothing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	resp := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
