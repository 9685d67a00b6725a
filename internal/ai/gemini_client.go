package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bilgisen/newskit/internal/logger"
	"github.com/bilgisen/newskit/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// Operation names used for logging and metrics
const (
	OpFetchNews       = "fetch_news"
	OpGenerateContent = "generate_content"
	OpSearchImages    = "search_images"
)

// Recorder receives call outcomes. metrics.Metrics implements it.
type Recorder interface {
	ObserveCall(operation, outcome string)
	ObserveRetry(operation string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveCall(string, string) {}
func (nopRecorder) ObserveRetry(string)        {}

type GeminiClient struct {
	client   *resty.Client
	apiKey   string
	model    string
	baseURL  string
	retry    RetryPolicy
	post     *PostProcessor
	recorder Recorder
}

type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	Tools            []geminiTool      `json:"tools,omitempty"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"google_search,omitempty"`
}

type generationConfig struct {
	Temperature      float64        `json:"temperature,omitempty"`
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
	Error *geminiError `json:"error"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

type geminiErrorEnvelope struct {
	Error *geminiError `json:"error"`
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	return &GeminiClient{
		client:   resty.New().SetTimeout(60 * time.Second),
		apiKey:   apiKey,
		model:    model,
		baseURL:  DefaultBaseURL,
		retry:    DefaultRetryPolicy(),
		post:     NewPostProcessor(),
		recorder: nopRecorder{},
	}
}

// WithBaseURL points the client at another endpoint, e.g. a proxy or a test server
func (g *GeminiClient) WithBaseURL(base string) *GeminiClient {
	if base != "" {
		g.baseURL = strings.TrimRight(base, "/")
	}
	return g
}

// WithTimeout sets the per-request HTTP timeout
func (g *GeminiClient) WithTimeout(d time.Duration) *GeminiClient {
	if d > 0 {
		g.client.SetTimeout(d)
	}
	return g
}

// WithRetryPolicy replaces the rate-limit retry policy
func (g *GeminiClient) WithRetryPolicy(p RetryPolicy) *GeminiClient {
	g.retry = p
	return g
}

// WithRecorder attaches a metrics recorder
func (g *GeminiClient) WithRecorder(r Recorder) *GeminiClient {
	if r != nil {
		g.recorder = r
	}
	return g
}

// FetchTrendingNews asks the model for the current top headlines on the topic
func (g *GeminiClient) FetchTrendingNews(ctx context.Context, opts models.GenerateOptions) ([]models.NewsItem, error) {
	req := geminiRequest{
		Contents: userPrompt(BuildNewsListPrompt(opts)),
		GenerationConfig: &generationConfig{
			Temperature:      0.4,
			ResponseMimeType: "application/json",
			ResponseSchema:   newsListSchema,
		},
	}

	resp, err := withRetry(ctx, g, OpFetchNews, req)
	if err != nil {
		return nil, fmt.Errorf("error calling Gemini API: %w", err)
	}

	items, err := parseNewsList(firstText(resp))
	if err != nil {
		return nil, fmt.Errorf("error parsing Gemini response: %w", err)
	}
	return items, nil
}

// GenerateContent produces the content kit for a single headline
func (g *GeminiClient) GenerateContent(ctx context.Context, item models.NewsItem, opts models.GenerateOptions) (*models.GeneratedContent, error) {
	req := geminiRequest{
		Contents: userPrompt(BuildContentPrompt(item, opts)),
		GenerationConfig: &generationConfig{
			Temperature:      0.7,
			ResponseMimeType: "application/json",
			ResponseSchema:   contentKitSchema,
		},
	}

	resp, err := withRetry(ctx, g, OpGenerateContent, req)
	if err != nil {
		return nil, fmt.Errorf("error calling Gemini API: %w", err)
	}

	var content models.GeneratedContent
	if err := json.Unmarshal([]byte(cleanJSON(firstText(resp))), &content); err != nil {
		return nil, fmt.Errorf("error parsing Gemini response: %w", err)
	}
	content.Language = opts.Language

	if err := g.post.ProcessContent(&content); err != nil {
		return nil, fmt.Errorf("invalid generated content: %w", err)
	}
	return &content, nil
}

// SearchImages runs a search-grounded request and collects the web sources as image leads
func (g *GeminiClient) SearchImages(ctx context.Context, item models.NewsItem) ([]models.GroundingImage, error) {
	req := geminiRequest{
		Contents: userPrompt(BuildImageSearchPrompt(item)),
		Tools:    []geminiTool{{GoogleSearch: &struct{}{}}},
	}

	resp, err := withRetry(ctx, g, OpSearchImages, req)
	if err != nil {
		return nil, fmt.Errorf("error calling Gemini API: %w", err)
	}

	var images []models.GroundingImage
	for _, cand := range resp.Candidates {
		if cand.GroundingMetadata == nil {
			continue
		}
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			images = append(images, models.GroundingImage{
				URL:    chunk.Web.URI,
				Title:  strings.TrimSpace(chunk.Web.Title),
				Source: sourceOf(chunk.Web.Title, chunk.Web.URI),
			})
		}
	}
	return models.DedupeImages(images), nil
}

// withRetry sends req through the retry policy, recording the outcome under op.
func withRetry(ctx context.Context, g *GeminiClient, op string, req geminiRequest) (*geminiResponse, error) {
	log := logger.Component("gemini")
	policy := g.retry
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		g.recorder.ObserveRetry(op)
		log.Warn().
			Err(err).
			Str("operation", op).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Msg("Rate limited by Gemini, backing off")
	}

	resp, err := Retry(ctx, policy, func(ctx context.Context) (*geminiResponse, error) {
		return g.callGeminiAPI(ctx, req)
	})
	switch {
	case err == nil:
		g.recorder.ObserveCall(op, "success")
	case IsRateLimited(err):
		g.recorder.ObserveCall(op, "rate_limited")
	default:
		g.recorder.ObserveCall(op, "error")
	}
	return resp, err
}

func (g *GeminiClient) callGeminiAPI(ctx context.Context, req geminiRequest) (*geminiResponse, error) {
	endpoint := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)

	var result geminiResponse
	var failure geminiErrorEnvelope
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", g.apiKey).
		SetBody(req).
		SetResult(&result).
		SetError(&failure).
		Post(endpoint)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}

	if resp.IsError() {
		apiErr := &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
		if failure.Error != nil {
			apiErr.Status = failure.Error.Status
			apiErr.Message = failure.Error.Message
		}
		return nil, apiErr
	}

	if result.Error != nil {
		return nil, &APIError{
			StatusCode: result.Error.Code,
			Status:     result.Error.Status,
			Message:    result.Error.Message,
		}
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("no content in response")
	}
	return &result, nil
}

func userPrompt(prompt string) []geminiContent {
	return []geminiContent{{
		Role:  "user",
		Parts: []geminiPart{{Text: prompt}},
	}}
}

func firstText(resp *geminiResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	return b.String()
}

// cleanJSON strips the markdown fences the model sometimes adds
func cleanJSON(response string) string {
	clean := strings.TrimSpace(response)
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```json")
		clean = strings.TrimPrefix(clean, "```")
		clean = strings.TrimSuffix(clean, "```")
	}
	return strings.TrimSpace(clean)
}

func parseNewsList(response string) ([]models.NewsItem, error) {
	clean := cleanJSON(response)
	if clean == "" {
		return nil, fmt.Errorf("empty response")
	}

	var items []models.NewsItem
	if err := json.Unmarshal([]byte(clean), &items); err != nil {
		// Some models wrap the array in an object
		var wrapped struct {
			News []models.NewsItem `json:"news"`
		}
		if wrapErr := json.Unmarshal([]byte(clean), &wrapped); wrapErr != nil || wrapped.News == nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		items = wrapped.News
	}

	for i := range items {
		if strings.TrimSpace(items[i].ID) == "" {
			items[i].ID = uuid.NewString()
		}
	}
	return items, nil
}

// sourceOf prefers the publisher domain Gemini puts in the chunk title, since
// grounding URIs point at a Google redirect host.
func sourceOf(title, uri string) string {
	title = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(title)), "www.")
	if title != "" && !strings.ContainsAny(title, " /") && strings.Contains(title, ".") {
		return title
	}
	return hostOf(uri)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}
