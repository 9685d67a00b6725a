package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bilgisen/newskit/internal/ai"
	"github.com/bilgisen/newskit/internal/config"
	"github.com/bilgisen/newskit/internal/feed"
	"github.com/bilgisen/newskit/internal/logger"
	"github.com/bilgisen/newskit/internal/middleware"
	"github.com/bilgisen/newskit/internal/models"
	"github.com/bilgisen/newskit/internal/storage"
	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
)

// SessionHeader scopes the news board to one browser tab
const SessionHeader = "X-Session-ID"

// ContentGenerator is implemented by ai.GeminiClient
type ContentGenerator interface {
	GenerateContent(ctx context.Context, item models.NewsItem, opts models.GenerateOptions) (*models.GeneratedContent, error)
	SearchImages(ctx context.Context, item models.NewsItem) ([]models.GroundingImage, error)
}

// ExportArchiver is implemented by storage.Archiver
type ExportArchiver interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

type Handlers struct {
	config    *config.Config
	news      *feed.Processor
	generator ContentGenerator
	projects  *storage.ProjectStore
	archiver  ExportArchiver
}

type generateRequest struct {
	NewsItem models.NewsItem        `json:"news_item"`
	Options  models.GenerateOptions `json:"options"`
}

type imageSearchRequest struct {
	NewsItem models.NewsItem `json:"news_item"`
}

// NewHandlers wires the handlers. archiver may be nil when R2 is not configured.
func NewHandlers(cfg *config.Config, news *feed.Processor, generator ContentGenerator, projects *storage.ProjectStore, archiver ExportArchiver) *Handlers {
	return &Handlers{
		config:    cfg,
		news:      news,
		generator: generator,
		projects:  projects,
		archiver:  archiver,
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
		"archive": h.archiver != nil,
	})
}

// FetchNews handles POST /news/fetch
func (h *Handlers) FetchNews(c *fiber.Ctx) error {
	session := sessionID(c)
	opts := *middleware.Validated[models.GenerateOptions](c)
	if strings.TrimSpace(opts.Region) == "" {
		opts.Region = h.config.DefaultRegion
	}
	opts = opts.WithDefaults(h.config.DefaultLanguage)

	items, err := h.news.FetchTrending(c.UserContext(), session, opts)
	if err != nil {
		return aiFailure(c, err, "Failed to fetch trending news")
	}

	return c.JSON(fiber.Map{
		"session": session,
		"added":   len(items),
		"items":   items,
	})
}

// ListNews handles GET /news
func (h *Handlers) ListNews(c *fiber.Ctx) error {
	session := sessionID(c)
	items := h.news.List(session)
	return c.JSON(fiber.Map{
		"session": session,
		"total":   len(items),
		"items":   items,
	})
}

// ResetNews handles DELETE /news
func (h *Handlers) ResetNews(c *fiber.Ctx) error {
	session := sessionID(c)
	if err := h.news.Reset(c.UserContext(), session); err != nil {
		logger.Get().Error().Err(err).Str("session", session).Msg("Error resetting news board")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to reset news",
		})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateContent handles POST /content/generate
func (h *Handlers) GenerateContent(c *fiber.Ctx) error {
	req := middleware.Validated[generateRequest](c)
	opts := req.Options.WithDefaults(h.config.DefaultLanguage)

	content, err := h.generator.GenerateContent(c.UserContext(), req.NewsItem, opts)
	if err != nil {
		return aiFailure(c, err, "Failed to generate content")
	}

	return c.JSON(fiber.Map{
		"news_item": req.NewsItem,
		"content":   content,
		"cues":      content.ScriptCues(),
	})
}

// SearchImages handles POST /images/search
func (h *Handlers) SearchImages(c *fiber.Ctx) error {
	req := middleware.Validated[imageSearchRequest](c)

	images, err := h.generator.SearchImages(c.UserContext(), req.NewsItem)
	if err != nil {
		return aiFailure(c, err, "Failed to search images")
	}
	if images == nil {
		images = []models.GroundingImage{}
	}

	return c.JSON(fiber.Map{
		"total":  len(images),
		"images": images,
	})
}

// ListProjects handles GET /projects
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	projects, err := h.projects.List(c.UserContext())
	if err != nil {
		return storageFailure(c, err, "Failed to list projects")
	}
	return c.JSON(fiber.Map{
		"total": len(projects),
		"items": projects,
	})
}

// GetProject handles GET /projects/:id
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	project, err := h.projects.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return storageFailure(c, err, "Failed to get project")
	}
	return c.JSON(project)
}

// SaveProject handles POST /projects
func (h *Handlers) SaveProject(c *fiber.Ctx) error {
	req := middleware.Validated[models.SavedProject](c)

	project, err := h.projects.Save(c.UserContext(), *req)
	if err != nil {
		return storageFailure(c, err, "Failed to save project")
	}

	logger.Get().Info().Str("id", project.ID).Str("title", project.NewsItem.Title).Msg("Project saved")
	return c.JSON(project)
}

// DeleteProject handles DELETE /projects/:id?confirm=true
func (h *Handlers) DeleteProject(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := h.projects.Delete(c.UserContext(), id, c.QueryBool("confirm")); err != nil {
		return storageFailure(c, err, "Failed to delete project")
	}

	logger.Get().Info().Str("id", id).Msg("Project deleted")
	return c.JSON(fiber.Map{
		"status":  "deleted",
		"message": "Project deleted successfully",
	})
}

// ExportProjects handles GET /projects/export[?id=]
func (h *Handlers) ExportProjects(c *fiber.Ctx) error {
	id := c.Query("id")
	data, err := h.projects.Export(c.UserContext(), id)
	if err != nil {
		return storageFailure(c, err, "Failed to export projects")
	}

	filename := fmt.Sprintf("newskit-projects-%s.json", time.Now().Format("2006-01-02"))
	if id != "" {
		filename = fmt.Sprintf("newskit-project-%s.json", id)
	}
	c.Attachment(filename)
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
	return c.Send(data)
}

// ImportProjects handles POST /projects/import with a raw JSON array body
func (h *Handlers) ImportProjects(c *fiber.Ctx) error {
	result, err := h.projects.Import(c.UserContext(), c.Body())
	if err != nil {
		return storageFailure(c, err, "Failed to import projects")
	}

	logger.Get().Info().Int("added", result.Added).Int("skipped", result.Skipped).Msg("Projects imported")
	return c.JSON(result)
}

// ArchiveProjects handles POST /admin/projects/archive
func (h *Handlers) ArchiveProjects(c *fiber.Ctx) error {
	if h.archiver == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Archive storage is not configured",
		})
	}

	data, err := h.projects.Export(c.UserContext(), "")
	if err != nil {
		return storageFailure(c, err, "Failed to export projects")
	}
	key, err := h.archiver.Upload(c.UserContext(), data)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error archiving projects")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to archive projects",
		})
	}

	return c.JSON(fiber.Map{
		"status": "archived",
		"key":    key,
	})
}

// sessionID reads the session header, issuing a new ID when absent. The header
// value is copied because it keys state that outlives the request.
func sessionID(c *fiber.Ctx) string {
	id := fiberutils.CopyString(c.Get(SessionHeader))
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(SessionHeader, id)
	return id
}

// aiFailure maps provider errors to the two user-facing classes
func aiFailure(c *fiber.Ctx, err error, message string) error {
	log := logger.Get().Error().Err(err).Str("request_id", middleware.RequestIDFromCtx(c))
	if ai.IsRateLimited(err) || errors.Is(err, ai.ErrMaxRetries) {
		log.Msg("AI provider rate limited the request")
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "The AI service is busy, please try again in a moment",
		})
	}

	log.Msg(message)
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error": message,
	})
}

func storageFailure(c *fiber.Ctx, err error, message string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Project not found",
		})
	case errors.Is(err, storage.ErrConfirmationRequired):
		return c.Status(fiber.StatusPreconditionRequired).JSON(fiber.Map{
			"error": "Deleting a project requires confirm=true",
		})
	case errors.Is(err, storage.ErrNotArray):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Import file must contain a JSON array of projects",
		})
	}

	logger.Get().Error().Err(err).Str("request_id", middleware.RequestIDFromCtx(c)).Msg(message)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": message,
	})
}
