package api

import (
	"github.com/bilgisen/newskit/internal/middleware"
	"github.com/bilgisen/newskit/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, gatherer prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)

	// News board, scoped by X-Session-ID
	news := api.Group("/news")
	{
		news.Get("", h.ListNews)
		news.Post("/fetch", middleware.ValidateRequest[models.GenerateOptions](), h.FetchNews)
		news.Delete("", h.ResetNews)
	}

	api.Post("/content/generate", middleware.ValidateRequest[generateRequest](), h.GenerateContent)
	api.Post("/images/search", middleware.ValidateRequest[imageSearchRequest](), h.SearchImages)

	projects := api.Group("/projects")
	{
		projects.Get("", h.ListProjects)
		projects.Post("", middleware.ValidateRequest[models.SavedProject](), h.SaveProject)
		projects.Get("/export", h.ExportProjects)
		projects.Post("/import", h.ImportProjects)
		projects.Get("/:id", h.GetProject)
		projects.Delete("/:id", h.DeleteProject)
	}

	admin := api.Group("/admin", middleware.AdminOnly(h.config.AdminAPIKey))
	{
		admin.Post("/projects/archive", h.ArchiveProjects)
	}

	api.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
