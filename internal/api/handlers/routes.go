package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/chatbot-admin/backend/internal/middleware/validation"
)

type Routes struct {
	Documents  *DocumentHandler
	Scrape     *ScrapeHandler
	Search     *SearchHandler
	Chat       *ChatHandler
	WebSocket  *WebSocketHandler
	Health     *HealthHandler
	Validation validation.Config
}

// Register mounts the API under api, normally the /api/v1 group.
func (r Routes) Register(api fiber.Router) {
	requireQuery := validation.RequireQuery(r.Validation)
	requireURL := validation.RequireURL()

	bots := api.Group("/bots/:botId")
	bots.Post("/documents", r.Documents.CreateDocument)
	bots.Get("/documents", r.Documents.ListDocuments)
	bots.Post("/documents/upload", r.Documents.UploadDocument)
	bots.Get("/documents/:id", r.Documents.GetDocument)
	bots.Post("/process-documents", r.Documents.ProcessBotDocuments)
	bots.Post("/scrape", requireURL, r.Scrape.ScrapeWebsite)
	bots.Get("/search", requireQuery, r.Search.Search)
	bots.Get("/context", requireQuery, r.Search.Context)

	api.Put("/documents/:id/status", r.Documents.UpdateStatus)
	api.Delete("/documents/:id", r.Documents.DeleteDocument)
	api.Post("/documents/:id/process", r.Documents.ProcessDocument)

	api.Post("/scrape/preview", requireURL, r.Scrape.PreviewWebsite)
	api.Post("/chat", r.Chat.HandleChat)

	if r.WebSocket != nil {
		api.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		api.Get("/ws/chat", websocket.New(r.WebSocket.HandleConnection))
	}

	api.Get("/health", r.Health.Health)
	api.Get("/ready", r.Health.Ready)
}
