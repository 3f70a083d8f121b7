package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chatbot-admin/backend/internal/ingestion"
	"github.com/chatbot-admin/backend/internal/scraper"
)

type scrapeRequest struct {
	URL string `json:"url"`
}

type ScrapeHandler struct {
	processor *ingestion.Processor
	scraper   *scraper.Client
}

func NewScrapeHandler(processor *ingestion.Processor, client *scraper.Client) *ScrapeHandler {
	return &ScrapeHandler{
		processor: processor,
		scraper:   client,
	}
}

// ScrapeWebsite fetches the page and stores its summary as a web document.
func (h *ScrapeHandler) ScrapeWebsite(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := h.processor.ProcessPage(c.UserContext(), c.Params("botId"), req.URL)
	if err != nil {
		return respondError(c, err, "Failed to scrape website content")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// PreviewWebsite runs the same analysis without storing anything.
func (h *ScrapeHandler) PreviewWebsite(c *fiber.Ctx) error {
	var req scrapeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	analysis, err := h.scraper.Scrape(c.UserContext(), req.URL)
	if err != nil {
		return respondError(c, err, "Failed to scrape website content")
	}

	return c.JSON(fiber.Map{
		"data": analysis,
	})
}
