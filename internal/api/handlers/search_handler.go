package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chatbot-admin/backend/internal/retrieval"
)

type SearchHandler struct {
	retriever    *retrieval.Retriever
	defaultLimit int
}

func NewSearchHandler(retriever *retrieval.Retriever, defaultLimit int) *SearchHandler {
	return &SearchHandler{
		retriever:    retriever,
		defaultLimit: defaultLimit,
	}
}

func (h *SearchHandler) Search(c *fiber.Ctx) error {
	query := queryParam(c)
	limit := c.QueryInt("limit", h.defaultLimit)

	results, err := h.retriever.Search(c.UserContext(), c.Params("botId"), query, limit)
	if err != nil {
		return respondError(c, err, "Search failed")
	}

	return c.JSON(fiber.Map{
		"query":   query,
		"results": results,
		"count":   len(results),
	})
}

func (h *SearchHandler) Context(c *fiber.Ctx) error {
	query := queryParam(c)

	block, err := h.retriever.ContextForQuery(c.UserContext(), c.Params("botId"), query)
	if err != nil {
		return respondError(c, err, "Context assembly failed")
	}

	return c.JSON(fiber.Map{
		"query":       query,
		"context":     block,
		"has_context": block != "",
	})
}

// queryParam prefers the value sanitized by the validation middleware.
func queryParam(c *fiber.Ctx) string {
	if q, ok := c.Locals("query").(string); ok {
		return q
	}
	return c.Query("q")
}
