package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/chat"
	"github.com/chatbot-admin/backend/pkg/logger"
)

type ChatHandler struct {
	engine *chat.Engine
}

func NewChatHandler(engine *chat.Engine) *ChatHandler {
	return &ChatHandler{
		engine: engine,
	}
}

// HandleChat accepts a messages history or a single widget message.
func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	var req chat.Request
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}

	resp, err := h.engine.Reply(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Failed to generate response")
	}

	return c.JSON(resp)
}
