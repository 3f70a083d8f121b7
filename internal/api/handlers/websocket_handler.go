package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/chat"
	"github.com/chatbot-admin/backend/pkg/logger"
)

const wsTurnTimeout = 60 * time.Second

type wsMessage struct {
	Type      string         `json:"type"`
	BotID     string         `json:"bot_id"`
	Content   string         `json:"content"`
	ImageURL  string         `json:"image_url"`
	Messages  []chat.Message `json:"messages"`
	BotConfig chat.Overrides `json:"bot_config"`
}

// wsConn is the part of *websocket.Conn a chat session uses.
type wsConn interface {
	ReadJSON(v interface{}) error
	WriteJSON(v interface{}) error
	Close() error
}

type WebSocketHandler struct {
	engine *chat.Engine
}

func NewWebSocketHandler(engine *chat.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

// HandleConnection answers "chat" messages until the client disconnects. A
// bare content string is appended to the connection's running history.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	h.serve(c)
}

func (h *WebSocketHandler) serve(c wsConn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	var history []chat.Message

	for {
		var msg wsMessage
		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "chat" {
			continue
		}

		prev := history
		req := chat.Request{BotID: msg.BotID, BotConfig: msg.BotConfig}
		if len(msg.Messages) > 0 {
			history = msg.Messages
		} else if msg.Content != "" {
			history = append(history, chat.Message{Role: "user", Content: msg.Content, ImageURL: msg.ImageURL})
		}
		req.Messages = history

		reply, err := h.streamResponse(c, req)
		if err != nil {
			logger.Error("Failed to stream response", zap.String("bot_id", msg.BotID), zap.Error(err))
			h.sendError(c, errorMessage(err))
			history = prev
			continue
		}

		history = append(history, chat.Message{Role: "assistant", Content: reply})
	}
}

func (h *WebSocketHandler) streamResponse(c wsConn, req chat.Request) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), wsTurnTimeout)
	defer cancel()

	if err := h.sendChunk(c, "status", "Generating response..."); err != nil {
		return "", err
	}

	resp, err := h.engine.Reply(ctx, req)
	if err != nil {
		return "", err
	}

	words := splitIntoWords(resp.Message)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return "", err
		}
	}

	if err := h.sendComplete(c, resp); err != nil {
		return "", err
	}

	return resp.Message, nil
}

func (h *WebSocketHandler) sendChunk(c wsConn, msgType, content string) error {
	return c.WriteJSON(map[string]interface{}{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c wsConn, resp *chat.Response) error {
	return c.WriteJSON(map[string]interface{}{
		"type":             "complete",
		"model":            resp.Model,
		"usage":            resp.Usage,
		"grounded":         resp.Grounded,
		"image_analysis":   resp.ImageAnalysis,
		"response_time_ms": resp.ResponseTime,
	})
}

func (h *WebSocketHandler) sendError(c wsConn, errorMsg string) {
	_ = c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}

// errorMessage hides internal causes the same way respondError does.
func errorMessage(err error) string {
	if statusFor(err) >= 500 {
		return "Failed to generate response"
	}
	return err.Error()
}

// splitIntoWords splits on spaces and keeps each newline as its own token.
func splitIntoWords(text string) []string {
	words := []string{}
	start := -1

	for i, char := range text {
		if char == ' ' || char == '\n' {
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
			if char == '\n' {
				words = append(words, "\n")
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}

	if start >= 0 {
		words = append(words, text[start:])
	}

	return words
}
