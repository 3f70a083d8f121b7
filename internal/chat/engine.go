// Package chat runs one grounded conversation turn: it looks up the bot,
// retrieves knowledge for the latest user message and asks the LLM.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/llm"
	"github.com/chatbot-admin/backend/internal/metrics"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/logger"
)

const (
	DefaultSystemPrompt = "You are a helpful assistant."
	FallbackReply       = "Sorry, I could not generate a response."
)

var (
	ErrNoMessages     = errors.New("either messages array or message string is required")
	ErrInvalidMessage = errors.New("invalid message format")
	ErrInvalidRole    = errors.New("invalid message role")
	ErrMissingBot     = errors.New("bot id is required")
)

type BotResolver interface {
	GetBot(ctx context.Context, id string) (*models.Bot, error)
}

type ContextProvider interface {
	ContextForQuery(ctx context.Context, botID, query string) (string, error)
}

type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url,omitempty"`
}

// Overrides replace the bot's model settings for a single turn.
type Overrides struct {
	Model       string  `json:"model,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Request carries either a full Messages history or a single widget Message.
type Request struct {
	BotID     string    `json:"bot_id"`
	Messages  []Message `json:"messages,omitempty"`
	Message   string    `json:"message,omitempty"`
	BotConfig Overrides `json:"bot_config"`
}

type Response struct {
	Message       string    `json:"message"`
	Model         string    `json:"model"`
	FinishReason  string    `json:"finish_reason"`
	Usage         llm.Usage `json:"usage"`
	Grounded      bool      `json:"grounded"`
	ImageAnalysis string    `json:"image_analysis"`
	ResponseTime  int64     `json:"response_time_ms"`
}

// Defaults apply when neither the request nor the bot sets a value.
type Defaults struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Engine struct {
	bots      BotResolver
	knowledge ContextProvider
	llm       Completer
	defaults  Defaults
	log       *zap.Logger
}

func NewEngine(bots BotResolver, knowledge ContextProvider, completer Completer, defaults Defaults) *Engine {
	return &Engine{
		bots:      bots,
		knowledge: knowledge,
		llm:       completer,
		defaults:  defaults,
		log:       logger.Named("chat"),
	}
}

// Reply answers the latest user message of req.
func (e *Engine) Reply(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.BotID) == "" {
		return nil, ErrMissingBot
	}

	messages, err := requestMessages(req)
	if err != nil {
		return nil, err
	}

	bot, err := e.bots.GetBot(ctx, req.BotID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bot %s: %w", req.BotID, err)
	}

	prompt, grounded, imageNote := e.buildPrompt(ctx, bot, messages)

	completion := llm.CompletionRequest{
		Messages:    toLLMMessages(messages, prompt),
		Model:       firstString(req.BotConfig.Model, bot.Model, e.defaults.Model),
		Temperature: firstFloat(req.BotConfig.Temperature, bot.Temperature, e.defaults.Temperature),
		MaxTokens:   firstInt(req.BotConfig.MaxTokens, bot.MaxTokens, e.defaults.MaxTokens),
	}

	resp, err := e.llm.Complete(ctx, completion)
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}

	reply := resp.Content
	if strings.TrimSpace(reply) == "" {
		reply = FallbackReply
	}

	label := "ungrounded"
	if grounded {
		label = "grounded"
	}
	metrics.ChatTurns.WithLabelValues(label).Inc()

	e.log.Info("Chat turn completed",
		zap.String("bot_id", req.BotID),
		zap.Bool("grounded", grounded),
		zap.Int("messages", len(messages)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("elapsed", time.Since(start)),
	)

	return &Response{
		Message:       reply,
		Model:         resp.Model,
		FinishReason:  resp.FinishReason,
		Usage:         resp.Usage,
		Grounded:      grounded,
		ImageAnalysis: imageNote,
		ResponseTime:  time.Since(start).Milliseconds(),
	}, nil
}

// buildPrompt returns the system prompt to splice into the conversation, or
// "" when there is neither grounding nor an image note to add.
func (e *Engine) buildPrompt(ctx context.Context, bot *models.Bot, messages []Message) (prompt string, grounded bool, imageNote string) {
	last, ok := lastUserMessage(messages)
	if !ok {
		return "", false, ""
	}

	block, err := e.knowledge.ContextForQuery(ctx, bot.ID, last.Content)
	if err != nil {
		e.log.Warn("Document search failed, continuing without context",
			zap.String("bot_id", bot.ID),
			zap.Error(err),
		)
		block = ""
	}

	if last.ImageURL != "" {
		imageNote = ImageNote(last.ImageURL)
	}

	if block == "" && imageNote == "" {
		return "", false, ""
	}

	prompt = bot.SystemPrompt
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultSystemPrompt
	}
	if block != "" {
		prompt += "\n\n" + block
	}
	if imageNote != "" {
		prompt += "\n\nImage Analysis: " + imageNote
	}

	return prompt, block != "", imageNote
}

// ImageNote is the acknowledgement given for an image the model cannot see.
func ImageNote(url string) string {
	return fmt.Sprintf("I can see you've shared an image (%s), but I'm unable to view or analyze images directly. "+
		"Please describe what you see in the image, and I'll be happy to help you with any questions about it!", url)
}

func requestMessages(req Request) ([]Message, error) {
	if len(req.Messages) > 0 {
		for i, m := range req.Messages {
			if m.Role == "" || strings.TrimSpace(m.Content) == "" {
				return nil, fmt.Errorf("%w: message %d", ErrInvalidMessage, i)
			}
			switch m.Role {
			case llm.RoleSystem, llm.RoleUser, llm.RoleAssistant:
			default:
				return nil, fmt.Errorf("%w: %q", ErrInvalidRole, m.Role)
			}
		}
		return req.Messages, nil
	}

	if strings.TrimSpace(req.Message) != "" {
		return []Message{{Role: llm.RoleUser, Content: req.Message}}, nil
	}

	return nil, ErrNoMessages
}

func lastUserMessage(messages []Message) (Message, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleUser {
			return messages[i], true
		}
	}
	return Message{}, false
}

// toLLMMessages flattens image attachments into text and splices prompt in as
// the system message, replacing an existing one or prepending it.
func toLLMMessages(messages []Message, prompt string) []llm.Message {
	out := make([]llm.Message, 0, len(messages)+1)
	replaced := false

	for _, m := range messages {
		content := m.Content
		if m.Role == llm.RoleUser && m.ImageURL != "" {
			content += " [User has shared 1 image(s). Please acknowledge this and ask them to describe what they see.]"
		}
		if prompt != "" && m.Role == llm.RoleSystem && !replaced {
			content = prompt
			replaced = true
		}
		out = append(out, llm.Message{Role: m.Role, Content: content})
	}

	if prompt != "" && !replaced {
		out = append([]llm.Message{{Role: llm.RoleSystem, Content: prompt}}, out...)
	}
	return out
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...float32) float32 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstInt(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
