package models

import (
	"errors"
	"time"
)

var ErrBotNotFound = errors.New("bot not found")

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusIndexed    DocumentStatus = "indexed"
	StatusError      DocumentStatus = "error"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusIndexed, StatusError:
		return true
	}
	return false
}

// File types a KnowledgeDocument can carry.
const (
	FileTypeText = "text"
	FileTypeTXT  = "txt"
	FileTypeMD   = "md"
	FileTypeCSV  = "csv"
	FileTypeJSON = "json"
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
	FileTypeWeb  = "web"
)

// KnowledgeDocument is one ingested unit of knowledge owned by exactly one bot.
type KnowledgeDocument struct {
	ID              string         `json:"id"`
	BotID           string         `json:"bot_id"`
	Title           string         `json:"title"`
	Content         string         `json:"content"`
	FileType        string         `json:"file_type"`
	FileURL         string         `json:"file_url,omitempty"`
	FileSize        int64          `json:"file_size"`
	Status          DocumentStatus `json:"status"`
	ProcessingError string         `json:"processing_error,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Bot is the read-only view of a bot's model configuration needed for chat.
type Bot struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	Model        string    `json:"model"`
	Temperature  float32   `json:"temperature"`
	MaxTokens    int       `json:"max_tokens"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
