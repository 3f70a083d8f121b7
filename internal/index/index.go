// Package index is the per-bot document index: the lifecycle rules for
// KnowledgeDocument records on top of a pluggable Store.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/logger"
)

var (
	ErrNotFound        = errors.New("document not found")
	ErrInvalidStatus   = errors.New("invalid document status")
	ErrEmptyContent    = errors.New("indexed document must have content")
	ErrInvalidDocument = errors.New("invalid document")
)

const unknownProcessingError = "unknown error"

// Store persists documents. Implementations return ErrNotFound for missing
// ids and list a bot's documents newest first.
type Store interface {
	Insert(ctx context.Context, doc *models.KnowledgeDocument) error
	Get(ctx context.Context, id string) (*models.KnowledgeDocument, error)
	ListByBot(ctx context.Context, botID string) ([]models.KnowledgeDocument, error)
	Update(ctx context.Context, doc *models.KnowledgeDocument) error
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByBot(ctx context.Context, botID string) (int, error)
}

type CreateRequest struct {
	BotID           string                `json:"bot_id"`
	Title           string                `json:"title"`
	Content         string                `json:"content"`
	FileType        string                `json:"file_type"`
	FileURL         string                `json:"file_url"`
	FileSize        int64                 `json:"file_size"`
	Status          models.DocumentStatus `json:"status"`
	ProcessingError string                `json:"processing_error"`
}

type Index struct {
	store Store
	now   func() time.Time
	log   *zap.Logger
}

func New(store Store) *Index {
	return &Index{
		store: store,
		now:   time.Now,
		log:   logger.Named("index"),
	}
}

func (x *Index) Create(ctx context.Context, req CreateRequest) (*models.KnowledgeDocument, error) {
	botID := strings.TrimSpace(req.BotID)
	if botID == "" {
		return nil, fmt.Errorf("%w: bot id is required", ErrInvalidDocument)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidDocument)
	}

	status := req.Status
	if status == "" {
		status = models.StatusProcessing
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	content := normalize.StripControl(req.Content)
	if status == models.StatusIndexed && content == "" {
		return nil, ErrEmptyContent
	}

	processingErr := strings.TrimSpace(req.ProcessingError)
	if status == models.StatusError && processingErr == "" {
		return nil, fmt.Errorf("%w: processing error is required for status %q", ErrInvalidDocument, status)
	}

	fileType := strings.TrimSpace(req.FileType)
	if fileType == "" {
		fileType = models.FileTypeText
	}

	fileSize := req.FileSize
	if fileSize <= 0 {
		fileSize = int64(len(content))
	}

	now := x.now()
	doc := &models.KnowledgeDocument{
		ID:              uuid.New().String(),
		BotID:           botID,
		Title:           title,
		Content:         content,
		FileType:        fileType,
		FileURL:         strings.TrimSpace(req.FileURL),
		FileSize:        fileSize,
		Status:          status,
		ProcessingError: processingErr,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := x.store.Insert(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	x.log.Info("Document created",
		zap.String("doc_id", doc.ID),
		zap.String("bot_id", doc.BotID),
		zap.String("file_type", doc.FileType),
		zap.String("status", string(doc.Status)),
	)

	return doc, nil
}

// GetByBot lists the bot's documents, newest first.
func (x *Index) GetByBot(ctx context.Context, botID string) ([]models.KnowledgeDocument, error) {
	docs, err := x.store.ListByBot(ctx, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Get returns the document only when it belongs to botID.
func (x *Index) Get(ctx context.Context, botID, id string) (*models.KnowledgeDocument, error) {
	doc, err := x.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.BotID != botID {
		return nil, ErrNotFound
	}
	return doc, nil
}

// Lookup fetches a document by id alone. Used by routes that are already
// scoped by document id.
func (x *Index) Lookup(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	return x.store.Get(ctx, id)
}

func (x *Index) UpdateContent(ctx context.Context, id, content string, status models.DocumentStatus) (*models.KnowledgeDocument, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	content = normalize.StripControl(content)
	if status == models.StatusIndexed && content == "" {
		return nil, ErrEmptyContent
	}

	doc, err := x.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	doc.Content = content
	doc.FileSize = int64(len(content))
	setStatus(doc, status, "")
	doc.UpdatedAt = x.now()

	if err := x.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document content: %w", err)
	}

	x.log.Debug("Document content updated",
		zap.String("doc_id", doc.ID),
		zap.String("status", string(doc.Status)),
		zap.Int64("file_size", doc.FileSize),
	)

	return doc, nil
}

func (x *Index) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus) (*models.KnowledgeDocument, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	doc, err := x.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if status == models.StatusIndexed && doc.Content == "" {
		return nil, ErrEmptyContent
	}

	setStatus(doc, status, "")
	doc.UpdatedAt = x.now()

	if err := x.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to update document status: %w", err)
	}

	x.log.Info("Document status updated",
		zap.String("doc_id", doc.ID),
		zap.String("status", string(status)),
	)

	return doc, nil
}

// MarkError moves a document to the error status with a diagnostic message.
func (x *Index) MarkError(ctx context.Context, id, message string) (*models.KnowledgeDocument, error) {
	doc, err := x.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	setStatus(doc, models.StatusError, message)
	doc.UpdatedAt = x.now()

	if err := x.store.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to mark document error: %w", err)
	}

	x.log.Warn("Document marked as failed",
		zap.String("doc_id", doc.ID),
		zap.String("bot_id", doc.BotID),
		zap.String("error", doc.ProcessingError),
	)

	return doc, nil
}

func (x *Index) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := x.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}
	return deleted, nil
}

// DeleteByBot removes every document of a bot and reports how many went.
func (x *Index) DeleteByBot(ctx context.Context, botID string) (int, error) {
	n, err := x.store.DeleteByBot(ctx, botID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bot documents: %w", err)
	}

	x.log.Info("Bot documents deleted", zap.String("bot_id", botID), zap.Int("count", n))
	return n, nil
}

// setStatus keeps ProcessingError in step with Status: set for error,
// cleared otherwise.
func setStatus(doc *models.KnowledgeDocument, status models.DocumentStatus, message string) {
	doc.Status = status
	if status != models.StatusError {
		doc.ProcessingError = ""
		return
	}

	message = strings.TrimSpace(normalize.StripControl(message))
	switch {
	case message != "":
		doc.ProcessingError = message
	case doc.ProcessingError == "":
		doc.ProcessingError = unknownProcessingError
	}
}
