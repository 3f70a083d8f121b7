package handlers

import (
	"context"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/ingestion"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/logger"
)

// FileSaver persists uploaded bytes and returns a reference to them.
type FileSaver interface {
	Save(ctx context.Context, filename string, data []byte) (string, error)
}

type DocumentHandler struct {
	index       *index.Index
	processor   *ingestion.Processor
	files       FileSaver
	maxFileSize int64
}

func NewDocumentHandler(idx *index.Index, processor *ingestion.Processor, files FileSaver, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{
		index:       idx,
		processor:   processor,
		files:       files,
		maxFileSize: maxFileSize,
	}
}

func (h *DocumentHandler) CreateDocument(c *fiber.Ctx) error {
	var req index.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return badRequest(c, "Invalid request body")
	}
	req.BotID = c.Params("botId")

	doc, err := h.index.Create(c.UserContext(), req)
	if err != nil {
		return respondError(c, err, "Failed to create document")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"document": doc,
	})
}

func (h *DocumentHandler) ListDocuments(c *fiber.Ctx) error {
	docs, err := h.index.GetByBot(c.UserContext(), c.Params("botId"))
	if err != nil {
		return respondError(c, err, "Failed to list documents")
	}

	return c.JSON(fiber.Map{
		"documents": docs,
		"count":     len(docs),
	})
}

func (h *DocumentHandler) GetDocument(c *fiber.Ctx) error {
	doc, err := h.index.Get(c.UserContext(), c.Params("botId"), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to get document")
	}

	return c.JSON(fiber.Map{
		"document": doc,
	})
}

func (h *DocumentHandler) UpdateStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.DocumentStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	doc, err := h.index.UpdateStatus(c.UserContext(), c.Params("id"), req.Status)
	if err != nil {
		return respondError(c, err, "Failed to update document status")
	}

	return c.JSON(fiber.Map{
		"document": doc,
	})
}

func (h *DocumentHandler) DeleteDocument(c *fiber.Ctx) error {
	deleted, err := h.index.Delete(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to delete document")
	}
	if !deleted {
		return respondError(c, index.ErrNotFound, "Failed to delete document")
	}

	return c.JSON(fiber.Map{
		"deleted": true,
		"id":      c.Params("id"),
	})
}

// UploadDocument stores a multipart "file" and indexes its text right away.
// Extraction failures keep the diagnostic placeholder as content.
func (h *DocumentHandler) UploadDocument(c *fiber.Ctx) error {
	header, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "No file uploaded")
	}

	if h.maxFileSize > 0 && header.Size > h.maxFileSize {
		return badRequest(c, fmt.Sprintf("File too large (max %dMB)", h.maxFileSize>>20))
	}

	file, err := header.Open()
	if err != nil {
		return respondError(c, err, "Upload failed")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return respondError(c, err, "Upload failed")
	}

	ctx := c.UserContext()

	var fileURL string
	if h.files != nil {
		fileURL, err = h.files.Save(ctx, header.Filename, data)
		if err != nil {
			return respondError(c, err, "Upload failed")
		}
	}

	result, err := h.processor.ProcessFile(ctx, ingestion.Upload{
		BotID:       c.Params("botId"),
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Title:       c.FormValue("title"),
		FileURL:     fileURL,
		Data:        data,
	}, ingestion.PolicyInline)
	if err != nil {
		return respondError(c, err, "Document processing failed")
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// ProcessDocument re-extracts a stored file. Extraction failures leave the
// document in the error status.
func (h *DocumentHandler) ProcessDocument(c *fiber.Ctx) error {
	result, err := h.processor.ProcessDocument(c.UserContext(), c.Params("id"), ingestion.PolicyMarkError)
	if err != nil {
		if result != nil {
			return c.Status(statusFor(err)).JSON(fiber.Map{
				"error":    "Document processing failed",
				"document": result.Document,
			})
		}
		return respondError(c, err, "Document processing failed")
	}

	return c.JSON(result)
}

func (h *DocumentHandler) ProcessBotDocuments(c *fiber.Ctx) error {
	result, err := h.processor.IndexBotDocuments(c.UserContext(), c.Params("botId"))
	if err != nil {
		return respondError(c, err, "Failed to process bot documents")
	}

	return c.JSON(fiber.Map{
		"message":         fmt.Sprintf("Processed %d documents", result.ProcessedCount),
		"processed_count": result.ProcessedCount,
		"total_documents": result.TotalDocuments,
		"results":         result.Results,
	})
}
