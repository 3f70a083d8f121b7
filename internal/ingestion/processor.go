// Package ingestion moves raw sources (uploaded files, stored file references,
// scraped pages) through the normalizer into the document index.
package ingestion

import (
	"context"
	"errors"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/metrics"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/logger"
)

// Policy decides what happens to a document whose PDF or DOCX extraction
// failed.
type Policy int

const (
	// PolicyInline indexes the diagnostic placeholder text.
	PolicyInline Policy = iota
	// PolicyMarkError moves the document to the error status.
	PolicyMarkError
)

const noContentMessage = "no text content could be extracted"

var ErrNoFileReference = errors.New("no file URL found")

type Normalizer interface {
	NormalizeFile(data []byte, filename, declaredType string) (*normalize.NormalizedFile, error)
}

type PageScraper interface {
	Scrape(ctx context.Context, rawURL string) (*normalize.PageAnalysis, error)
}

type Upload struct {
	BotID       string
	Filename    string
	ContentType string
	Title       string
	FileURL     string
	Data        []byte
}

type FileResult struct {
	Document *models.KnowledgeDocument `json:"document"`
	Metadata normalize.FileMetadata    `json:"metadata"`
}

type PageResult struct {
	Document *models.KnowledgeDocument `json:"document"`
	Analysis *normalize.PageAnalysis   `json:"analysis"`
}

type BulkItem struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Status        string `json:"status"`
	ContentLength int    `json:"content_length"`
	Error         string `json:"error,omitempty"`
}

type BulkResult struct {
	ProcessedCount int        `json:"processed_count"`
	TotalDocuments int        `json:"total_documents"`
	Results        []BulkItem `json:"results"`
}

type Processor struct {
	index      *index.Index
	normalizer Normalizer
	scraper    PageScraper
	files      FileSource
	log        *zap.Logger
}

func NewProcessor(idx *index.Index, normalizer Normalizer, scraper PageScraper, files FileSource) *Processor {
	return &Processor{
		index:      idx,
		normalizer: normalizer,
		scraper:    scraper,
		files:      files,
		log:        logger.Named("ingestion"),
	}
}

// ProcessFile normalizes uploaded bytes and stores the result as a new
// document. Unsupported formats are rejected before anything is stored.
func (p *Processor) ProcessFile(ctx context.Context, up Upload, policy Policy) (*FileResult, error) {
	normalized, err := p.normalizer.NormalizeFile(up.Data, up.Filename, up.ContentType)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("upload", "rejected").Inc()
		return nil, err
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = up.Filename
	}

	req := index.CreateRequest{
		BotID:    up.BotID,
		Title:    title,
		Content:  normalized.Content,
		FileType: normalized.Metadata.FileType,
		FileURL:  up.FileURL,
		FileSize: normalized.Metadata.FileSize,
		Status:   models.StatusIndexed,
	}

	if message, failed := p.failureMessage(normalized, policy); failed {
		req.Status = models.StatusError
		req.ProcessingError = message
	}

	doc, err := p.index.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.WithLabelValues("upload", string(doc.Status)).Inc()
	p.log.Info("File processed",
		zap.String("doc_id", doc.ID),
		zap.String("bot_id", doc.BotID),
		zap.String("file_type", doc.FileType),
		zap.String("status", string(doc.Status)),
		zap.Int("word_count", normalized.Metadata.WordCount),
	)

	return &FileResult{Document: doc, Metadata: normalized.Metadata}, nil
}

// ProcessDocument re-reads the file behind an existing document and replaces
// its content. Any failure leaves the document in the error status and is
// returned together with the updated document.
func (p *Processor) ProcessDocument(ctx context.Context, id string, policy Policy) (*FileResult, error) {
	doc, err := p.index.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(doc.FileURL) == "" {
		return nil, ErrNoFileReference
	}
	if doc.FileType == models.FileTypeWeb {
		return p.refreshPage(ctx, doc)
	}

	data, err := p.files.Open(ctx, doc.FileURL)
	if err != nil {
		return p.fail(ctx, doc.ID, nil, err)
	}

	fileType := doc.FileType
	if fileType == "" || fileType == models.FileTypeText {
		fileType = models.FileTypeTXT
	}

	normalized, err := p.normalizer.NormalizeFile(data, path.Base(doc.FileURL), fileType)
	if err != nil {
		return p.fail(ctx, doc.ID, nil, err)
	}

	if message, failed := p.failureMessage(normalized, policy); failed {
		cause := normalized.ExtractionErr
		if cause == nil {
			cause = index.ErrEmptyContent
		}
		failedDoc, markErr := p.index.MarkError(ctx, doc.ID, message)
		if markErr != nil {
			return nil, markErr
		}
		metrics.DocumentsIngested.WithLabelValues("reprocess", string(models.StatusError)).Inc()
		return &FileResult{Document: failedDoc, Metadata: normalized.Metadata}, cause
	}

	updated, err := p.index.UpdateContent(ctx, doc.ID, normalized.Content, models.StatusIndexed)
	if err != nil {
		return p.fail(ctx, doc.ID, &normalized.Metadata, err)
	}

	metrics.DocumentsIngested.WithLabelValues("reprocess", string(updated.Status)).Inc()
	p.log.Info("Document reprocessed",
		zap.String("doc_id", updated.ID),
		zap.Int("word_count", normalized.Metadata.WordCount),
	)

	return &FileResult{Document: updated, Metadata: normalized.Metadata}, nil
}

// ProcessPage scrapes rawURL and stores the page summary as a web document.
func (p *Processor) ProcessPage(ctx context.Context, botID, rawURL string) (*PageResult, error) {
	analysis, err := p.scraper.Scrape(ctx, rawURL)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues("web", "rejected").Inc()
		return nil, err
	}

	doc, err := p.index.Create(ctx, index.CreateRequest{
		BotID:    botID,
		Title:    analysis.Title,
		Content:  analysis.Summary,
		FileType: models.FileTypeWeb,
		FileURL:  analysis.Metadata.URL,
		Status:   models.StatusIndexed,
	})
	if err != nil {
		return nil, err
	}

	metrics.DocumentsIngested.WithLabelValues("web", string(doc.Status)).Inc()
	p.log.Info("Website ingested",
		zap.String("doc_id", doc.ID),
		zap.String("bot_id", botID),
		zap.String("url", analysis.Metadata.URL),
		zap.String("content_type", string(analysis.Metadata.ContentType)),
	)

	return &PageResult{Document: doc, Analysis: analysis}, nil
}

func (p *Processor) refreshPage(ctx context.Context, doc *models.KnowledgeDocument) (*FileResult, error) {
	analysis, err := p.scraper.Scrape(ctx, doc.FileURL)
	if err != nil {
		return p.fail(ctx, doc.ID, nil, err)
	}

	meta := normalize.FileMetadata{
		Title:     analysis.Title,
		FileType:  models.FileTypeWeb,
		FileSize:  int64(len(analysis.Summary)),
		WordCount: analysis.Metadata.WordCount,
	}

	updated, err := p.index.UpdateContent(ctx, doc.ID, analysis.Summary, models.StatusIndexed)
	if err != nil {
		return p.fail(ctx, doc.ID, &meta, err)
	}

	metrics.DocumentsIngested.WithLabelValues("web", string(updated.Status)).Inc()
	return &FileResult{Document: updated, Metadata: meta}, nil
}

// IndexBotDocuments promotes every non-indexed document of the bot that
// already carries content.
func (p *Processor) IndexBotDocuments(ctx context.Context, botID string) (*BulkResult, error) {
	docs, err := p.index.GetByBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	result := &BulkResult{TotalDocuments: len(docs), Results: make([]BulkItem, 0, len(docs))}
	for _, doc := range docs {
		item := BulkItem{ID: doc.ID, Title: doc.Title, ContentLength: len(doc.Content)}

		switch {
		case doc.Status == models.StatusIndexed:
			item.Status = "already_indexed"
		case doc.Content != "":
			if _, err := p.index.UpdateStatus(ctx, doc.ID, models.StatusIndexed); err != nil {
				return nil, err
			}
			item.Status = string(models.StatusIndexed)
			result.ProcessedCount++
		default:
			item.Status = string(doc.Status)
			item.Error = "No content to index"
		}

		result.Results = append(result.Results, item)
	}

	p.log.Info("Bot documents processed",
		zap.String("bot_id", botID),
		zap.Int("processed", result.ProcessedCount),
		zap.Int("total", result.TotalDocuments),
	)

	return result, nil
}

// failureMessage reports whether a normalized file must be stored as failed.
func (p *Processor) failureMessage(n *normalize.NormalizedFile, policy Policy) (string, bool) {
	var extractErr *normalize.ExtractionError
	if errors.As(n.ExtractionErr, &extractErr) {
		metrics.ExtractionFailures.WithLabelValues(extractErr.Format).Inc()
		if policy == PolicyMarkError {
			return extractErr.Error(), true
		}
	}
	if n.Content == "" {
		return noContentMessage, true
	}
	return "", false
}

func (p *Processor) fail(ctx context.Context, id string, meta *normalize.FileMetadata, cause error) (*FileResult, error) {
	doc, err := p.index.MarkError(ctx, id, cause.Error())
	if err != nil {
		return nil, errors.Join(cause, err)
	}

	metrics.DocumentsIngested.WithLabelValues("reprocess", string(models.StatusError)).Inc()

	result := &FileResult{Document: doc}
	if meta != nil {
		result.Metadata = *meta
	}
	return result, cause
}
