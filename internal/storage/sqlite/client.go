package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	_, err = db.Exec("PRAGMA busy_timeout = 5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		bot_id TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL,
		file_url TEXT,
		file_size INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		processing_error TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_knowledge_documents_bot ON knowledge_documents(bot_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_knowledge_documents_status ON knowledge_documents(status);

	CREATE TABLE IF NOT EXISTS bots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		system_prompt TEXT,
		model TEXT,
		temperature REAL,
		max_tokens INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) Insert(ctx context.Context, doc *models.KnowledgeDocument) error {
	query := `
		INSERT INTO knowledge_documents (id, bot_id, title, content, file_type, file_url, file_size,
			status, processing_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		doc.ID,
		doc.BotID,
		doc.Title,
		doc.Content,
		doc.FileType,
		nullString(doc.FileURL),
		doc.FileSize,
		string(doc.Status),
		nullString(doc.ProcessingError),
		doc.CreatedAt.UnixNano(),
		doc.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}

	logger.Debug("Document inserted", zap.String("doc_id", doc.ID), zap.String("bot_id", doc.BotID))
	return nil
}

const documentColumns = `id, bot_id, title, content, file_type, file_url, file_size, status, processing_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.KnowledgeDocument, error) {
	var (
		doc                  models.KnowledgeDocument
		status               string
		fileURL, procErr     sql.NullString
		createdAt, updatedAt int64
	)

	err := row.Scan(
		&doc.ID,
		&doc.BotID,
		&doc.Title,
		&doc.Content,
		&doc.FileType,
		&fileURL,
		&doc.FileSize,
		&status,
		&procErr,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Status = models.DocumentStatus(status)
	doc.FileURL = fileURL.String
	doc.ProcessingError = procErr.String
	doc.CreatedAt = time.Unix(0, createdAt)
	doc.UpdatedAt = time.Unix(0, updatedAt)

	return &doc, nil
}

func (c *Client) Get(ctx context.Context, id string) (*models.KnowledgeDocument, error) {
	query := `SELECT ` + documentColumns + ` FROM knowledge_documents WHERE id = ?`

	doc, err := scanDocument(c.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, index.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

func (c *Client) ListByBot(ctx context.Context, botID string) ([]models.KnowledgeDocument, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM knowledge_documents
		WHERE bot_id = ?
		ORDER BY created_at DESC, seq DESC
	`

	rows, err := c.db.QueryContext(ctx, query, botID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []models.KnowledgeDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, nil
}

func (c *Client) Update(ctx context.Context, doc *models.KnowledgeDocument) error {
	query := `
		UPDATE knowledge_documents SET
			title = ?,
			content = ?,
			file_type = ?,
			file_url = ?,
			file_size = ?,
			status = ?,
			processing_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	res, err := c.db.ExecContext(
		ctx,
		query,
		doc.Title,
		doc.Content,
		doc.FileType,
		nullString(doc.FileURL),
		doc.FileSize,
		string(doc.Status),
		nullString(doc.ProcessingError),
		doc.UpdatedAt.UnixNano(),
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	if n == 0 {
		return index.ErrNotFound
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	return n > 0, nil
}

func (c *Client) DeleteByBot(ctx context.Context, botID string) (int, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM knowledge_documents WHERE bot_id = ?`, botID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bot documents: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete bot documents: %w", err)
	}

	return int(n), nil
}

func (c *Client) GetBot(ctx context.Context, id string) (*models.Bot, error) {
	query := `SELECT id, name, system_prompt, model, temperature, max_tokens, created_at, updated_at FROM bots WHERE id = ?`

	var (
		bot                  models.Bot
		prompt, model        sql.NullString
		temperature          sql.NullFloat64
		maxTokens            sql.NullInt64
		createdAt, updatedAt int64
	)

	err := c.db.QueryRowContext(ctx, query, id).Scan(
		&bot.ID,
		&bot.Name,
		&prompt,
		&model,
		&temperature,
		&maxTokens,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrBotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bot: %w", err)
	}

	bot.SystemPrompt = prompt.String
	bot.Model = model.String
	bot.Temperature = float32(temperature.Float64)
	bot.MaxTokens = int(maxTokens.Int64)
	bot.CreatedAt = time.Unix(0, createdAt)
	bot.UpdatedAt = time.Unix(0, updatedAt)

	return &bot, nil
}

func (c *Client) UpsertBot(ctx context.Context, bot *models.Bot) error {
	query := `
		INSERT INTO bots (id, name, system_prompt, model, temperature, max_tokens, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			system_prompt = excluded.system_prompt,
			model = excluded.model,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			updated_at = excluded.updated_at
	`

	now := time.Now()
	if bot.CreatedAt.IsZero() {
		bot.CreatedAt = now
	}
	bot.UpdatedAt = now

	_, err := c.db.ExecContext(
		ctx,
		query,
		bot.ID,
		bot.Name,
		nullString(bot.SystemPrompt),
		nullString(bot.Model),
		bot.Temperature,
		bot.MaxTokens,
		bot.CreatedAt.UnixNano(),
		bot.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert bot: %w", err)
	}

	logger.Debug("Bot upserted", zap.String("bot_id", bot.ID))
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
