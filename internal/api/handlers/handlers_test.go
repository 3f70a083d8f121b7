package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbot-admin/backend/internal/chat"
	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/ingestion"
	"github.com/chatbot-admin/backend/internal/llm"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/retrieval"
	"github.com/chatbot-admin/backend/internal/scraper"
	"github.com/chatbot-admin/backend/internal/storage/memory"
	"github.com/chatbot-admin/backend/internal/storage/models"
)

type echoCompleter struct {
	last llm.CompletionRequest
}

func (e *echoCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	e.last = req
	return &llm.CompletionResponse{Content: "Returns are free within 30 days.", Model: req.Model, FinishReason: "stop"}, nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("database is locked") }

type testServer struct {
	app       *fiber.App
	idx       *index.Index
	completer *echoCompleter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.NewStore()
	require.NoError(t, store.UpsertBot(context.Background(), &models.Bot{ID: "bot", SystemPrompt: "You help shoppers."}))

	idx := index.New(store)
	files := ingestion.NewDirStore(t.TempDir(), 1<<20)
	scrapeClient := scraper.NewClient(scraper.Config{})
	processor := ingestion.NewProcessor(idx, normalize.NewFileNormalizer(nil), scrapeClient, files)
	retriever := retrieval.NewRetriever(idx)
	completer := &echoCompleter{}
	engine := chat.NewEngine(store, retriever, completer, chat.Defaults{Model: "deepseek-chat", Temperature: 0.7, MaxTokens: 1000})

	app := fiber.New()
	Routes{
		Documents: NewDocumentHandler(idx, processor, files, 1<<20),
		Scrape:    NewScrapeHandler(processor, scrapeClient),
		Search:    NewSearchHandler(retriever, retrieval.DefaultLimit),
		Chat:      NewChatHandler(engine),
		WebSocket: NewWebSocketHandler(engine),
		Health:    NewHealthHandler(nil),
	}.Register(app.Group("/api/v1"))

	return &testServer{app: app, idx: idx, completer: completer}
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(t, req)
}

func (s *testServer) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestDocumentLifecycle(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "POST", "/api/v1/bots/bot/documents", map[string]interface{}{
		"title":   "Returns",
		"content": "Our return policy allows 30 day returns.",
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	doc := body["document"].(map[string]interface{})
	id := doc["id"].(string)
	assert.Equal(t, "processing", doc["status"])

	status, body = s.do(t, "PUT", "/api/v1/documents/"+id+"/status", map[string]string{"status": "indexed"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "indexed", body["document"].(map[string]interface{})["status"])

	status, body = s.do(t, "PUT", "/api/v1/documents/"+id+"/status", map[string]string{"status": "archived"})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Contains(t, body["error"], "invalid document status")

	status, body = s.do(t, "GET", "/api/v1/bots/bot/documents", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, _ = s.do(t, "GET", "/api/v1/bots/other/documents/"+id, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "DELETE", "/api/v1/documents/"+id, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = s.do(t, "DELETE", "/api/v1/documents/"+id, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "document not found", body["error"])
}

func TestCreateDocument_Validation(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, "POST", "/api/v1/bots/bot/documents", map[string]string{"content": "no title"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func upload(t *testing.T, s *testServer, filename, content string) (int, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/v1/bots/bot/documents/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return s.send(t, req)
}

func TestUploadAndReprocess(t *testing.T) {
	s := newTestServer(t)

	status, body := upload(t, s, "hours.txt", "We are open   nine to five.")
	require.Equal(t, fiber.StatusCreated, status, body)

	doc := body["document"].(map[string]interface{})
	assert.Equal(t, "indexed", doc["status"])
	assert.Equal(t, "We are open nine to five.", doc["content"])
	assert.True(t, strings.HasPrefix(doc["file_url"].(string), "/uploads/"))

	status, body = s.do(t, "POST", "/api/v1/documents/"+doc["id"].(string)+"/process", nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "indexed", body["document"].(map[string]interface{})["status"])
}

func TestUpload_Unsupported(t *testing.T) {
	s := newTestServer(t)

	status, body := upload(t, s, "logo.png", "\x89PNG")
	assert.Equal(t, fiber.StatusUnsupportedMediaType, status)
	assert.Contains(t, body["error"], "unsupported file format")
}

func TestProcessDocument_NoFileReference(t *testing.T) {
	s := newTestServer(t)
	doc, err := s.idx.Create(context.Background(), index.CreateRequest{BotID: "bot", Title: "inline", Content: "text"})
	require.NoError(t, err)

	status, body := s.do(t, "POST", "/api/v1/documents/"+doc.ID+"/process", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "no file URL found", body["error"])
}

func TestProcessBotDocuments(t *testing.T) {
	s := newTestServer(t)
	_, err := s.idx.Create(context.Background(), index.CreateRequest{BotID: "bot", Title: "draft", Content: "text"})
	require.NoError(t, err)

	status, body := s.do(t, "POST", "/api/v1/bots/bot/process-documents", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["processed_count"])
	assert.Equal(t, "Processed 1 documents", body["message"])
}

func TestSearchAndContext(t *testing.T) {
	s := newTestServer(t)
	_, err := s.idx.Create(context.Background(), index.CreateRequest{
		BotID: "bot", Title: "Returns", Content: "Our return policy allows 30 day returns.", Status: models.StatusIndexed,
	})
	require.NoError(t, err)

	status, body := s.do(t, "GET", "/api/v1/bots/bot/search?q=return+policy", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])

	status, body = s.do(t, "GET", "/api/v1/bots/bot/context?q=return+policy", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["has_context"])
	assert.True(t, strings.HasPrefix(body["context"].(string), retrieval.ContextHeader))

	status, body = s.do(t, "GET", "/api/v1/bots/bot/context?q=xyzzy", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "", body["context"])

	status, _ = s.do(t, "GET", "/api/v1/bots/bot/search", nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestChat(t *testing.T) {
	s := newTestServer(t)
	_, err := s.idx.Create(context.Background(), index.CreateRequest{
		BotID: "bot", Title: "Returns", Content: "Our return policy allows 30 day returns.", Status: models.StatusIndexed,
	})
	require.NoError(t, err)

	status, body := s.do(t, "POST", "/api/v1/chat", map[string]string{"bot_id": "bot", "message": "What is the return policy?"})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Returns are free within 30 days.", body["message"])
	assert.Equal(t, true, body["grounded"])

	require.Len(t, s.completer.last.Messages, 2)
	assert.Contains(t, s.completer.last.Messages[0].Content, "You help shoppers.\n\nRelevant information from knowledge base:")

	status, _ = s.do(t, "POST", "/api/v1/chat", map[string]string{"bot_id": "ghost", "message": "hi"})
	assert.Equal(t, fiber.StatusNotFound, status)

	status, _ = s.do(t, "POST", "/api/v1/chat", map[string]string{"bot_id": "bot"})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestScrape(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<html><head><title>Bakery</title></head><body><p>Fresh bread baked every morning by our team.</p></body></html>`))
	}))
	defer site.Close()

	s := newTestServer(t)

	status, body := s.do(t, "POST", "/api/v1/scrape/preview", map[string]string{"url": site.URL})
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Bakery", body["data"].(map[string]interface{})["title"])

	docs, err := s.idx.GetByBot(context.Background(), "bot")
	require.NoError(t, err)
	assert.Empty(t, docs)

	status, body = s.do(t, "POST", "/api/v1/bots/bot/scrape", map[string]string{"url": site.URL})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, "web", body["document"].(map[string]interface{})["file_type"])

	status, body = s.do(t, "POST", "/api/v1/scrape/preview", map[string]string{"url": site.URL + "/missing"})
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Contains(t, body["error"], "HTTP 404")

	status, _ = s.do(t, "POST", "/api/v1/scrape/preview", map[string]string{"url": ""})
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, "GET", "/api/v1/health", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, _ = s.do(t, "GET", "/api/v1/ready", nil)
	assert.Equal(t, fiber.StatusOK, status)

	app := fiber.New()
	h := NewHealthHandler(map[string]Pinger{"sqlite": failingPinger{}})
	app.Get("/ready", h.Ready)
	resp, err := app.Test(httptest.NewRequest("GET", "/ready", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, fiber.StatusGatewayTimeout, statusFor(&scraper.FetchError{Kind: scraper.KindTimeout}))
	assert.Equal(t, fiber.StatusBadGateway, statusFor(&scraper.FetchError{Kind: scraper.KindConnect}))
	assert.Equal(t, fiber.StatusUnprocessableEntity, statusFor(&normalize.ExtractionError{Format: "pdf", Err: errors.New("bad")}))
	assert.Equal(t, fiber.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestSplitIntoWords(t *testing.T) {
	assert.Equal(t, []string{"Hello", "there", "\n", "friend"}, splitIntoWords("Hello  there\nfriend"))
	assert.Empty(t, splitIntoWords("   "))
}
