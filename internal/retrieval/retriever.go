// Package retrieval scores a bot's documents against a query and assembles
// the grounding block spliced into chat system prompts.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/chatbot-admin/backend/internal/metrics"
	"github.com/chatbot-admin/backend/internal/normalize"
	"github.com/chatbot-admin/backend/internal/storage/models"
	"github.com/chatbot-admin/backend/pkg/logger"
)

const (
	DefaultLimit = 5
	ContextLimit = 3

	ContextHeader = "Relevant information from knowledge base:"

	minTokenLength  = 3
	fallbackExcerpt = 200
)

// DocumentSource lists a bot's documents.
type DocumentSource interface {
	GetByBot(ctx context.Context, botID string) ([]models.KnowledgeDocument, error)
}

type Result struct {
	Document models.KnowledgeDocument `json:"document"`
	Score    int                      `json:"relevance_score"`
	Excerpt  string                   `json:"matched_content"`
}

type Retriever struct {
	source DocumentSource
	log    *zap.Logger
}

func NewRetriever(source DocumentSource) *Retriever {
	return &Retriever{
		source: source,
		log:    logger.Named("retrieval"),
	}
}

// Search returns up to limit documents of botID ranked by how often the query
// tokens occur in them. A limit of zero or less selects DefaultLimit. The
// result is never nil.
func (r *Retriever) Search(ctx context.Context, botID, query string, limit int) ([]Result, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("search").Observe(time.Since(start).Seconds())
	}()

	if limit <= 0 {
		limit = DefaultLimit
	}

	docs, err := r.source.GetByBot(ctx, botID)
	if err != nil {
		metrics.RetrievalTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to load documents for bot %s: %w", botID, err)
	}

	tokens := Tokenize(query)
	results := []Result{}
	if len(tokens) > 0 {
		results = rank(docs, tokens, limit)
	}

	outcome := "hit"
	if len(results) == 0 {
		outcome = "miss"
	}
	metrics.RetrievalTotal.WithLabelValues(outcome).Inc()
	metrics.RetrievalResultsCount.Observe(float64(len(results)))

	r.log.Debug("Search completed",
		zap.String("bot_id", botID),
		zap.Int("documents", len(docs)),
		zap.Int("tokens", len(tokens)),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// ContextForQuery renders the top results as a numbered block, or "" when
// nothing matched.
func (r *Retriever) ContextForQuery(ctx context.Context, botID, query string) (string, error) {
	results, err := r.Search(ctx, botID, query, ContextLimit)
	if err != nil {
		return "", err
	}
	return FormatContext(results), nil
}

func FormatContext(results []Result) string {
	if len(results) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(ContextHeader)
	b.WriteString("\n\n")
	for i, res := range results {
		fmt.Fprintf(&b, "%d. From \"%s\":\n%s\n\n", i+1, res.Document.Title, res.Excerpt)
	}
	return strings.TrimSpace(b.String())
}

// Tokenize lowercases query, splits it on whitespace and keeps tokens of at
// least three characters. Duplicates are kept and count twice when scoring.
func Tokenize(query string) []string {
	var tokens []string
	for _, field := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(field) >= minTokenLength {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

func rank(docs []models.KnowledgeDocument, tokens []string, limit int) []Result {
	results := []Result{}
	for _, doc := range docs {
		if strings.TrimSpace(doc.Content) == "" {
			continue
		}

		score := Score(doc.Content, tokens)
		if score == 0 {
			continue
		}

		results = append(results, Result{
			Document: doc,
			Score:    score,
			Excerpt:  Excerpt(doc.Content, tokens),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Score is the total count of non-overlapping occurrences of each token in
// the lowercased content.
func Score(content string, tokens []string) int {
	lower := strings.ToLower(content)
	score := 0
	for _, token := range tokens {
		score += strings.Count(lower, token)
	}
	return score
}

// Excerpt picks the sentence containing the most distinct tokens, the first
// one on ties. When no single sentence contains a token the first 200
// characters are returned with an ellipsis.
func Excerpt(content string, tokens []string) string {
	distinct := unique(tokens)
	best := ""
	bestScore := 0

	for _, sentence := range normalize.SplitSentences(content) {
		lower := strings.ToLower(sentence)
		score := 0
		for _, token := range distinct {
			if strings.Contains(lower, token) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = strings.TrimSpace(sentence)
		}
	}

	if best != "" {
		return best
	}

	runes := []rune(content)
	if len(runes) > fallbackExcerpt {
		runes = runes[:fallbackExcerpt]
	}
	return string(runes) + "..."
}

func unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
