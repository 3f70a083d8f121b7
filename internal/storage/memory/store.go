// Package memory is an in-process document and bot store used by tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/storage/models"
)

type entry struct {
	doc models.KnowledgeDocument
	seq uint64
}

type Store struct {
	mu      sync.RWMutex
	docs    map[string]*entry
	bots    map[string]models.Bot
	nextSeq uint64
}

func NewStore() *Store {
	return &Store{
		docs: make(map[string]*entry),
		bots: make(map[string]models.Bot),
	}
}

func (s *Store) Insert(_ context.Context, doc *models.KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	s.docs[doc.ID] = &entry{doc: *doc, seq: s.nextSeq}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*models.KnowledgeDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.docs[id]
	if !ok {
		return nil, index.ErrNotFound
	}
	doc := e.doc
	return &doc, nil
}

func (s *Store) ListByBot(_ context.Context, botID string) ([]models.KnowledgeDocument, error) {
	s.mu.RLock()
	entries := make([]entry, 0, len(s.docs))
	for _, e := range s.docs {
		if e.doc.BotID == botID {
			entries = append(entries, *e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			return a.doc.CreatedAt.After(b.doc.CreatedAt)
		}
		return a.seq > b.seq
	})

	docs := make([]models.KnowledgeDocument, len(entries))
	for i, e := range entries {
		docs[i] = e.doc
	}
	return docs, nil
}

func (s *Store) Update(_ context.Context, doc *models.KnowledgeDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.docs[doc.ID]
	if !ok {
		return index.ErrNotFound
	}
	e.doc = *doc
	return nil
}

func (s *Store) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return false, nil
	}
	delete(s.docs, id)
	return true, nil
}

func (s *Store) DeleteByBot(_ context.Context, botID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.docs {
		if e.doc.BotID == botID {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) GetBot(_ context.Context, id string) (*models.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bot, ok := s.bots[id]
	if !ok {
		return nil, models.ErrBotNotFound
	}
	return &bot, nil
}

func (s *Store) UpsertBot(_ context.Context, bot *models.Bot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bots[bot.ID] = *bot
	return nil
}
