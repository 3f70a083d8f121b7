package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatbot-admin/backend/internal/index"
	"github.com/chatbot-admin/backend/internal/storage/models"
)

func TestStore_TiesBrokenByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	at := time.Unix(1_700_000_000, 0)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Insert(ctx, &models.KnowledgeDocument{ID: id, BotID: "bot", CreatedAt: at}))
	}
	require.NoError(t, s.Insert(ctx, &models.KnowledgeDocument{ID: "early", BotID: "bot", CreatedAt: at.Add(-time.Hour)}))

	docs, err := s.ListByBot(ctx, "bot")
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, "c", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
	assert.Equal(t, "a", docs[2].ID)
	assert.Equal(t, "early", docs[3].ID)
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	doc := &models.KnowledgeDocument{ID: "a", BotID: "bot", Title: "original"}
	require.NoError(t, s.Insert(ctx, doc))
	doc.Title = "mutated"

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "original", got.Title)

	got.Title = "mutated again"
	again, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Title)
}

func TestStore_NotFound(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Get(ctx, "x")
	assert.ErrorIs(t, err, index.ErrNotFound)
	assert.ErrorIs(t, s.Update(ctx, &models.KnowledgeDocument{ID: "x"}), index.ErrNotFound)

	_, err = s.GetBot(ctx, "x")
	assert.ErrorIs(t, err, models.ErrBotNotFound)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("doc-%d", i)
			_ = s.Insert(ctx, &models.KnowledgeDocument{ID: id, BotID: "bot"})
			_, _ = s.ListByBot(ctx, "bot")
		}(i)
	}
	wg.Wait()

	docs, err := s.ListByBot(ctx, "bot")
	require.NoError(t, err)
	assert.Len(t, docs, 50)
}

func TestStore_ConcurrentUpdateAndList(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	at := time.Unix(1_700_000_000, 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Insert(ctx, &models.KnowledgeDocument{
			ID: fmt.Sprintf("doc-%d", i), BotID: "bot", CreatedAt: at, Status: models.StatusProcessing,
		}))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = s.Update(ctx, &models.KnowledgeDocument{
				ID:        fmt.Sprintf("doc-%d", i%5),
				BotID:     "bot",
				Content:   fmt.Sprintf("revision %d", i),
				Status:    models.StatusIndexed,
				CreatedAt: at.Add(time.Duration(i%3) * time.Second),
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			docs, err := s.ListByBot(ctx, "bot")
			if assert.NoError(t, err) {
				assert.Len(t, docs, 5)
			}
		}
	}()
	wg.Wait()

	docs, err := s.ListByBot(ctx, "bot")
	require.NoError(t, err)
	for i := 1; i < len(docs); i++ {
		assert.False(t, docs[i].CreatedAt.After(docs[i-1].CreatedAt))
	}
}
