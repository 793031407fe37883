package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/forum-coins/internal/model"
)

// store объединяет методы обеих реализаций, по которым гоняются контрактные тесты.
type store interface {
	CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	Credit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error)
	Debit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error)
	GetBalance(ctx context.Context, accountID int64) (int64, error)
	GetHistory(ctx context.Context, accountID int64) ([]model.Transaction, error)
	CreateItem(ctx context.Context, item *model.CatalogItem) (*model.CatalogItem, error)
	GetItem(ctx context.Context, id int64) (*model.CatalogItem, error)
	ListItems(ctx context.Context) ([]model.CatalogItem, error)
	DecrementStock(ctx context.Context, id int64) (*model.CatalogItem, error)
	Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error)
	GetOwnerships(ctx context.Context, accountID int64) ([]model.Ownership, error)
	CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error)
	CreateTopic(ctx context.Context, t *model.Topic) (*model.Topic, error)
	CreateThread(ctx context.Context, t *model.Thread, firstMessage string) (*model.Thread, *model.Message, error)
	GetThread(ctx context.Context, id int64) (*model.Thread, error)
	CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error)
	ListMessages(ctx context.Context, threadID int64) ([]model.Message, error)
	UpdateMessage(ctx context.Context, id int64, content string) (*model.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
	LikeMessage(ctx context.Context, messageID, accountID int64) (*model.Message, error)
}

var (
	usernameSeq atomic.Int64
	runID       = time.Now().UnixNano()
)

func newAccount(t *testing.T, s store, bonus int64) *model.Account {
	t.Helper()

	acc, err := s.CreateAccount(context.Background(), &model.Account{
		Username:      fmt.Sprintf("user-%d-%d", runID, usernameSeq.Add(1)),
		DisplayName:   "Test User",
		PasswordHash:  []byte("hash"),
		StartingBonus: bonus,
		Verified:      true,
	})
	require.NoError(t, err)
	return acc
}

func newItem(t *testing.T, s store, price, stock int64) *model.CatalogItem {
	t.Helper()

	it, err := s.CreateItem(context.Background(), &model.CatalogItem{
		Name:  "Premium Avatar",
		Price: price,
		Stock: stock,
		Kind:  model.ItemKindAvatar,
	})
	require.NoError(t, err)
	return it
}

func assertBalanceInvariant(t *testing.T, s store, acc *model.Account) {
	t.Helper()

	ctx := context.Background()

	balance, err := s.GetBalance(ctx, acc.ID)
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, acc.ID)
	require.NoError(t, err)

	sum := acc.StartingBonus
	for _, tx := range history {
		sum += tx.Amount
	}
	assert.Equal(t, sum, balance, "balance must equal starting bonus plus the sum of transactions")
	assert.GreaterOrEqual(t, balance, int64(0))
}

func runContract(t *testing.T, s store) {
	ctx := context.Background()

	t.Run("create account seeds starting bonus", func(t *testing.T) {
		acc := newAccount(t, s, 50)
		assert.Equal(t, int64(50), acc.Balance)

		got, err := s.GetAccountByUsername(ctx, acc.Username)
		require.NoError(t, err)
		assert.Equal(t, acc.ID, got.ID)

		_, err = s.CreateAccount(ctx, &model.Account{Username: acc.Username, PasswordHash: []byte("x")})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("credit and debit keep history newest first", func(t *testing.T) {
		acc := newAccount(t, s, 50)
		threadID := int64(7)

		tx, err := s.Credit(ctx, acc.ID, 20, model.ReasonThreadCreate, &threadID)
		require.NoError(t, err)
		assert.Equal(t, int64(20), tx.Amount)
		require.NotNil(t, tx.RelatedID)
		assert.Equal(t, threadID, *tx.RelatedID)

		tx, err = s.Debit(ctx, acc.ID, 30, model.ReasonMarketPurchase, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(-30), tx.Amount)

		history, err := s.GetHistory(ctx, acc.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, model.ReasonMarketPurchase, history[0].Reason)
		assert.Equal(t, model.ReasonThreadCreate, history[1].Reason)

		balance, err := s.GetBalance(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(40), balance)
		assertBalanceInvariant(t, s, acc)
	})

	t.Run("debit beyond balance has no effect", func(t *testing.T) {
		acc := newAccount(t, s, 10)

		_, err := s.Debit(ctx, acc.ID, 11, model.ReasonMarketPurchase, nil)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		balance, err := s.GetBalance(ctx, acc.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(10), balance)

		history, err := s.GetHistory(ctx, acc.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("non-positive amounts are rejected", func(t *testing.T) {
		acc := newAccount(t, s, 10)

		_, err := s.Credit(ctx, acc.ID, 0, model.ReasonMessageLike, nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = s.Debit(ctx, acc.ID, -5, model.ReasonMarketPurchase, nil)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := s.Credit(ctx, 1<<40, 5, model.ReasonMessageLike, nil)
		assert.ErrorIs(t, err, ErrAccountNotFound)
		assert.ErrorIs(t, err, ErrNotFound)

		_, err = s.GetBalance(ctx, 1<<40)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("decrement stock stops at zero", func(t *testing.T) {
		it := newItem(t, s, 10, 1)

		updated, err := s.DecrementStock(ctx, it.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), updated.Stock)

		_, err = s.DecrementStock(ctx, it.ID)
		assert.ErrorIs(t, err, ErrOutOfStock)

		_, err = s.DecrementStock(ctx, 1<<40)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("list items keeps insertion order", func(t *testing.T) {
		first := newItem(t, s, 10, 1)
		second := newItem(t, s, 20, 1)

		items, err := s.ListItems(ctx)
		require.NoError(t, err)

		pos := map[int64]int{}
		for i, it := range items {
			pos[it.ID] = i
		}
		assert.Less(t, pos[first.ID], pos[second.ID])
	})

	t.Run("invalid catalog item", func(t *testing.T) {
		_, err := s.CreateItem(ctx, &model.CatalogItem{Name: "free", Price: 0, Stock: 1})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("purchase applies all effects", func(t *testing.T) {
		acc := newAccount(t, s, 150)
		it := newItem(t, s, 100, 3)

		own, err := s.Purchase(ctx, acc.ID, it.ID)
		require.NoError(t, err)
		assert.True(t, own.Active)
		assert.Equal(t, it.ID, own.ItemID)

		balance, _ := s.GetBalance(ctx, acc.ID)
		assert.Equal(t, int64(50), balance)

		updated, _ := s.GetItem(ctx, it.ID)
		assert.Equal(t, int64(2), updated.Stock)

		history, _ := s.GetHistory(ctx, acc.ID)
		require.Len(t, history, 1)
		assert.Equal(t, model.ReasonMarketPurchase, history[0].Reason)
		require.NotNil(t, history[0].RelatedID)
		assert.Equal(t, it.ID, *history[0].RelatedID)

		owns, err := s.GetOwnerships(ctx, acc.ID)
		require.NoError(t, err)
		assert.Len(t, owns, 1)
		assertBalanceInvariant(t, s, acc)
	})

	t.Run("purchase without funds has no effect", func(t *testing.T) {
		acc := newAccount(t, s, 75)
		it := newItem(t, s, 100, 3)

		_, err := s.Purchase(ctx, acc.ID, it.ID)
		assert.ErrorIs(t, err, ErrInsufficientFunds)

		balance, _ := s.GetBalance(ctx, acc.ID)
		assert.Equal(t, int64(75), balance)
		updated, _ := s.GetItem(ctx, it.ID)
		assert.Equal(t, int64(3), updated.Stock)
		owns, _ := s.GetOwnerships(ctx, acc.ID)
		assert.Empty(t, owns)
	})

	t.Run("sold out item reports out of stock regardless of balance", func(t *testing.T) {
		rich := newAccount(t, s, 1000)
		poor := newAccount(t, s, 0)
		it := newItem(t, s, 100, 0)

		_, err := s.Purchase(ctx, rich.ID, it.ID)
		assert.ErrorIs(t, err, ErrOutOfStock)
		_, err = s.Purchase(ctx, poor.ID, it.ID)
		assert.ErrorIs(t, err, ErrOutOfStock)

		balance, _ := s.GetBalance(ctx, rich.ID)
		assert.Equal(t, int64(1000), balance)
	})

	t.Run("purchase of unknown item or account", func(t *testing.T) {
		acc := newAccount(t, s, 100)
		it := newItem(t, s, 10, 1)

		_, err := s.Purchase(ctx, acc.ID, 1<<40)
		assert.ErrorIs(t, err, ErrItemNotFound)
		_, err = s.Purchase(ctx, 1<<40, it.ID)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("last unit is sold exactly once under concurrency", func(t *testing.T) {
		it := newItem(t, s, 10, 1)

		const buyers = 8
		accounts := make([]*model.Account, buyers)
		for i := range accounts {
			accounts[i] = newAccount(t, s, 100)
		}

		var (
			wg        sync.WaitGroup
			succeeded atomic.Int64
			soldOut   atomic.Int64
		)
		for _, acc := range accounts {
			wg.Add(1)
			go func(accountID int64) {
				defer wg.Done()
				_, err := s.Purchase(ctx, accountID, it.ID)
				switch {
				case err == nil:
					succeeded.Add(1)
				case assert.ErrorIs(t, err, ErrOutOfStock):
					soldOut.Add(1)
				}
			}(acc.ID)
		}
		wg.Wait()

		assert.Equal(t, int64(1), succeeded.Load())
		assert.Equal(t, int64(buyers-1), soldOut.Load())

		updated, _ := s.GetItem(ctx, it.ID)
		assert.Equal(t, int64(0), updated.Stock)

		for _, acc := range accounts {
			assertBalanceInvariant(t, s, acc)
		}
	})

	t.Run("concurrent purchases never overdraw one account", func(t *testing.T) {
		acc := newAccount(t, s, 100)
		it := newItem(t, s, 30, 100)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = s.Purchase(ctx, acc.ID, it.ID)
			}()
		}
		wg.Wait()

		balance, _ := s.GetBalance(ctx, acc.ID)
		assert.Equal(t, int64(10), balance)

		owns, _ := s.GetOwnerships(ctx, acc.ID)
		assert.Len(t, owns, 3)

		updated, _ := s.GetItem(ctx, it.ID)
		assert.Equal(t, int64(97), updated.Stock)
		assertBalanceInvariant(t, s, acc)
	})

	t.Run("concurrent credits are not lost", func(t *testing.T) {
		acc := newAccount(t, s, 0)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Credit(ctx, acc.ID, 5, model.ReasonMessageLike, nil)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		balance, _ := s.GetBalance(ctx, acc.ID)
		assert.Equal(t, int64(100), balance)
		assertBalanceInvariant(t, s, acc)
	})

	t.Run("thread with first message is not a reply", func(t *testing.T) {
		acc := newAccount(t, s, 0)
		cat, err := s.CreateCategory(ctx, &model.Category{Name: "Development"})
		require.NoError(t, err)
		topic, err := s.CreateTopic(ctx, &model.Topic{CategoryID: cat.ID, Name: "Go"})
		require.NoError(t, err)

		thread, first, err := s.CreateThread(ctx, &model.Thread{TopicID: topic.ID, AccountID: acc.ID, Title: "Hello"}, "first post")
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, int64(0), thread.ReplyCount)

		_, err = s.CreateMessage(ctx, &model.Message{ThreadID: thread.ID, AccountID: acc.ID, Content: "reply"})
		require.NoError(t, err)

		updated, err := s.GetThread(ctx, thread.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.ReplyCount)

		msgs, err := s.ListMessages(ctx, thread.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, first.ID, msgs[0].ID)
	})

	t.Run("forum references must exist", func(t *testing.T) {
		_, err := s.CreateTopic(ctx, &model.Topic{CategoryID: 1 << 40, Name: "orphan"})
		assert.ErrorIs(t, err, ErrCategoryNotFound)

		_, _, err = s.CreateThread(ctx, &model.Thread{TopicID: 1 << 40, Title: "orphan"}, "")
		assert.ErrorIs(t, err, ErrTopicNotFound)

		_, err = s.CreateMessage(ctx, &model.Message{ThreadID: 1 << 40, Content: "orphan"})
		assert.ErrorIs(t, err, ErrThreadNotFound)
	})

	t.Run("like, edit and delete message", func(t *testing.T) {
		author := newAccount(t, s, 0)
		liker := newAccount(t, s, 0)
		cat, _ := s.CreateCategory(ctx, &model.Category{Name: "General"})
		topic, _ := s.CreateTopic(ctx, &model.Topic{CategoryID: cat.ID, Name: "Introductions"})
		_, msg, err := s.CreateThread(ctx, &model.Thread{TopicID: topic.ID, AccountID: author.ID, Title: "Hi"}, "hello")
		require.NoError(t, err)

		liked, err := s.LikeMessage(ctx, msg.ID, liker.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), liked.Likes)

		_, err = s.LikeMessage(ctx, msg.ID, liker.ID)
		assert.ErrorIs(t, err, ErrAlreadyLiked)

		edited, err := s.UpdateMessage(ctx, msg.ID, "hello, edited")
		require.NoError(t, err)
		assert.True(t, edited.IsEdited)
		assert.Equal(t, "hello, edited", edited.Content)

		require.NoError(t, s.DeleteMessage(ctx, msg.ID))
		assert.ErrorIs(t, s.DeleteMessage(ctx, msg.ID), ErrMessageNotFound)
		_, err = s.LikeMessage(ctx, msg.ID, author.ID)
		assert.ErrorIs(t, err, ErrMessageNotFound)
	})
}
