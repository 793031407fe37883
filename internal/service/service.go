// Package service реализует бизнес-логику форума и экономики монет.
package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/identity"
	"github.com/mmeshcher/forum-coins/internal/model"
)

var (
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrForbidden возвращается при попытке изменить чужое сообщение.
	ErrForbidden = errors.New("forbidden")
	// ErrIdentityRejected возвращается, если проверка личности не пройдена.
	ErrIdentityRejected = errors.New("identity verification rejected")
	// ErrInvalidInput возвращается для пустых обязательных полей.
	ErrInvalidInput = errors.New("invalid input")
)

// AccountRepository описывает хранилище аккаунтов.
type AccountRepository interface {
	CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error)
	GetAccount(ctx context.Context, id int64) (*model.Account, error)
	GetAccountByUsername(ctx context.Context, username string) (*model.Account, error)
	SetOnline(ctx context.Context, id int64, online bool) error
}

// LedgerRepository описывает журнал монет.
type LedgerRepository interface {
	Credit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error)
	Debit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error)
	GetBalance(ctx context.Context, accountID int64) (int64, error)
	GetHistory(ctx context.Context, accountID int64) ([]model.Transaction, error)
}

// CatalogRepository описывает каталог магазина и атомарную покупку.
type CatalogRepository interface {
	CreateItem(ctx context.Context, item *model.CatalogItem) (*model.CatalogItem, error)
	GetItem(ctx context.Context, id int64) (*model.CatalogItem, error)
	ListItems(ctx context.Context) ([]model.CatalogItem, error)
	DecrementStock(ctx context.Context, id int64) (*model.CatalogItem, error)
	Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error)
	GetOwnerships(ctx context.Context, accountID int64) ([]model.Ownership, error)
}

// ForumRepository описывает хранилище разделов, тем и сообщений.
type ForumRepository interface {
	CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error)
	GetCategory(ctx context.Context, id int64) (*model.Category, error)
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateTopic(ctx context.Context, t *model.Topic) (*model.Topic, error)
	GetTopic(ctx context.Context, id int64) (*model.Topic, error)
	ListTopics(ctx context.Context, categoryID int64) ([]model.Topic, error)
	CreateThread(ctx context.Context, t *model.Thread, firstMessage string) (*model.Thread, *model.Message, error)
	GetThread(ctx context.Context, id int64) (*model.Thread, error)
	ListThreads(ctx context.Context, topicID int64) ([]model.Thread, error)
	CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error)
	GetMessage(ctx context.Context, id int64) (*model.Message, error)
	ListMessages(ctx context.Context, threadID int64) ([]model.Message, error)
	UpdateMessage(ctx context.Context, id int64, content string) (*model.Message, error)
	DeleteMessage(ctx context.Context, id int64) error
	LikeMessage(ctx context.Context, messageID, accountID int64) (*model.Message, error)
}

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	AccountRepository
	LedgerRepository
	CatalogRepository
	ForumRepository
}

// Service объединяет компоненты экономики и форума.
type Service struct {
	repo          Repository
	logger        *zap.Logger
	verifier      identity.Verifier
	startingBonus int64
	bcryptCost    int

	ledger    *Ledger
	catalog   *Catalog
	purchases *PurchaseEngine
	rewards   *RewardDispatcher
}

// NewService создаёт сервис с указанным репозиторием, сервисом проверки личности и стартовым бонусом.
func NewService(repo Repository, verifier identity.Verifier, logger *zap.Logger, startingBonus int64) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifier == nil {
		verifier = identity.FormatVerifier{}
	}

	ledger := NewLedger(repo)

	return &Service{
		repo:          repo,
		logger:        logger,
		verifier:      verifier,
		startingBonus: startingBonus,
		bcryptCost:    defaultBcryptCost,
		ledger:        ledger,
		catalog:       NewCatalog(repo),
		purchases:     NewPurchaseEngine(repo, logger),
		rewards:       NewRewardDispatcher(ledger, logger),
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Balance возвращает текущий баланс аккаунта.
func (s *Service) Balance(ctx context.Context, accountID int64) (int64, error) {
	return s.ledger.Balance(ctx, accountID)
}

// History возвращает журнал операций аккаунта, новые записи первыми.
func (s *Service) History(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return s.ledger.History(ctx, accountID)
}

// ListItems возвращает товары магазина.
func (s *Service) ListItems(ctx context.Context) ([]model.CatalogItem, error) {
	return s.catalog.ListItems(ctx)
}

// GetItem возвращает товар по идентификатору.
func (s *Service) GetItem(ctx context.Context, id int64) (*model.CatalogItem, error) {
	return s.catalog.GetItem(ctx, id)
}

// CreateItem добавляет товар в магазин.
func (s *Service) CreateItem(ctx context.Context, item NewItem) (*model.CatalogItem, error) {
	return s.catalog.CreateItem(ctx, item)
}

// Purchase покупает товар для аккаунта.
func (s *Service) Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error) {
	return s.purchases.Purchase(ctx, accountID, itemID)
}

// Ownerships возвращает купленные аккаунтом товары.
func (s *Service) Ownerships(ctx context.Context, accountID int64) ([]OwnedItem, error) {
	return s.catalog.Ownerships(ctx, accountID)
}
