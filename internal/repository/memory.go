package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mmeshcher/forum-coins/internal/model"
)

// accountEntry хранит состояние одного аккаунта. Баланс, журнал и владения меняются только под mu,
// поэтому читатель никогда не увидит новый баланс без соответствующей транзакции.
type accountEntry struct {
	mu         sync.Mutex
	account    model.Account
	history    []model.Transaction
	ownerships []model.Ownership
}

type itemEntry struct {
	mu   sync.Mutex
	item model.CatalogItem
}

type likeKey struct {
	messageID int64
	accountID int64
}

// MemoryRepository хранит данные в памяти процесса. Используется в тестах и при запуске без БД.
//
// Мьютекс mu защищает только сами карты; операции над балансом и остатком сериализуются
// мьютексами конкретного аккаунта и товара, поэтому запросы к разным ключам идут параллельно.
type MemoryRepository struct {
	mu        sync.RWMutex
	accounts  map[int64]*accountEntry
	usernames map[string]int64
	items     map[int64]*itemEntry

	forumMu    sync.RWMutex
	categories map[int64]model.Category
	topics     map[int64]model.Topic
	threads    map[int64]model.Thread
	messages   map[int64]model.Message
	likes      map[likeKey]struct{}

	accountSeq     atomic.Int64
	transactionSeq atomic.Int64
	itemSeq        atomic.Int64
	ownershipSeq   atomic.Int64
	categorySeq    atomic.Int64
	topicSeq       atomic.Int64
	threadSeq      atomic.Int64
	messageSeq     atomic.Int64
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts:   make(map[int64]*accountEntry),
		usernames:  make(map[string]int64),
		items:      make(map[int64]*itemEntry),
		categories: make(map[int64]model.Category),
		topics:     make(map[int64]model.Topic),
		threads:    make(map[int64]model.Thread),
		messages:   make(map[int64]model.Message),
		likes:      make(map[likeKey]struct{}),
	}
}

// Close ничего не делает: ресурсов для освобождения нет.
func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) account(id int64) (*accountEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return e, nil
}

func (r *MemoryRepository) item(id int64) (*itemEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.items[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return e, nil
}

// CreateAccount сохраняет новый аккаунт с начальным балансом, равным стартовому бонусу.
func (r *MemoryRepository) CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	if acc.StartingBonus < 0 {
		return nil, ErrInvalidAmount
	}

	key := strings.ToLower(acc.Username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.usernames[key]; exists {
		return nil, ErrUsernameTaken
	}

	created := *acc
	created.ID = r.accountSeq.Add(1)
	created.Balance = acc.StartingBonus
	created.CreatedAt = time.Now().UTC()

	r.accounts[created.ID] = &accountEntry{account: created}
	r.usernames[key] = created.ID

	return &created, nil
}

// GetAccount возвращает аккаунт по идентификатору.
func (r *MemoryRepository) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	e, err := r.account(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	acc := e.account
	return &acc, nil
}

// GetAccountByUsername возвращает аккаунт по логину без учёта регистра.
func (r *MemoryRepository) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	r.mu.RLock()
	id, ok := r.usernames[strings.ToLower(username)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrAccountNotFound
	}
	return r.GetAccount(ctx, id)
}

// SetOnline обновляет признак присутствия пользователя.
func (r *MemoryRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	e, err := r.account(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.account.IsOnline = online
	e.mu.Unlock()

	return nil
}

// Credit начисляет монеты на баланс и добавляет запись в журнал.
func (r *MemoryRepository) Credit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	e, err := r.account(accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := r.appendTransaction(e, amount, reason, relatedID)
	return &tx, nil
}

// Debit списывает монеты. При нехватке баланса ничего не меняет и возвращает ErrInsufficientFunds.
func (r *MemoryRepository) Debit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	e, err := r.account(accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.account.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	tx := r.appendTransaction(e, -amount, reason, relatedID)
	return &tx, nil
}

// appendTransaction вызывается под e.mu.
func (r *MemoryRepository) appendTransaction(e *accountEntry, amount int64, reason model.Reason, relatedID *int64) model.Transaction {
	tx := model.Transaction{
		ID:        r.transactionSeq.Add(1),
		AccountID: e.account.ID,
		Amount:    amount,
		Reason:    reason,
		RelatedID: copyID(relatedID),
		CreatedAt: time.Now().UTC(),
	}

	e.account.Balance += amount
	e.history = append(e.history, tx)

	return tx
}

// GetBalance возвращает текущий баланс аккаунта.
func (r *MemoryRepository) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	e, err := r.account(accountID)
	if err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.account.Balance, nil
}

// GetHistory возвращает журнал аккаунта, начиная с самых новых записей.
func (r *MemoryRepository) GetHistory(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	e, err := r.account(accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := make([]model.Transaction, 0, len(e.history))
	for i := len(e.history) - 1; i >= 0; i-- {
		tx := e.history[i]
		tx.RelatedID = copyID(tx.RelatedID)
		res = append(res, tx)
	}

	return res, nil
}

// CreateItem добавляет товар в каталог.
func (r *MemoryRepository) CreateItem(ctx context.Context, item *model.CatalogItem) (*model.CatalogItem, error) {
	if item.Price <= 0 || item.Stock < 0 {
		return nil, ErrInvalidAmount
	}

	created := *item
	created.ID = r.itemSeq.Add(1)
	created.CreatedAt = time.Now().UTC()
	if created.Kind == "" {
		created.Kind = model.ItemKindOther
	}

	r.mu.Lock()
	r.items[created.ID] = &itemEntry{item: created}
	r.mu.Unlock()

	return &created, nil
}

// GetItem возвращает товар по идентификатору.
func (r *MemoryRepository) GetItem(ctx context.Context, id int64) (*model.CatalogItem, error) {
	e, err := r.item(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	item := e.item
	return &item, nil
}

// ListItems возвращает товары в порядке добавления.
func (r *MemoryRepository) ListItems(ctx context.Context) ([]model.CatalogItem, error) {
	r.mu.RLock()
	entries := make([]*itemEntry, 0, len(r.items))
	for _, e := range r.items {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	res := make([]model.CatalogItem, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		res = append(res, e.item)
		e.mu.Unlock()
	}

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// DecrementStock уменьшает остаток товара на единицу и не допускает отрицательного остатка.
func (r *MemoryRepository) DecrementStock(ctx context.Context, id int64) (*model.CatalogItem, error) {
	e, err := r.item(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.item.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	e.item.Stock--

	item := e.item
	return &item, nil
}

// Purchase атомарно списывает цену товара, уменьшает остаток и создаёт запись о владении.
// Блокировки берутся в фиксированном порядке: сначала аккаунт, затем товар.
func (r *MemoryRepository) Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error) {
	ie, err := r.item(itemID)
	if err != nil {
		return nil, err
	}

	ae, err := r.account(accountID)
	if err != nil {
		return nil, err
	}

	ae.mu.Lock()
	defer ae.mu.Unlock()
	ie.mu.Lock()
	defer ie.mu.Unlock()

	if ie.item.Stock <= 0 {
		return nil, ErrOutOfStock
	}
	if ae.account.Balance < ie.item.Price {
		return nil, ErrInsufficientFunds
	}

	related := itemID
	r.appendTransaction(ae, -ie.item.Price, model.ReasonMarketPurchase, &related)
	ie.item.Stock--

	own := model.Ownership{
		ID:          r.ownershipSeq.Add(1),
		AccountID:   accountID,
		ItemID:      itemID,
		PurchasedAt: time.Now().UTC(),
		Active:      true,
	}
	ae.ownerships = append(ae.ownerships, own)

	return &own, nil
}

// GetOwnerships возвращает покупки аккаунта в порядке совершения.
func (r *MemoryRepository) GetOwnerships(ctx context.Context, accountID int64) ([]model.Ownership, error) {
	e, err := r.account(accountID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res := make([]model.Ownership, len(e.ownerships))
	copy(res, e.ownerships)
	return res, nil
}

// CreateCategory создаёт категорию.
func (r *MemoryRepository) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	created := *c
	created.ID = r.categorySeq.Add(1)

	r.forumMu.Lock()
	r.categories[created.ID] = created
	r.forumMu.Unlock()

	return &created, nil
}

// GetCategory возвращает категорию по идентификатору.
func (r *MemoryRepository) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	r.forumMu.RLock()
	defer r.forumMu.RUnlock()

	c, ok := r.categories[id]
	if !ok {
		return nil, ErrCategoryNotFound
	}
	return &c, nil
}

// ListCategories возвращает все категории.
func (r *MemoryRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	r.forumMu.RLock()
	res := make([]model.Category, 0, len(r.categories))
	for _, c := range r.categories {
		res = append(res, c)
	}
	r.forumMu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateTopic создаёт подраздел в существующей категории.
func (r *MemoryRepository) CreateTopic(ctx context.Context, t *model.Topic) (*model.Topic, error) {
	r.forumMu.Lock()
	defer r.forumMu.Unlock()

	if _, ok := r.categories[t.CategoryID]; !ok {
		return nil, ErrCategoryNotFound
	}

	created := *t
	created.ID = r.topicSeq.Add(1)
	r.topics[created.ID] = created

	return &created, nil
}

// GetTopic возвращает подраздел по идентификатору.
func (r *MemoryRepository) GetTopic(ctx context.Context, id int64) (*model.Topic, error) {
	r.forumMu.RLock()
	defer r.forumMu.RUnlock()

	t, ok := r.topics[id]
	if !ok {
		return nil, ErrTopicNotFound
	}
	return &t, nil
}

// ListTopics возвращает подразделы категории.
func (r *MemoryRepository) ListTopics(ctx context.Context, categoryID int64) ([]model.Topic, error) {
	r.forumMu.RLock()
	res := make([]model.Topic, 0)
	for _, t := range r.topics {
		if t.CategoryID == categoryID {
			res = append(res, t)
		}
	}
	r.forumMu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// CreateThread создаёт тему и, если передан текст, её первое сообщение. Первое сообщение не считается ответом.
func (r *MemoryRepository) CreateThread(ctx context.Context, t *model.Thread, firstMessage string) (*model.Thread, *model.Message, error) {
	r.forumMu.Lock()
	defer r.forumMu.Unlock()

	if _, ok := r.topics[t.TopicID]; !ok {
		return nil, nil, ErrTopicNotFound
	}

	now := time.Now().UTC()

	thread := *t
	thread.ID = r.threadSeq.Add(1)
	thread.CreatedAt = now
	thread.LastActivityAt = now
	thread.ReplyCount = 0
	r.threads[thread.ID] = thread

	if firstMessage == "" {
		return &thread, nil, nil
	}

	msg := model.Message{
		ID:        r.messageSeq.Add(1),
		ThreadID:  thread.ID,
		AccountID: thread.AccountID,
		Content:   firstMessage,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.messages[msg.ID] = msg

	return &thread, &msg, nil
}

// GetThread возвращает тему по идентификатору.
func (r *MemoryRepository) GetThread(ctx context.Context, id int64) (*model.Thread, error) {
	r.forumMu.RLock()
	defer r.forumMu.RUnlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, ErrThreadNotFound
	}
	return &t, nil
}

// ListThreads возвращает темы подраздела, сначала самые активные.
func (r *MemoryRepository) ListThreads(ctx context.Context, topicID int64) ([]model.Thread, error) {
	r.forumMu.RLock()
	res := make([]model.Thread, 0)
	for _, t := range r.threads {
		if t.TopicID == topicID {
			res = append(res, t)
		}
	}
	r.forumMu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if !res[i].LastActivityAt.Equal(res[j].LastActivityAt) {
			return res[i].LastActivityAt.After(res[j].LastActivityAt)
		}
		return res[i].ID > res[j].ID
	})
	return res, nil
}

// CreateMessage добавляет ответ в тему и обновляет счётчик ответов и время активности темы.
func (r *MemoryRepository) CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	r.forumMu.Lock()
	defer r.forumMu.Unlock()

	thread, ok := r.threads[m.ThreadID]
	if !ok {
		return nil, ErrThreadNotFound
	}

	now := time.Now().UTC()

	msg := *m
	msg.ID = r.messageSeq.Add(1)
	msg.CreatedAt = now
	msg.UpdatedAt = now
	msg.IsEdited = false
	msg.Likes = 0
	r.messages[msg.ID] = msg

	thread.ReplyCount++
	thread.LastActivityAt = now
	r.threads[thread.ID] = thread

	return &msg, nil
}

// GetMessage возвращает сообщение по идентификатору.
func (r *MemoryRepository) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	r.forumMu.RLock()
	defer r.forumMu.RUnlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}
	return &m, nil
}

// ListMessages возвращает сообщения темы в хронологическом порядке.
func (r *MemoryRepository) ListMessages(ctx context.Context, threadID int64) ([]model.Message, error) {
	r.forumMu.RLock()
	res := make([]model.Message, 0)
	for _, m := range r.messages {
		if m.ThreadID == threadID {
			res = append(res, m)
		}
	}
	r.forumMu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// UpdateMessage меняет текст сообщения и помечает его отредактированным.
func (r *MemoryRepository) UpdateMessage(ctx context.Context, id int64, content string) (*model.Message, error) {
	r.forumMu.Lock()
	defer r.forumMu.Unlock()

	m, ok := r.messages[id]
	if !ok {
		return nil, ErrMessageNotFound
	}

	m.Content = content
	m.UpdatedAt = time.Now().UTC()
	m.IsEdited = true
	r.messages[id] = m

	return &m, nil
}

// DeleteMessage удаляет сообщение вместе с его лайками.
func (r *MemoryRepository) DeleteMessage(ctx context.Context, id int64) error {
	r.forumMu.Lock()
	defer r.forumMu.Unlock()

	if _, ok := r.messages[id]; !ok {
		return ErrMessageNotFound
	}
	delete(r.messages, id)

	for k := range r.likes {
		if k.messageID == id {
			delete(r.likes, k)
		}
	}

	return nil
}

// LikeMessage засчитывает лайк от аккаунта. Повторный лайк возвращает ErrAlreadyLiked.
func (r *MemoryRepository) LikeMessage(ctx context.Context, messageID, accountID int64) (*model.Message, error) {
	r.forumMu.Lock()
	defer r.forumMu.Unlock()

	m, ok := r.messages[messageID]
	if !ok {
		return nil, ErrMessageNotFound
	}

	key := likeKey{messageID: messageID, accountID: accountID}
	if _, liked := r.likes[key]; liked {
		return nil, ErrAlreadyLiked
	}
	r.likes[key] = struct{}{}

	m.Likes++
	r.messages[messageID] = m

	return &m, nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
