// Package repository содержит реализации хранилища форума: в PostgreSQL и в памяти процесса.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/forum-coins/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

var retryDelays = []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 500 * time.Millisecond}

// withRetry повторяет fn при конфликте сериализации, дедлоке или обрыве соединения.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for i := 0; i <= len(retryDelays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		if !isRetryable(err) || i == len(retryDelays) {
			break
		}

		timer := time.NewTimer(retryDelays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
	}
	return isConnectionError(err)
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func (r *PostgresRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

const accountColumns = `id, username, display_name, avatar, password_hash, balance, starting_bonus, verified, is_online, created_at`

func scanAccount(row scanner) (*model.Account, error) {
	var a model.Account
	err := row.Scan(&a.ID, &a.Username, &a.DisplayName, &a.Avatar, &a.PasswordHash,
		&a.Balance, &a.StartingBonus, &a.Verified, &a.IsOnline, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}

// CreateAccount создаёт аккаунт с балансом, равным стартовому бонусу.
func (r *PostgresRepository) CreateAccount(ctx context.Context, acc *model.Account) (*model.Account, error) {
	if acc.StartingBonus < 0 {
		return nil, ErrInvalidAmount
	}

	row := r.pool.QueryRow(ctx,
		`INSERT INTO accounts (username, display_name, avatar, password_hash, balance, starting_bonus, verified, is_online)
		 VALUES ($1, $2, $3, $4, $5, $5, $6, $7)
		 RETURNING `+accountColumns,
		acc.Username, acc.DisplayName, acc.Avatar, acc.PasswordHash, acc.StartingBonus, acc.Verified, acc.IsOnline,
	)

	created, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, fmt.Errorf("%w: %s", ErrUsernameTaken, acc.Username)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return created, nil
}

// GetAccount возвращает аккаунт по идентификатору.
func (r *PostgresRepository) GetAccount(ctx context.Context, id int64) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// GetAccountByUsername возвращает аккаунт по логину без учёта регистра.
func (r *PostgresRepository) GetAccountByUsername(ctx context.Context, username string) (*model.Account, error) {
	return scanAccount(r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE lower(username) = lower($1)`, username))
}

// SetOnline обновляет признак присутствия пользователя.
func (r *PostgresRepository) SetOnline(ctx context.Context, id int64, online bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_online = $2 WHERE id = $1`, id, online)
	if err != nil {
		return fmt.Errorf("update online status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// lockBalance блокирует строку аккаунта до конца транзакции и возвращает текущий баланс.
func lockBalance(ctx context.Context, tx pgx.Tx, accountID int64) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("lock account for update: %w", err)
	}
	return balance, nil
}

// applyTransaction меняет баланс и добавляет запись журнала в рамках уже открытой транзакции.
func applyTransaction(ctx context.Context, tx pgx.Tx, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2 WHERE id = $1`, accountID, amount); err != nil {
		return nil, fmt.Errorf("update balance: %w", err)
	}

	t := model.Transaction{
		AccountID: accountID,
		Amount:    amount,
		Reason:    reason,
		RelatedID: copyID(relatedID),
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO transactions (account_id, amount, reason, related_id)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		accountID, amount, string(reason), relatedID,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	return &t, nil
}

// Credit начисляет монеты на баланс и добавляет запись в журнал в одной транзакции.
func (r *PostgresRepository) Credit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *model.Transaction
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := lockBalance(ctx, tx, accountID); err != nil {
			return err
		}

		t, err := applyTransaction(ctx, tx, accountID, amount, reason, relatedID)
		if err != nil {
			return err
		}
		res = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Debit списывает монеты. Блокировка строки аккаунта сериализует параллельные списания.
func (r *PostgresRepository) Debit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var res *model.Transaction
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if balance < amount {
			return ErrInsufficientFunds
		}

		t, err := applyTransaction(ctx, tx, accountID, -amount, reason, relatedID)
		if err != nil {
			return err
		}
		res = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetBalance возвращает текущий баланс аккаунта.
func (r *PostgresRepository) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("select balance: %w", err)
	}
	return balance, nil
}

// GetHistory возвращает журнал аккаунта, начиная с самых новых записей.
func (r *PostgresRepository) GetHistory(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	if _, err := r.GetBalance(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, amount, reason, related_id, created_at
		 FROM transactions
		 WHERE account_id = $1
		 ORDER BY created_at DESC, id DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}
	defer rows.Close()

	res := make([]model.Transaction, 0)
	for rows.Next() {
		var (
			t      model.Transaction
			reason string
		)
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Amount, &reason, &t.RelatedID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Reason = model.Reason(reason)
		res = append(res, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

const itemColumns = `id, name, description, image, price, stock, kind, created_at`

func scanItem(row scanner) (*model.CatalogItem, error) {
	var (
		it   model.CatalogItem
		kind string
	)
	err := row.Scan(&it.ID, &it.Name, &it.Description, &it.Image, &it.Price, &it.Stock, &kind, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("scan catalog item: %w", err)
	}
	it.Kind = model.ItemKind(kind)
	return &it, nil
}

// CreateItem добавляет товар в каталог.
func (r *PostgresRepository) CreateItem(ctx context.Context, item *model.CatalogItem) (*model.CatalogItem, error) {
	if item.Price <= 0 || item.Stock < 0 {
		return nil, ErrInvalidAmount
	}

	kind := item.Kind
	if kind == "" {
		kind = model.ItemKindOther
	}

	return scanItem(r.pool.QueryRow(ctx,
		`INSERT INTO catalog_items (name, description, image, price, stock, kind)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+itemColumns,
		item.Name, item.Description, item.Image, item.Price, item.Stock, string(kind),
	))
}

// GetItem возвращает товар по идентификатору.
func (r *PostgresRepository) GetItem(ctx context.Context, id int64) (*model.CatalogItem, error) {
	return scanItem(r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM catalog_items WHERE id = $1`, id))
}

// ListItems возвращает товары в порядке добавления.
func (r *PostgresRepository) ListItems(ctx context.Context) ([]model.CatalogItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM catalog_items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select catalog items: %w", err)
	}
	defer rows.Close()

	res := make([]model.CatalogItem, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DecrementStock уменьшает остаток товара на единицу и не допускает отрицательного остатка.
func (r *PostgresRepository) DecrementStock(ctx context.Context, id int64) (*model.CatalogItem, error) {
	var res *model.CatalogItem
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		stock, err := lockStock(ctx, tx, id)
		if err != nil {
			return err
		}
		if stock <= 0 {
			return ErrOutOfStock
		}

		it, err := scanItem(tx.QueryRow(ctx,
			`UPDATE catalog_items SET stock = stock - 1 WHERE id = $1 RETURNING `+itemColumns, id))
		if err != nil {
			return err
		}
		res = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func lockStock(ctx context.Context, tx pgx.Tx, itemID int64) (int64, error) {
	var stock int64
	err := tx.QueryRow(ctx, `SELECT stock FROM catalog_items WHERE id = $1 FOR UPDATE`, itemID).Scan(&stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrItemNotFound
		}
		return 0, fmt.Errorf("lock catalog item for update: %w", err)
	}
	return stock, nil
}

// Purchase выполняет покупку в одной транзакции: строки аккаунта и товара блокируются
// в фиксированном порядке (аккаунт, затем товар), чтобы параллельные покупки не приводили к дедлокам.
func (r *PostgresRepository) Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error) {
	var res *model.Ownership
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var price int64
		err := tx.QueryRow(ctx, `SELECT price FROM catalog_items WHERE id = $1`, itemID).Scan(&price)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return fmt.Errorf("select catalog item: %w", err)
		}

		balance, err := lockBalance(ctx, tx, accountID)
		if err != nil {
			return err
		}

		stock, err := lockStock(ctx, tx, itemID)
		if err != nil {
			return err
		}

		if stock <= 0 {
			return ErrOutOfStock
		}
		if balance < price {
			return ErrInsufficientFunds
		}

		related := itemID
		if _, err := applyTransaction(ctx, tx, accountID, -price, model.ReasonMarketPurchase, &related); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `UPDATE catalog_items SET stock = stock - 1 WHERE id = $1`, itemID); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}

		own := model.Ownership{AccountID: accountID, ItemID: itemID}
		err = tx.QueryRow(ctx,
			`INSERT INTO ownerships (account_id, item_id, active)
			 VALUES ($1, $2, TRUE)
			 RETURNING id, purchased_at, active`,
			accountID, itemID,
		).Scan(&own.ID, &own.PurchasedAt, &own.Active)
		if err != nil {
			return fmt.Errorf("insert ownership: %w", err)
		}

		res = &own
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetOwnerships возвращает покупки аккаунта в порядке совершения.
func (r *PostgresRepository) GetOwnerships(ctx context.Context, accountID int64) ([]model.Ownership, error) {
	if _, err := r.GetBalance(ctx, accountID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, account_id, item_id, purchased_at, active
		 FROM ownerships
		 WHERE account_id = $1
		 ORDER BY id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("select ownerships: %w", err)
	}
	defer rows.Close()

	res := make([]model.Ownership, 0)
	for rows.Next() {
		var o model.Ownership
		if err := rows.Scan(&o.ID, &o.AccountID, &o.ItemID, &o.PurchasedAt, &o.Active); err != nil {
			return nil, fmt.Errorf("scan ownership: %w", err)
		}
		res = append(res, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateCategory создаёт категорию.
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	created := *c
	err := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, description) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Description,
	).Scan(&created.ID)
	if err != nil {
		return nil, fmt.Errorf("insert category: %w", err)
	}
	return &created, nil
}

// GetCategory возвращает категорию по идентификатору.
func (r *PostgresRepository) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	var c model.Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, description FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("select category: %w", err)
	}
	return &c, nil
}

// ListCategories возвращает все категории.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Category, error) {
		var c model.Category
		err := row.Scan(&c.ID, &c.Name, &c.Description)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect categories: %w", err)
	}
	return res, nil
}

// CreateTopic создаёт подраздел в существующей категории.
func (r *PostgresRepository) CreateTopic(ctx context.Context, t *model.Topic) (*model.Topic, error) {
	created := *t
	err := r.pool.QueryRow(ctx,
		`INSERT INTO topics (category_id, name, description) VALUES ($1, $2, $3) RETURNING id`,
		t.CategoryID, t.Name, t.Description,
	).Scan(&created.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("insert topic: %w", err)
	}
	return &created, nil
}

// GetTopic возвращает подраздел по идентификатору.
func (r *PostgresRepository) GetTopic(ctx context.Context, id int64) (*model.Topic, error) {
	var t model.Topic
	err := r.pool.QueryRow(ctx, `SELECT id, category_id, name, description FROM topics WHERE id = $1`, id).
		Scan(&t.ID, &t.CategoryID, &t.Name, &t.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTopicNotFound
		}
		return nil, fmt.Errorf("select topic: %w", err)
	}
	return &t, nil
}

// ListTopics возвращает подразделы категории.
func (r *PostgresRepository) ListTopics(ctx context.Context, categoryID int64) ([]model.Topic, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, category_id, name, description FROM topics WHERE category_id = $1 ORDER BY id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("select topics: %w", err)
	}

	res, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Topic, error) {
		var t model.Topic
		err := row.Scan(&t.ID, &t.CategoryID, &t.Name, &t.Description)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect topics: %w", err)
	}
	return res, nil
}

const threadColumns = `id, topic_id, account_id, title, tag, created_at, last_activity_at, reply_count`

func scanThread(row scanner) (*model.Thread, error) {
	var t model.Thread
	err := row.Scan(&t.ID, &t.TopicID, &t.AccountID, &t.Title, &t.Tag, &t.CreatedAt, &t.LastActivityAt, &t.ReplyCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThreadNotFound
		}
		return nil, fmt.Errorf("scan thread: %w", err)
	}
	return &t, nil
}

const messageColumns = `id, thread_id, account_id, content, created_at, updated_at, is_edited, likes`

func scanMessage(row scanner) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.ThreadID, &m.AccountID, &m.Content, &m.CreatedAt, &m.UpdatedAt, &m.IsEdited, &m.Likes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("scan message: %w", err)
	}
	return &m, nil
}

// CreateThread создаёт тему и, если передан текст, её первое сообщение. Первое сообщение не считается ответом.
func (r *PostgresRepository) CreateThread(ctx context.Context, t *model.Thread, firstMessage string) (*model.Thread, *model.Message, error) {
	var (
		thread *model.Thread
		msg    *model.Message
	)

	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		thread, err = scanThread(tx.QueryRow(ctx,
			`INSERT INTO threads (topic_id, account_id, title, tag)
			 VALUES ($1, $2, $3, $4)
			 RETURNING `+threadColumns,
			t.TopicID, t.AccountID, t.Title, t.Tag,
		))
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
				return ErrTopicNotFound
			}
			return err
		}

		if firstMessage == "" {
			return nil
		}

		msg, err = scanMessage(tx.QueryRow(ctx,
			`INSERT INTO messages (thread_id, account_id, content)
			 VALUES ($1, $2, $3)
			 RETURNING `+messageColumns,
			thread.ID, thread.AccountID, firstMessage,
		))
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return thread, msg, nil
}

// GetThread возвращает тему по идентификатору.
func (r *PostgresRepository) GetThread(ctx context.Context, id int64) (*model.Thread, error) {
	return scanThread(r.pool.QueryRow(ctx, `SELECT `+threadColumns+` FROM threads WHERE id = $1`, id))
}

// ListThreads возвращает темы подраздела, сначала самые активные.
func (r *PostgresRepository) ListThreads(ctx context.Context, topicID int64) ([]model.Thread, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+threadColumns+`
		 FROM threads
		 WHERE topic_id = $1
		 ORDER BY last_activity_at DESC, id DESC`,
		topicID,
	)
	if err != nil {
		return nil, fmt.Errorf("select threads: %w", err)
	}
	defer rows.Close()

	res := make([]model.Thread, 0)
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateMessage добавляет ответ в тему и обновляет счётчик ответов и время активности темы.
func (r *PostgresRepository) CreateMessage(ctx context.Context, m *model.Message) (*model.Message, error) {
	var res *model.Message
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE threads SET reply_count = reply_count + 1, last_activity_at = now() WHERE id = $1`,
			m.ThreadID,
		)
		if err != nil {
			return fmt.Errorf("update thread activity: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrThreadNotFound
		}

		res, err = scanMessage(tx.QueryRow(ctx,
			`INSERT INTO messages (thread_id, account_id, content)
			 VALUES ($1, $2, $3)
			 RETURNING `+messageColumns,
			m.ThreadID, m.AccountID, m.Content,
		))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// GetMessage возвращает сообщение по идентификатору.
func (r *PostgresRepository) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id))
}

// ListMessages возвращает сообщения темы в хронологическом порядке.
func (r *PostgresRepository) ListMessages(ctx context.Context, threadID int64) ([]model.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE thread_id = $1 ORDER BY id`, threadID)
	if err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	res := make([]model.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateMessage меняет текст сообщения и помечает его отредактированным.
func (r *PostgresRepository) UpdateMessage(ctx context.Context, id int64, content string) (*model.Message, error) {
	return scanMessage(r.pool.QueryRow(ctx,
		`UPDATE messages SET content = $2, updated_at = now(), is_edited = TRUE
		 WHERE id = $1
		 RETURNING `+messageColumns,
		id, content,
	))
}

// DeleteMessage удаляет сообщение вместе с его лайками.
func (r *PostgresRepository) DeleteMessage(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMessageNotFound
	}
	return nil
}

// LikeMessage засчитывает лайк от аккаунта. Повторный лайк возвращает ErrAlreadyLiked.
func (r *PostgresRepository) LikeMessage(ctx context.Context, messageID, accountID int64) (*model.Message, error) {
	var res *model.Message
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `SELECT id FROM messages WHERE id = $1 FOR UPDATE`, messageID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrMessageNotFound
			}
			return fmt.Errorf("lock message: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO message_likes (message_id, account_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			messageID, accountID,
		)
		if err != nil {
			return fmt.Errorf("insert like: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyLiked
		}

		res, err = scanMessage(tx.QueryRow(ctx,
			`UPDATE messages SET likes = likes + 1 WHERE id = $1 RETURNING `+messageColumns, messageID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
