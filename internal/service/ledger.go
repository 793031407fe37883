package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/repository"
)

// Ledger ведёт балансы и журнал операций с монетами.
type Ledger struct {
	repo LedgerRepository
}

// NewLedger создаёт журнал поверх хранилища.
func NewLedger(repo LedgerRepository) *Ledger {
	return &Ledger{repo: repo}
}

// Credit начисляет amount монет и добавляет запись в журнал.
func (l *Ledger) Credit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("credit %d: %w", amount, repository.ErrInvalidAmount)
	}
	return l.repo.Credit(ctx, accountID, amount, reason, relatedID)
}

// Debit списывает amount монет. При нехватке средств баланс не меняется.
func (l *Ledger) Debit(ctx context.Context, accountID, amount int64, reason model.Reason, relatedID *int64) (*model.Transaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("debit %d: %w", amount, repository.ErrInvalidAmount)
	}
	return l.repo.Debit(ctx, accountID, amount, reason, relatedID)
}

// Balance возвращает текущий баланс аккаунта.
func (l *Ledger) Balance(ctx context.Context, accountID int64) (int64, error) {
	return l.repo.GetBalance(ctx, accountID)
}

// History возвращает журнал операций аккаунта, новые записи первыми.
func (l *Ledger) History(ctx context.Context, accountID int64) ([]model.Transaction, error) {
	return l.repo.GetHistory(ctx, accountID)
}
