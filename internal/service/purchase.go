package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/metrics"
	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/repository"
)

// PurchaseEngine выполняет покупки в магазине. Списание, уменьшение остатка и запись о владении
// применяются хранилищем как одна операция.
type PurchaseEngine struct {
	repo   CatalogRepository
	logger *zap.Logger
}

// NewPurchaseEngine создаёт движок покупок.
func NewPurchaseEngine(repo CatalogRepository, logger *zap.Logger) *PurchaseEngine {
	return &PurchaseEngine{repo: repo, logger: logger}
}

// Purchase покупает товар itemID для аккаунта accountID.
func (p *PurchaseEngine) Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error) {
	own, err := p.repo.Purchase(ctx, accountID, itemID)
	metrics.RecordPurchase(purchaseResult(err))
	if err != nil {
		p.logger.Info("purchase rejected",
			zap.Int64("accountID", accountID),
			zap.Int64("itemID", itemID),
			zap.Error(err),
		)
		return nil, err
	}

	p.logger.Info("purchase completed",
		zap.Int64("accountID", accountID),
		zap.Int64("itemID", itemID),
		zap.Int64("ownershipID", own.ID),
	)
	return own, nil
}

func purchaseResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, repository.ErrOutOfStock):
		return metrics.ResultOutOfStock
	case errors.Is(err, repository.ErrInsufficientFunds):
		return metrics.ResultInsufficientFunds
	case errors.Is(err, repository.ErrNotFound):
		return metrics.ResultNotFound
	default:
		return metrics.ResultFailed
	}
}
