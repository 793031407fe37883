package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/metrics"
	"github.com/mmeshcher/forum-coins/internal/model"
)

// EventType задает вид события форума, за которое начисляются монеты.
type EventType string

const (
	EventThreadCreated  EventType = "thread_created"
	EventMessageCreated EventType = "message_created"
	EventMessageLiked   EventType = "message_liked"
)

// Размеры наград.
const (
	ThreadCreateReward  int64 = 20
	MessageCreateReward int64 = 10
	MessageLikeReward   int64 = 5
)

type reward struct {
	reason model.Reason
	amount int64
}

var rewardSchedule = map[EventType]reward{
	EventThreadCreated:  {reason: model.ReasonThreadCreate, amount: ThreadCreateReward},
	EventMessageCreated: {reason: model.ReasonMessageCreate, amount: MessageCreateReward},
	EventMessageLiked:   {reason: model.ReasonMessageLike, amount: MessageLikeReward},
}

// Event описывает завершённое действие на форуме.
// AccountID получает награду, ActorID совершил действие.
type Event struct {
	AccountID int64
	ActorID   int64
	Type      EventType
	RelatedID int64
}

// RewardDispatcher начисляет монеты за участие в форуме.
type RewardDispatcher struct {
	ledger *Ledger
	logger *zap.Logger
}

// NewRewardDispatcher создаёт диспетчер наград поверх журнала.
func NewRewardDispatcher(ledger *Ledger, logger *zap.Logger) *RewardDispatcher {
	return &RewardDispatcher{ledger: ledger, logger: logger}
}

// Award начисляет награду и возвращает ошибку журнала.
func (d *RewardDispatcher) Award(ctx context.Context, accountID int64, reason model.Reason, amount int64, relatedID *int64) error {
	if _, err := d.ledger.Credit(ctx, accountID, amount, reason, relatedID); err != nil {
		metrics.RecordReward(string(reason), metrics.ResultFailed, amount)
		return err
	}

	metrics.RecordReward(string(reason), metrics.ResultSuccess, amount)
	d.logger.Debug("reward credited",
		zap.Int64("accountID", accountID),
		zap.String("reason", string(reason)),
		zap.Int64("amount", amount),
	)
	return nil
}

// Dispatch начисляет награду за событие по фиксированному расписанию.
// Ошибки только логируются: действие на форуме уже зафиксировано и не откатывается.
// Отмена ctx (например, обрыв соединения клиента) начисление не прерывает.
// Возвращает true, если монеты были начислены.
func (d *RewardDispatcher) Dispatch(ctx context.Context, ev Event) bool {
	ctx = context.WithoutCancel(ctx)

	r, ok := rewardSchedule[ev.Type]
	if !ok {
		d.logger.Warn("unknown reward event", zap.String("type", string(ev.Type)))
		return false
	}

	if ev.Type == EventMessageLiked && ev.ActorID == ev.AccountID {
		return false
	}

	relatedID := ev.RelatedID
	if err := d.Award(ctx, ev.AccountID, r.reason, r.amount, &relatedID); err != nil {
		d.logger.Warn("reward dispatch failed",
			zap.Int64("accountID", ev.AccountID),
			zap.String("event", string(ev.Type)),
			zap.Int64("relatedID", ev.RelatedID),
			zap.Error(err),
		)
		return false
	}
	return true
}
