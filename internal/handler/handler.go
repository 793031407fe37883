// Package handler содержит HTTP-обработчики API форума.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/identity"
	"github.com/mmeshcher/forum-coins/internal/middleware"
	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/repository"
	"github.com/mmeshcher/forum-coins/internal/service"
	"github.com/mmeshcher/forum-coins/internal/session"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	VerifyIdentity(ctx context.Context, req identity.Request) (identity.Result, error)
	Register(ctx context.Context, reg service.Registration) (*model.Account, error)
	Authenticate(ctx context.Context, username, password string) (*model.Account, error)
	Logout(ctx context.Context, accountID int64) error
	GetAccount(ctx context.Context, accountID int64) (*model.Account, error)

	Balance(ctx context.Context, accountID int64) (int64, error)
	History(ctx context.Context, accountID int64) ([]model.Transaction, error)

	ListItems(ctx context.Context) ([]model.CatalogItem, error)
	CreateItem(ctx context.Context, item service.NewItem) (*model.CatalogItem, error)
	Purchase(ctx context.Context, accountID, itemID int64) (*model.Ownership, error)
	Ownerships(ctx context.Context, accountID int64) ([]service.OwnedItem, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, name, description string) (*model.Category, error)
	ListTopics(ctx context.Context, categoryID int64) ([]model.Topic, error)
	CreateTopic(ctx context.Context, categoryID int64, name, description string) (*model.Topic, error)
	ListThreads(ctx context.Context, topicID int64) ([]model.Thread, error)
	GetThread(ctx context.Context, id int64) (*model.Thread, error)
	CreateThread(ctx context.Context, accountID int64, in service.NewThread) (*model.Thread, *model.Message, error)
	ListMessages(ctx context.Context, threadID int64) ([]model.Message, error)
	CreateMessage(ctx context.Context, accountID, threadID int64, content string) (*model.Message, error)
	UpdateMessage(ctx context.Context, accountID, messageID int64, content string) (*model.Message, error)
	DeleteMessage(ctx context.Context, accountID, messageID int64) error
	LikeMessage(ctx context.Context, accountID, messageID int64) (*model.Message, bool, error)
}

// Handler реализует HTTP-обработчики API форума.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	rateLimiter    *middleware.RateLimiter
	sessions       session.Cache
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, limiter *middleware.RateLimiter, sessions session.Cache) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		rateLimiter:    limiter,
		sessions:       sessions,
		validate:       validator.New(),
	}
}

// ErrorResponse описывает тело ответа с ошибкой.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind string, details map[string]string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Details: details})
}

// decode читает JSON из тела запроса и проверяет теги validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", map[string]string{"body": err.Error()})
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeError(w, http.StatusBadRequest, "validation_failed", nil)
			return false
		}
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fmt.Sprintf("failed on '%s' tag", fe.Tag())
		}
		writeError(w, http.StatusBadRequest, "validation_failed", details)
		return false
	}

	return true
}

// handleError отображает доменную ошибку в HTTP-ответ.
func (h *Handler) handleError(w http.ResponseWriter, op string, err error, fields ...zap.Field) {
	var (
		status int
		kind   string
	)

	switch {
	case errors.Is(err, repository.ErrNotFound):
		status, kind = http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrInsufficientFunds):
		status, kind = http.StatusPaymentRequired, "insufficient_funds"
	case errors.Is(err, repository.ErrOutOfStock):
		status, kind = http.StatusConflict, "out_of_stock"
	case errors.Is(err, repository.ErrInvalidAmount):
		status, kind = http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, repository.ErrUsernameTaken):
		status, kind = http.StatusConflict, "username_taken"
	case errors.Is(err, repository.ErrAlreadyLiked):
		status, kind = http.StatusConflict, "already_liked"
	case errors.Is(err, service.ErrForbidden):
		status, kind = http.StatusForbidden, "forbidden"
	case errors.Is(err, service.ErrInvalidCredentials):
		status, kind = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, service.ErrIdentityRejected):
		status, kind = http.StatusBadRequest, "identity_rejected"
	case errors.Is(err, service.ErrInvalidInput):
		status, kind = http.StatusBadRequest, "invalid_input"
	default:
		h.logger.Error(op+" error", append(fields, zap.Error(err))...)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
		return
	}

	writeError(w, status, kind, map[string]string{"message": err.Error()})
}

func accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := middleware.GetAccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
		return 0, false
	}
	return id, true
}

func urlID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_id", map[string]string{param: "must be a positive integer"})
		return 0, false
	}
	return id, true
}

// refreshSession перечитывает аккаунт и обновляет его снимок в кеше сессий.
// Ошибка кеша не влияет на ответ: снимок восстановится при следующем запросе /me.
// Если баланс изменился между чтением и записью в кеш, снимок сбрасывается.
func (h *Handler) refreshSession(ctx context.Context, accountID int64) *model.AccountSnapshot {
	acc, err := h.service.GetAccount(ctx, accountID)
	if err != nil {
		h.logger.Warn("reload account for session", zap.Int64("accountID", accountID), zap.Error(err))
		return nil
	}

	snap := acc.Snapshot()
	if err := h.sessions.Set(ctx, snap); err != nil {
		h.logger.Warn("update session cache", zap.Int64("accountID", accountID), zap.Error(err))
		return &snap
	}

	latest, err := h.service.GetAccount(ctx, accountID)
	if err != nil {
		h.invalidateSession(ctx, accountID)
		return &snap
	}
	if latest.Balance != snap.Balance {
		h.invalidateSession(ctx, accountID)
		fresh := latest.Snapshot()
		return &fresh
	}
	return &snap
}

func (h *Handler) invalidateSession(ctx context.Context, accountID int64) {
	if err := h.sessions.Delete(ctx, accountID); err != nil {
		h.logger.Warn("invalidate session cache", zap.Int64("accountID", accountID), zap.Error(err))
	}
}

func coinsOf(snap *model.AccountSnapshot) *int64 {
	if snap == nil {
		return nil
	}
	v := snap.Balance
	return &v
}
