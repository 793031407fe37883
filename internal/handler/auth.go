package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/identity"
	"github.com/mmeshcher/forum-coins/internal/service"
	"github.com/mmeshcher/forum-coins/internal/session"
)

func (f identityFields) request() identity.Request {
	return identity.Request{
		NationalID:  f.NationalID,
		FirstName:   f.FirstName,
		LastName:    f.LastName,
		YearOfBirth: f.YearOfBirth,
	}
}

// VerifyIdentity проверяет личность без регистрации.
func (h *Handler) VerifyIdentity(w http.ResponseWriter, r *http.Request) {
	var req verifyIdentityRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.VerifyIdentity(r.Context(), req.request())
	if err != nil {
		h.handleError(w, "verify identity", err)
		return
	}

	status := http.StatusOK
	if !res.Success {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}

// Register регистрирует пользователя, устанавливает cookie и кладёт снимок аккаунта в кеш.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.service.Register(r.Context(), service.Registration{
		Username:    req.Username,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
		Identity:    req.request(),
	})
	if err != nil {
		h.handleError(w, "register", err, zap.String("username", req.Username))
		return
	}

	snap := acc.Snapshot()
	if err := h.sessions.Set(r.Context(), snap); err != nil {
		h.logger.Warn("update session cache", zap.Int64("accountID", acc.ID), zap.Error(err))
	}

	h.authMiddleware.SetAuthCookie(w, acc.ID)
	writeJSON(w, http.StatusCreated, snap)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	acc, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.handleError(w, "login", err)
		return
	}

	snap := acc.Snapshot()
	if err := h.sessions.Set(r.Context(), snap); err != nil {
		h.logger.Warn("update session cache", zap.Int64("accountID", acc.ID), zap.Error(err))
	}

	h.authMiddleware.SetAuthCookie(w, acc.ID)
	writeJSON(w, http.StatusOK, snap)
}

// Logout отмечает пользователя вышедшим и удаляет сессию.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	if err := h.service.Logout(r.Context(), id); err != nil {
		h.handleError(w, "logout", err, zap.Int64("accountID", id))
		return
	}

	h.invalidateSession(r.Context(), id)
	h.authMiddleware.ClearAuthCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает снимок текущего аккаунта из кеша сессий, при промахе читает хранилище.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	snap, err := h.sessions.Get(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if !errors.Is(err, session.ErrMiss) {
		h.logger.Warn("read session cache", zap.Int64("accountID", id), zap.Error(err))
	}

	acc, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.handleError(w, "get account", err, zap.Int64("accountID", id))
		return
	}

	fresh := acc.Snapshot()
	if err := h.sessions.Set(r.Context(), fresh); err != nil {
		h.logger.Warn("update session cache", zap.Int64("accountID", id), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, fresh)
}
