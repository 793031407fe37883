package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/service"
)

// ListCategories возвращает разделы форума.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.handleError(w, "list categories", err)
		return
	}

	resp := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		resp = append(resp, toCategory(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateCategory создаёт раздел.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if !h.decode(w, r, &req) {
		return
	}

	cat, err := h.service.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		h.handleError(w, "create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategory(*cat))
}

// ListTopics возвращает подразделы категории.
func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := urlID(w, r, "categoryID")
	if !ok {
		return
	}

	topics, err := h.service.ListTopics(r.Context(), categoryID)
	if err != nil {
		h.handleError(w, "list topics", err, zap.Int64("categoryID", categoryID))
		return
	}

	resp := make([]topicResponse, 0, len(topics))
	for _, t := range topics {
		resp = append(resp, toTopic(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTopic создаёт подраздел.
func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !h.decode(w, r, &req) {
		return
	}

	topic, err := h.service.CreateTopic(r.Context(), req.CategoryID, req.Name, req.Description)
	if err != nil {
		h.handleError(w, "create topic", err)
		return
	}
	writeJSON(w, http.StatusCreated, toTopic(*topic))
}

// ListThreads возвращает темы подраздела.
func (h *Handler) ListThreads(w http.ResponseWriter, r *http.Request) {
	topicID, ok := urlID(w, r, "topicID")
	if !ok {
		return
	}

	threads, err := h.service.ListThreads(r.Context(), topicID)
	if err != nil {
		h.handleError(w, "list threads", err, zap.Int64("topicID", topicID))
		return
	}

	resp := make([]threadResponse, 0, len(threads))
	for _, t := range threads {
		resp = append(resp, toThread(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetThread возвращает тему по идентификатору.
func (h *Handler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID, ok := urlID(w, r, "threadID")
	if !ok {
		return
	}

	thread, err := h.service.GetThread(r.Context(), threadID)
	if err != nil {
		h.handleError(w, "get thread", err, zap.Int64("threadID", threadID))
		return
	}
	writeJSON(w, http.StatusOK, toThread(*thread))
}

// CreateThread создаёт тему от имени текущего пользователя.
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req threadRequest
	if !h.decode(w, r, &req) {
		return
	}

	thread, first, err := h.service.CreateThread(r.Context(), id, service.NewThread{
		TopicID: req.TopicID,
		Title:   req.Title,
		Tag:     req.Tag,
		Content: req.Content,
	})
	if err != nil {
		h.handleError(w, "create thread", err, zap.Int64("accountID", id))
		return
	}

	resp := createThreadResponse{
		Thread: toThread(*thread),
		Coins:  coinsOf(h.refreshSession(r.Context(), id)),
	}
	if first != nil {
		m := toMessage(*first)
		resp.FirstMessage = &m
	}
	writeJSON(w, http.StatusCreated, resp)
}

// ListMessages возвращает сообщения темы.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	threadID, ok := urlID(w, r, "threadID")
	if !ok {
		return
	}

	msgs, err := h.service.ListMessages(r.Context(), threadID)
	if err != nil {
		h.handleError(w, "list messages", err, zap.Int64("threadID", threadID))
		return
	}

	resp := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp = append(resp, toMessage(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateMessage добавляет ответ в тему от имени текущего пользователя.
func (h *Handler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	var req messageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.service.CreateMessage(r.Context(), id, req.ThreadID, req.Content)
	if err != nil {
		h.handleError(w, "create message", err, zap.Int64("accountID", id), zap.Int64("threadID", req.ThreadID))
		return
	}

	writeJSON(w, http.StatusCreated, createMessageResponse{
		Message: toMessage(*msg),
		Coins:   coinsOf(h.refreshSession(r.Context(), id)),
	})
}

// UpdateMessage редактирует сообщение текущего пользователя.
func (h *Handler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	messageID, ok := urlID(w, r, "messageID")
	if !ok {
		return
	}

	var req editMessageRequest
	if !h.decode(w, r, &req) {
		return
	}

	msg, err := h.service.UpdateMessage(r.Context(), id, messageID, req.Content)
	if err != nil {
		h.handleError(w, "update message", err, zap.Int64("messageID", messageID))
		return
	}
	writeJSON(w, http.StatusOK, toMessage(*msg))
}

// DeleteMessage удаляет сообщение текущего пользователя.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	messageID, ok := urlID(w, r, "messageID")
	if !ok {
		return
	}

	if err := h.service.DeleteMessage(r.Context(), id, messageID); err != nil {
		h.handleError(w, "delete message", err, zap.Int64("messageID", messageID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LikeMessage ставит лайк. Снимок автора в кеше сбрасывается, если ему начислены монеты.
func (h *Handler) LikeMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	messageID, ok := urlID(w, r, "messageID")
	if !ok {
		return
	}

	msg, rewarded, err := h.service.LikeMessage(r.Context(), id, messageID)
	if err != nil {
		h.handleError(w, "like message", err, zap.Int64("messageID", messageID))
		return
	}

	if rewarded {
		h.invalidateSession(r.Context(), msg.AccountID)
	}
	writeJSON(w, http.StatusOK, likeResponse{Message: toMessage(*msg), Rewarded: rewarded})
}
