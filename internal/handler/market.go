package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/service"
)

// ListItems возвращает витрину магазина.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.handleError(w, "list items", err)
		return
	}

	resp := make([]itemResponse, 0, len(items))
	for _, it := range items {
		resp = append(resp, toItem(it))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateItem добавляет товар в магазин.
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.CreateItem(r.Context(), service.NewItem{
		Name:        req.Name,
		Description: req.Description,
		Image:       req.Image,
		Price:       req.Price,
		Stock:       req.Stock,
		Kind:        model.ItemKind(req.Kind),
	})
	if err != nil {
		h.handleError(w, "create item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toItem(*item))
}

// Buy покупает товар для текущего пользователя.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}
	itemID, ok := urlID(w, r, "itemID")
	if !ok {
		return
	}

	own, err := h.service.Purchase(r.Context(), id, itemID)
	if err != nil {
		h.handleError(w, "purchase", err, zap.Int64("accountID", id), zap.Int64("itemID", itemID))
		return
	}

	writeJSON(w, http.StatusCreated, purchaseResponse{
		ID:          own.ID,
		ItemID:      own.ItemID,
		PurchasedAt: formatTime(own.PurchasedAt),
		Active:      own.Active,
		Coins:       coinsOf(h.refreshSession(r.Context(), id)),
	})
}

// UserItems возвращает товары, купленные текущим пользователем.
func (h *Handler) UserItems(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	owned, err := h.service.Ownerships(r.Context(), id)
	if err != nil {
		h.handleError(w, "list ownerships", err, zap.Int64("accountID", id))
		return
	}

	resp := make([]ownershipResponse, 0, len(owned))
	for _, o := range owned {
		resp = append(resp, toOwnership(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Coins возвращает баланс и журнал операций текущего пользователя.
func (h *Handler) Coins(w http.ResponseWriter, r *http.Request) {
	id, ok := accountID(w, r)
	if !ok {
		return
	}

	balance, err := h.service.Balance(r.Context(), id)
	if err != nil {
		h.handleError(w, "get balance", err, zap.Int64("accountID", id))
		return
	}

	history, err := h.service.History(r.Context(), id)
	if err != nil {
		h.handleError(w, "get history", err, zap.Int64("accountID", id))
		return
	}

	resp := coinsResponse{Coins: balance, Transactions: make([]transactionResponse, 0, len(history))}
	for _, tx := range history {
		resp.Transactions = append(resp.Transactions, toTransaction(tx))
	}
	writeJSON(w, http.StatusOK, resp)
}
