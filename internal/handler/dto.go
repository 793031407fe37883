package handler

import (
	"time"

	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/service"
)

type identityFields struct {
	NationalID  string `json:"tcNo" validate:"required,len=11,numeric"`
	FirstName   string `json:"firstName" validate:"required,max=64"`
	LastName    string `json:"lastName" validate:"required,max=64"`
	YearOfBirth int    `json:"yearOfBirth" validate:"required,gte=1900"`
}

type verifyIdentityRequest struct {
	identityFields
}

type registerRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"displayName" validate:"omitempty,max=64"`
	Avatar      string `json:"avatar" validate:"omitempty,url"`
	identityFields
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

type topicRequest struct {
	CategoryID  int64  `json:"categoryId" validate:"required,gt=0"`
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
}

type threadRequest struct {
	TopicID int64  `json:"topicId" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,max=200"`
	Tag     string `json:"tag" validate:"omitempty,max=32"`
	Content string `json:"content" validate:"omitempty,max=10000"`
}

type messageRequest struct {
	ThreadID int64  `json:"threadId" validate:"required,gt=0"`
	Content  string `json:"content" validate:"required,max=10000"`
}

type editMessageRequest struct {
	Content string `json:"content" validate:"required,max=10000"`
}

type itemRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"omitempty,max=500"`
	Image       string `json:"image" validate:"omitempty,max=500"`
	Price       int64  `json:"price" validate:"required,gt=0"`
	Stock       int64  `json:"inStock" validate:"gte=0"`
	Kind        string `json:"type" validate:"omitempty,oneof=badge avatar theme other"`
}

type categoryResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type topicResponse struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"categoryId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type threadResponse struct {
	ID             int64  `json:"id"`
	TopicID        int64  `json:"topicId"`
	AccountID      int64  `json:"userId"`
	Title          string `json:"title"`
	Tag            string `json:"tag,omitempty"`
	CreatedAt      string `json:"createdAt"`
	LastActivityAt string `json:"lastActivityAt"`
	ReplyCount     int64  `json:"replyCount"`
}

type messageResponse struct {
	ID        int64  `json:"id"`
	ThreadID  int64  `json:"threadId"`
	AccountID int64  `json:"userId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	IsEdited  bool   `json:"isEdited"`
	Likes     int64  `json:"likes"`
}

type createThreadResponse struct {
	Thread       threadResponse   `json:"thread"`
	FirstMessage *messageResponse `json:"firstMessage,omitempty"`
	Coins        *int64           `json:"coins,omitempty"`
}

type createMessageResponse struct {
	Message messageResponse `json:"message"`
	Coins   *int64          `json:"coins,omitempty"`
}

type likeResponse struct {
	Message  messageResponse `json:"message"`
	Rewarded bool            `json:"rewarded"`
}

type itemResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Price       int64  `json:"price"`
	Stock       int64  `json:"inStock"`
	Kind        string `json:"type"`
}

type ownershipResponse struct {
	ID          int64        `json:"id"`
	ItemID      int64        `json:"itemId"`
	PurchasedAt string       `json:"purchasedAt"`
	Active      bool         `json:"isActive"`
	Item        itemResponse `json:"item"`
}

type purchaseResponse struct {
	ID          int64  `json:"id"`
	ItemID      int64  `json:"itemId"`
	PurchasedAt string `json:"purchasedAt"`
	Active      bool   `json:"isActive"`
	Coins       *int64 `json:"coins,omitempty"`
}

type transactionResponse struct {
	ID        int64  `json:"id"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
	RelatedID *int64 `json:"relatedId,omitempty"`
	CreatedAt string `json:"createdAt"`
}

type coinsResponse struct {
	Coins        int64                 `json:"coins"`
	Transactions []transactionResponse `json:"transactions"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toCategory(c model.Category) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, Description: c.Description}
}

func toTopic(t model.Topic) topicResponse {
	return topicResponse{ID: t.ID, CategoryID: t.CategoryID, Name: t.Name, Description: t.Description}
}

func toThread(t model.Thread) threadResponse {
	return threadResponse{
		ID:             t.ID,
		TopicID:        t.TopicID,
		AccountID:      t.AccountID,
		Title:          t.Title,
		Tag:            t.Tag,
		CreatedAt:      formatTime(t.CreatedAt),
		LastActivityAt: formatTime(t.LastActivityAt),
		ReplyCount:     t.ReplyCount,
	}
}

func toMessage(m model.Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		ThreadID:  m.ThreadID,
		AccountID: m.AccountID,
		Content:   m.Content,
		CreatedAt: formatTime(m.CreatedAt),
		UpdatedAt: formatTime(m.UpdatedAt),
		IsEdited:  m.IsEdited,
		Likes:     m.Likes,
	}
}

func toItem(it model.CatalogItem) itemResponse {
	return itemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		Image:       it.Image,
		Price:       it.Price,
		Stock:       it.Stock,
		Kind:        string(it.Kind),
	}
}

func toOwnership(o service.OwnedItem) ownershipResponse {
	return ownershipResponse{
		ID:          o.Ownership.ID,
		ItemID:      o.Ownership.ItemID,
		PurchasedAt: formatTime(o.Ownership.PurchasedAt),
		Active:      o.Ownership.Active,
		Item:        toItem(o.Item),
	}
}

func toTransaction(tx model.Transaction) transactionResponse {
	return transactionResponse{
		ID:        tx.ID,
		Amount:    tx.Amount,
		Reason:    string(tx.Reason),
		RelatedID: tx.RelatedID,
		CreatedAt: formatTime(tx.CreatedAt),
	}
}
