// Package model содержит доменные сущности форума и его экономики монет.
package model

import "time"

// Account представляет зарегистрированного пользователя форума и его баланс монет.
type Account struct {
	ID            int64
	Username      string
	DisplayName   string
	Avatar        string
	PasswordHash  []byte
	Balance       int64
	StartingBonus int64
	Verified      bool
	IsOnline      bool
	CreatedAt     time.Time
}

// AccountSnapshot хранит копию аккаунта без секретов для кеша сессий.
type AccountSnapshot struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Avatar      string `json:"avatar,omitempty"`
	Balance     int64  `json:"coins"`
	Verified    bool   `json:"verified"`
	IsOnline    bool   `json:"isOnline"`
}

// Snapshot возвращает публичный снимок аккаунта.
func (a *Account) Snapshot() AccountSnapshot {
	return AccountSnapshot{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Avatar:      a.Avatar,
		Balance:     a.Balance,
		Verified:    a.Verified,
		IsOnline:    a.IsOnline,
	}
}

// Reason описывает причину изменения баланса.
type Reason string

const (
	ReasonThreadCreate   Reason = "thread_create"
	ReasonMessageCreate  Reason = "message_create"
	ReasonMessageLike    Reason = "message_like"
	ReasonMarketPurchase Reason = "market_purchase"
)

// Transaction описывает неизменяемую запись журнала монет. Amount положителен для начислений и отрицателен для списаний.
type Transaction struct {
	ID        int64
	AccountID int64
	Amount    int64
	Reason    Reason
	RelatedID *int64
	CreatedAt time.Time
}

// ItemKind описывает тип товара в магазине.
type ItemKind string

const (
	ItemKindBadge  ItemKind = "badge"
	ItemKindAvatar ItemKind = "avatar"
	ItemKindTheme  ItemKind = "theme"
	ItemKindOther  ItemKind = "other"
)

// CatalogItem описывает товар магазина с ценой и остатком.
type CatalogItem struct {
	ID          int64
	Name        string
	Description string
	Image       string
	Price       int64
	Stock       int64
	Kind        ItemKind
	CreatedAt   time.Time
}

// Ownership подтверждает покупку товара аккаунтом.
type Ownership struct {
	ID          int64
	AccountID   int64
	ItemID      int64
	PurchasedAt time.Time
	Active      bool
}

// Category описывает раздел форума верхнего уровня.
type Category struct {
	ID          int64
	Name        string
	Description string
}

// Topic описывает подраздел внутри категории.
type Topic struct {
	ID          int64
	CategoryID  int64
	Name        string
	Description string
}

// Thread описывает тему обсуждения.
type Thread struct {
	ID             int64
	TopicID        int64
	AccountID      int64
	Title          string
	Tag            string
	CreatedAt      time.Time
	LastActivityAt time.Time
	ReplyCount     int64
}

// Message описывает сообщение в теме.
type Message struct {
	ID        int64
	ThreadID  int64
	AccountID int64
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
	IsEdited  bool
	Likes     int64
}
