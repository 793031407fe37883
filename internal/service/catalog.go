package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/repository"
)

// NewItem содержит данные для нового товара магазина.
type NewItem struct {
	Name        string
	Description string
	Image       string
	Price       int64
	Stock       int64
	Kind        model.ItemKind
}

// OwnedItem объединяет покупку с описанием товара.
type OwnedItem struct {
	Ownership model.Ownership
	Item      model.CatalogItem
}

// Catalog управляет товарами магазина.
type Catalog struct {
	repo CatalogRepository
}

// NewCatalog создаёт каталог поверх хранилища.
func NewCatalog(repo CatalogRepository) *Catalog {
	return &Catalog{repo: repo}
}

// ListItems возвращает товары в порядке добавления.
func (c *Catalog) ListItems(ctx context.Context) ([]model.CatalogItem, error) {
	return c.repo.ListItems(ctx)
}

// GetItem возвращает товар по идентификатору.
func (c *Catalog) GetItem(ctx context.Context, id int64) (*model.CatalogItem, error) {
	return c.repo.GetItem(ctx, id)
}

// CreateItem добавляет товар. Цена должна быть положительной, остаток неотрицательным.
func (c *Catalog) CreateItem(ctx context.Context, in NewItem) (*model.CatalogItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("item name: %w", ErrInvalidInput)
	}
	if in.Price <= 0 || in.Stock < 0 {
		return nil, fmt.Errorf("price %d, stock %d: %w", in.Price, in.Stock, repository.ErrInvalidAmount)
	}

	switch in.Kind {
	case model.ItemKindBadge, model.ItemKindAvatar, model.ItemKindTheme, model.ItemKindOther:
	case "":
		in.Kind = model.ItemKindOther
	default:
		return nil, fmt.Errorf("item kind %q: %w", in.Kind, ErrInvalidInput)
	}

	return c.repo.CreateItem(ctx, &model.CatalogItem{
		Name:        name,
		Description: in.Description,
		Image:       in.Image,
		Price:       in.Price,
		Stock:       in.Stock,
		Kind:        in.Kind,
	})
}

// Ownerships возвращает покупки аккаунта в порядке совершения вместе с товарами.
func (c *Catalog) Ownerships(ctx context.Context, accountID int64) ([]OwnedItem, error) {
	owns, err := c.repo.GetOwnerships(ctx, accountID)
	if err != nil {
		return nil, err
	}

	items := make(map[int64]*model.CatalogItem)
	result := make([]OwnedItem, 0, len(owns))
	for _, o := range owns {
		it, ok := items[o.ItemID]
		if !ok {
			it, err = c.repo.GetItem(ctx, o.ItemID)
			if err != nil {
				return nil, fmt.Errorf("get owned item %d: %w", o.ItemID, err)
			}
			items[o.ItemID] = it
		}
		result = append(result, OwnedItem{Ownership: o, Item: *it})
	}

	return result, nil
}
