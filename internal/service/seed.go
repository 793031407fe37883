package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/model"
)

type seedCategory struct {
	name        string
	description string
	topics      [][2]string
}

var seedCategories = []seedCategory{
	{
		name:        "General Discussion",
		description: "General topics and discussions",
		topics: [][2]string{
			{"Introductions", "Introduce yourself to the community"},
			{"Announcements", "Important announcements"},
			{"Forum Help", "Get help with using the forum"},
		},
	},
	{
		name:        "Development",
		description: "Development related discussions",
		topics: [][2]string{
			{"React", "React related discussions"},
			{"Next.js", "Next.js related discussions"},
			{"JavaScript", "JavaScript related discussions"},
		},
	},
	{
		name:        "Design",
		description: "Design related discussions",
		topics: [][2]string{
			{"UI Design", "UI Design related discussions"},
			{"UX Research", "UX Research related discussions"},
		},
	},
}

var seedItems = []NewItem{
	{
		Name:        "Verified Badge",
		Description: "Verified identity badge shown on the profile page",
		Image:       "/assets/badges/verified.svg",
		Price:       100,
		Stock:       999,
		Kind:        model.ItemKindBadge,
	},
	{
		Name:        "Dark Theme+",
		Description: "Enhanced dark theme with higher contrast and custom accents",
		Image:       "/assets/themes/dark-plus.svg",
		Price:       150,
		Stock:       999,
		Kind:        model.ItemKindTheme,
	},
	{
		Name:        "Premium Avatar",
		Description: "Exclusive avatar frame for premium members",
		Image:       "/assets/avatars/premium.svg",
		Price:       200,
		Stock:       50,
		Kind:        model.ItemKindAvatar,
	},
}

// Seed заполняет пустое хранилище демонстрационными разделами и товарами.
// Если разделы уже есть, ничего не делает.
func (s *Service) Seed(ctx context.Context) error {
	existing, err := s.repo.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}

	for _, sc := range seedCategories {
		cat, err := s.CreateCategory(ctx, sc.name, sc.description)
		if err != nil {
			return fmt.Errorf("seed category %q: %w", sc.name, err)
		}
		for _, t := range sc.topics {
			if _, err := s.CreateTopic(ctx, cat.ID, t[0], t[1]); err != nil {
				return fmt.Errorf("seed topic %q: %w", t[0], err)
			}
		}
	}

	for _, it := range seedItems {
		if _, err := s.catalog.CreateItem(ctx, it); err != nil {
			return fmt.Errorf("seed item %q: %w", it.Name, err)
		}
	}

	s.logger.Info("demo data seeded",
		zap.Int("categories", len(seedCategories)),
		zap.Int("items", len(seedItems)),
	)
	return nil
}
