package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mmeshcher/forum-coins/internal/model"
)

// NewThread содержит данные новой темы. Content становится первым сообщением, если не пуст.
type NewThread struct {
	TopicID int64
	Title   string
	Tag     string
	Content string
}

// ListCategories возвращает все разделы форума.
func (s *Service) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

// CreateCategory создаёт раздел с непустым названием.
func (s *Service) CreateCategory(ctx context.Context, name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name: %w", ErrInvalidInput)
	}
	return s.repo.CreateCategory(ctx, &model.Category{Name: name, Description: description})
}

// ListTopics возвращает подразделы категории.
func (s *Service) ListTopics(ctx context.Context, categoryID int64) ([]model.Topic, error) {
	if _, err := s.repo.GetCategory(ctx, categoryID); err != nil {
		return nil, err
	}
	return s.repo.ListTopics(ctx, categoryID)
}

// CreateTopic создаёт подраздел в существующей категории.
func (s *Service) CreateTopic(ctx context.Context, categoryID int64, name, description string) (*model.Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("topic name: %w", ErrInvalidInput)
	}
	return s.repo.CreateTopic(ctx, &model.Topic{CategoryID: categoryID, Name: name, Description: description})
}

// ListThreads возвращает темы подраздела, самые активные первыми.
func (s *Service) ListThreads(ctx context.Context, topicID int64) ([]model.Thread, error) {
	if _, err := s.repo.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	return s.repo.ListThreads(ctx, topicID)
}

// GetThread возвращает тему по идентификатору.
func (s *Service) GetThread(ctx context.Context, id int64) (*model.Thread, error) {
	return s.repo.GetThread(ctx, id)
}

// CreateThread создаёт тему и начисляет автору награду за неё.
// Первое сообщение темы отдельной награды не получает.
func (s *Service) CreateThread(ctx context.Context, accountID int64, in NewThread) (*model.Thread, *model.Message, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, nil, fmt.Errorf("thread title: %w", ErrInvalidInput)
	}

	thread, first, err := s.repo.CreateThread(ctx, &model.Thread{
		TopicID:   in.TopicID,
		AccountID: accountID,
		Title:     title,
		Tag:       in.Tag,
	}, strings.TrimSpace(in.Content))
	if err != nil {
		return nil, nil, err
	}

	s.rewards.Dispatch(ctx, Event{
		AccountID: accountID,
		ActorID:   accountID,
		Type:      EventThreadCreated,
		RelatedID: thread.ID,
	})

	return thread, first, nil
}

// ListMessages возвращает сообщения темы в порядке создания.
func (s *Service) ListMessages(ctx context.Context, threadID int64) ([]model.Message, error) {
	if _, err := s.repo.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, threadID)
}

// CreateMessage добавляет ответ в тему и начисляет автору награду.
func (s *Service) CreateMessage(ctx context.Context, accountID, threadID int64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content: %w", ErrInvalidInput)
	}

	msg, err := s.repo.CreateMessage(ctx, &model.Message{
		ThreadID:  threadID,
		AccountID: accountID,
		Content:   content,
	})
	if err != nil {
		return nil, err
	}

	s.rewards.Dispatch(ctx, Event{
		AccountID: accountID,
		ActorID:   accountID,
		Type:      EventMessageCreated,
		RelatedID: msg.ID,
	})

	return msg, nil
}

// UpdateMessage меняет текст сообщения. Редактировать может только автор.
func (s *Service) UpdateMessage(ctx context.Context, accountID, messageID int64, content string) (*model.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("message content: %w", ErrInvalidInput)
	}

	if err := s.checkAuthor(ctx, accountID, messageID); err != nil {
		return nil, err
	}
	return s.repo.UpdateMessage(ctx, messageID, content)
}

// DeleteMessage удаляет сообщение. Уже начисленные награды не списываются.
func (s *Service) DeleteMessage(ctx context.Context, accountID, messageID int64) error {
	if err := s.checkAuthor(ctx, accountID, messageID); err != nil {
		return err
	}
	return s.repo.DeleteMessage(ctx, messageID)
}

// LikeMessage ставит лайк и начисляет награду автору, если лайк не собственный.
// Возвращает сообщение и признак начисления награды.
func (s *Service) LikeMessage(ctx context.Context, accountID, messageID int64) (*model.Message, bool, error) {
	msg, err := s.repo.LikeMessage(ctx, messageID, accountID)
	if err != nil {
		return nil, false, err
	}

	rewarded := s.rewards.Dispatch(ctx, Event{
		AccountID: msg.AccountID,
		ActorID:   accountID,
		Type:      EventMessageLiked,
		RelatedID: msg.ID,
	})

	return msg, rewarded, nil
}

func (s *Service) checkAuthor(ctx context.Context, accountID, messageID int64) error {
	msg, err := s.repo.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AccountID != accountID {
		return ErrForbidden
	}
	return nil
}
