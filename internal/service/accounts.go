package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/forum-coins/internal/identity"
	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/repository"
	"github.com/mmeshcher/forum-coins/internal/validation"
)

const defaultBcryptCost = bcrypt.DefaultCost

// Registration содержит данные для регистрации нового пользователя.
type Registration struct {
	Username    string
	Password    string
	DisplayName string
	Avatar      string
	Identity    identity.Request
}

// VerifyIdentity проверяет формат данных и передаёт их сервису проверки личности.
func (s *Service) VerifyIdentity(ctx context.Context, req identity.Request) (identity.Result, error) {
	if !validation.IsValidNationalID(req.NationalID) {
		return identity.Result{Success: false, Message: "national id must be 11 digits and must not start with 0"}, nil
	}

	res, err := s.verifier.Verify(ctx, req)
	if err != nil {
		return identity.Result{}, fmt.Errorf("verify identity: %w", err)
	}
	return res, nil
}

// Register регистрирует пользователя после успешной проверки личности и начисляет стартовый бонус.
func (s *Service) Register(ctx context.Context, reg Registration) (*model.Account, error) {
	username := strings.TrimSpace(reg.Username)
	if username == "" || reg.Password == "" {
		return nil, fmt.Errorf("username and password: %w", ErrInvalidInput)
	}

	res, err := s.VerifyIdentity(ctx, reg.Identity)
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrIdentityRejected, res.Message)
	}

	hashed, err := s.hashPassword(reg.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(reg.DisplayName)
	if displayName == "" {
		displayName = username
	}

	acc, err := s.repo.CreateAccount(ctx, &model.Account{
		Username:      username,
		DisplayName:   displayName,
		Avatar:        reg.Avatar,
		PasswordHash:  hashed,
		StartingBonus: s.startingBonus,
		Verified:      true,
		IsOnline:      true,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("account registered", zap.Int64("accountID", acc.ID), zap.String("username", acc.Username))
	return acc, nil
}

// Authenticate проверяет логин и пароль и отмечает пользователя как находящегося в сети.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	acc, err := s.repo.GetAccountByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.repo.SetOnline(ctx, acc.ID, true); err != nil {
		return nil, err
	}
	acc.IsOnline = true

	return acc, nil
}

// Logout отмечает пользователя как вышедшего из сети.
func (s *Service) Logout(ctx context.Context, accountID int64) error {
	return s.repo.SetOnline(ctx, accountID, false)
}

// GetAccount возвращает аккаунт по идентификатору.
func (s *Service) GetAccount(ctx context.Context, accountID int64) (*model.Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hashed, nil
}
