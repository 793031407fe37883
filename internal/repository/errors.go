package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound возвращается, если запрошенная сущность отсутствует.
var ErrNotFound = errors.New("not found")

var (
	// ErrAccountNotFound возвращается, если аккаунт не найден.
	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	// ErrItemNotFound возвращается, если товар магазина не найден.
	ErrItemNotFound     = fmt.Errorf("catalog item %w", ErrNotFound)
	ErrCategoryNotFound = fmt.Errorf("category %w", ErrNotFound)
	ErrTopicNotFound    = fmt.Errorf("topic %w", ErrNotFound)
	ErrThreadNotFound   = fmt.Errorf("thread %w", ErrNotFound)
	ErrMessageNotFound  = fmt.Errorf("message %w", ErrNotFound)
)

var (
	// ErrInsufficientFunds возвращается при попытке списать больше, чем есть на балансе.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrOutOfStock возвращается, если товар закончился.
	ErrOutOfStock = errors.New("out of stock")
	// ErrInvalidAmount возвращается для неположительной суммы или некорректной цены.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrUsernameTaken возвращается при регистрации с уже занятым логином.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrAlreadyLiked возвращается при повторном лайке того же сообщения.
	ErrAlreadyLiked = errors.New("message already liked")
)
