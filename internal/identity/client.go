// Package identity предоставляет проверку личности пользователя перед регистрацией.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmeshcher/forum-coins/internal/validation"
)

// Request содержит данные, по которым проверяется личность.
type Request struct {
	NationalID  string `json:"tcNo"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	YearOfBirth int    `json:"yearOfBirth"`
}

// Result описывает ответ сервиса проверки.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Verifier проверяет личность пользователя.
type Verifier interface {
	Verify(ctx context.Context, req Request) (Result, error)
}

// Client инкапсулирует HTTP-взаимодействие с внешним сервисом проверки личности.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт HTTP-клиент для обращения к сервису проверки по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Verify отправляет данные пользователя во внешний сервис и возвращает его решение.
func (c *Client) Verify(ctx context.Context, in Request) (Result, error) {
	if c == nil || c.baseURL == "" {
		return Result{}, fmt.Errorf("identity client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	body, err := json.Marshal(in)
	if err != nil {
		return Result{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/identity/verify", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}

	return result, nil
}

// FormatVerifier проверяет только формат данных и используется, когда внешний сервис не настроен.
type FormatVerifier struct{}

// Verify принимает любую личность с корректным национальным номером и годом рождения.
func (FormatVerifier) Verify(_ context.Context, in Request) (Result, error) {
	if !validation.IsValidNationalID(in.NationalID) {
		return Result{Success: false, Message: "invalid national id format"}, nil
	}
	if !validation.IsValidBirthYear(in.YearOfBirth, time.Now().Year()) {
		return Result{Success: false, Message: "invalid year of birth"}, nil
	}
	return Result{Success: true, Message: "identity format accepted"}, nil
}
