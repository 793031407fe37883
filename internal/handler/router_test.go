package handler

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mmeshcher/forum-coins/internal/identity"
	"github.com/mmeshcher/forum-coins/internal/middleware"
	"github.com/mmeshcher/forum-coins/internal/model"
	"github.com/mmeshcher/forum-coins/internal/repository"
	"github.com/mmeshcher/forum-coins/internal/service"
	"github.com/mmeshcher/forum-coins/internal/session"
)

type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		c.cookie = ck
	}
	return rec
}

func registerClient(t *testing.T, router http.Handler, username string) *client {
	t.Helper()

	c := &client{t: t, router: router}
	rec := c.do(http.MethodPost, "/api/auth/register", map[string]any{
		"username":    username,
		"password":    "secret1",
		"tcNo":        "10000000146",
		"firstName":   "Test",
		"lastName":    "User",
		"yearOfBirth": 1990,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, c.cookie)
	return c
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := zap.NewNop()
	svc := service.NewService(repository.NewMemoryRepository(), identity.FormatVerifier{}, logger, 50)
	h := NewHandler(svc, logger, middleware.NewAuthMiddleware("test-secret"),
		middleware.NewRateLimiter(0, logger), session.NewMemoryCache(time.Minute))
	return h.SetupRouter()
}

func TestRouter_EarnAndSpendScenario(t *testing.T) {
	router := newTestRouter(t)

	author := registerClient(t, router, "author")
	fan := registerClient(t, router, "fan")

	rec := author.do(http.MethodPost, "/api/categories", categoryRequest{Name: "General"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var cat categoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cat))

	rec = author.do(http.MethodPost, "/api/topics", topicRequest{CategoryID: cat.ID, Name: "Introductions"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var topic topicResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&topic))

	rec = author.do(http.MethodPost, "/api/threads", threadRequest{TopicID: topic.ID, Title: "Hello", Content: "first post"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created createThreadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.NotNil(t, created.FirstMessage)
	require.NotNil(t, created.Coins)
	assert.Equal(t, int64(70), *created.Coins)
	assert.Equal(t, int64(0), created.Thread.ReplyCount)

	rec = fan.do(http.MethodPost, fmt.Sprintf("/api/messages/%d/like", created.FirstMessage.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var liked likeResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&liked))
	assert.True(t, liked.Rewarded)

	rec = author.do(http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me model.AccountSnapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&me))
	assert.Equal(t, int64(75), me.Balance)

	rec = author.do(http.MethodPost, "/api/market", itemRequest{Name: "Verified Badge", Price: 100, Stock: 1, Kind: "badge"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var item itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&item))

	rec = author.do(http.MethodPost, fmt.Sprintf("/api/market/%d/buy", item.ID), nil)
	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "insufficient_funds", decodeError(t, rec).Error)

	rec = author.do(http.MethodGet, "/api/user/coins", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var coins coinsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&coins))
	assert.Equal(t, int64(75), coins.Coins)
	require.Len(t, coins.Transactions, 2)
	assert.Equal(t, "message_like", coins.Transactions[0].Reason)
	assert.Equal(t, "thread_create", coins.Transactions[1].Reason)

	rec = author.do(http.MethodGet, "/api/market", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var items []itemResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].Stock)
}

func TestRouter_OnlyAuthorEditsMessage(t *testing.T) {
	router := newTestRouter(t)

	author := registerClient(t, router, "author")
	other := registerClient(t, router, "other")

	rec := author.do(http.MethodPost, "/api/categories", categoryRequest{Name: "Design"})
	var cat categoryResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cat))
	rec = author.do(http.MethodPost, "/api/topics", topicRequest{CategoryID: cat.ID, Name: "UI"})
	var topic topicResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&topic))
	rec = author.do(http.MethodPost, "/api/threads", threadRequest{TopicID: topic.ID, Title: "Palette", Content: "colors"})
	var created createThreadResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	path := fmt.Sprintf("/api/messages/%d", created.FirstMessage.ID)

	rec = other.do(http.MethodPatch, path, editMessageRequest{Content: "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = author.do(http.MethodPatch, path, editMessageRequest{Content: "more colors"})
	require.Equal(t, http.StatusOK, rec.Code)
	var edited messageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&edited))
	assert.True(t, edited.IsEdited)

	rec = author.do(http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = author.do(http.MethodGet, fmt.Sprintf("/api/threads/%d/messages", created.Thread.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []messageResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msgs))
	assert.Empty(t, msgs)
}

func TestRouter_LogoutClearsSession(t *testing.T) {
	router := newTestRouter(t)
	c := registerClient(t, router, "ada")

	rec := c.do(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = c.do(http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouter_MetricsEndpoint(t *testing.T) {
	router := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/market", nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "forum_http_requests_total")
}

func TestRouter_MetricsCompressedOnce(t *testing.T) {
	router := newTestRouter(t)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/market", nil))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"gzip"}, rec.Result().Header.Values("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(body), "# HELP"), "unexpected exposition: %q", string(body[:min(len(body), 16)]))
	assert.Contains(t, string(body), `forum_http_requests_total{method="GET",route="/api/market",status="200"}`)
}

func TestRouter_GzipRequestAndResponse(t *testing.T) {
	router := newTestRouter(t)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	require.NoError(t, json.NewEncoder(zw).Encode(map[string]any{
		"username":    "zipped",
		"password":    "secret1",
		"tcNo":        "10000000146",
		"firstName":   "Zip",
		"lastName":    "User",
		"yearOfBirth": 1990,
	}))
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	var snap model.AccountSnapshot
	require.NoError(t, json.NewDecoder(zr).Decode(&snap))
	assert.Equal(t, "zipped", snap.Username)
	assert.Equal(t, int64(50), snap.Balance)
}

func TestRouter_InvalidGzipBody(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_gzip_body", decodeError(t, rec).Error)
}
