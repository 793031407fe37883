package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/forum-coins/internal/metrics"
	custommiddleware "github.com/mmeshcher/forum-coins/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware форума.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.Logger(h.logger))
	r.Use(metrics.InstrumentHandler)

	// promhttp сжимает ответ сам.
	r.Handle("/metrics", metrics.Handler())

	r.With(custommiddleware.GzipMiddleware).Route("/api", func(r chi.Router) {
		r.Post("/auth/verify-identity", h.VerifyIdentity)
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{categoryID}/topics", h.ListTopics)
		r.Get("/topics/{topicID}/threads", h.ListThreads)
		r.Get("/threads/{threadID}", h.GetThread)
		r.Get("/threads/{threadID}/messages", h.ListMessages)
		r.Get("/market", h.ListItems)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)
			r.Use(h.rateLimiter.Middleware)

			r.Post("/auth/logout", h.Logout)
			r.Get("/auth/me", h.Me)

			r.Post("/categories", h.CreateCategory)
			r.Post("/topics", h.CreateTopic)
			r.Post("/threads", h.CreateThread)

			r.Post("/messages", h.CreateMessage)
			r.Patch("/messages/{messageID}", h.UpdateMessage)
			r.Delete("/messages/{messageID}", h.DeleteMessage)
			r.Post("/messages/{messageID}/like", h.LikeMessage)

			r.Post("/market", h.CreateItem)
			r.Post("/market/{itemID}/buy", h.Buy)

			r.Get("/user/items", h.UserItems)
			r.Get("/user/coins", h.Coins)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	})

	return r
}
