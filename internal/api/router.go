package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/UkralStul/civic-forum-service/internal/dataloader"
	"github.com/UkralStul/civic-forum-service/internal/identity"
)

// NewRouter собирает HTTP-маршруты сервиса. Чтение доступно анонимно,
// запись требует токен; лоадеры имен авторов живут в контексте каждого
// запроса.
func NewRouter(h *Handler, resolver identity.Resolver, jwtSecret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return dataloader.Middleware(resolver, next)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Чтение: токен не обязателен, но учитывается для viewerVote
		r.Group(func(r chi.Router) {
			r.Use(Auth(jwtSecret, false))
			r.Get("/posts", h.ListPosts)
			r.Get("/posts/{id}/thread", h.GetThread)
			r.Get("/posts/{id}/subscribe", h.SubscribeThread)
		})

		// Запись: только аутентифицированные вызывающие
		r.Group(func(r chi.Router) {
			r.Use(Auth(jwtSecret, true))
			r.Post("/posts", h.CreatePost)
			r.Patch("/posts/{id}", h.UpdatePost)
			r.Delete("/posts/{id}", h.DeletePost)
			r.Post("/posts/{id}/vote", h.Vote)
			r.Post("/posts/{id}/lock", h.SetLocked)
			r.Post("/posts/{id}/pin", h.SetPinned)
		})
	})

	return r
}
