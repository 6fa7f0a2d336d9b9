// http собирает REST-поверхность сервиса: роутер chi, мидлвары и хендлеры.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mealplanner/auth-service/internal/service"
	"github.com/mealplanner/auth-service/internal/transport/http/handlers"
	"github.com/mealplanner/auth-service/internal/transport/http/middleware"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(svc *service.Service, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.Recover(),            // безопасно ловим паники
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
		middleware.Metrics(),            // счётчики/гистограммы запросов
	)
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := handlers.New(svc)

	// Публичные эндпоинты.
	root.Post("/register", h.Register)
	root.Post("/login", h.Login)
	root.Post("/token/renew", h.Renew)
	root.Post("/logout", h.Logout)

	// Эндпоинты за проверкой access-токена.
	root.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(svc))
		r.Get("/me", h.Me)
	})

	return root
}
