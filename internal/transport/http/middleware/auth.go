package middleware

import (
	"context"
	"net/http"
	"strings"

	apierrors "github.com/mealplanner/auth-service/internal/errors"
	"github.com/mealplanner/auth-service/internal/models"
	"github.com/mealplanner/auth-service/internal/service"
)

type ctxClaimsKey struct{}

// ClaimsFromContext достаёт проверенные клеймы текущего запроса.
// Присутствуют только за мидлваром Authenticate.
func ClaimsFromContext(ctx context.Context) (*models.Claims, bool) {
	c, ok := ctx.Value(ctxClaimsKey{}).(*models.Claims)
	return c, ok
}

// Authenticate извлекает Bearer-токен из Authorization, проверяет его через
// сервис и кладёт клеймы в контекст. Запрос без валидного access-токена
// получает 401; содержимое клеймов дальше границы не перепроверяется.
func Authenticate(svc *service.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				apierrors.WriteError(w, r, service.ErrInvalidToken)
				return
			}

			claims, err := svc.ValidateToken(r.Context(), raw)
			if err != nil {
				apierrors.WriteError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxClaimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken достаёт токен из "Authorization: Bearer <token>".
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) <= len(prefix) {
		return ""
	}

	return strings.TrimSpace(auth[len(prefix):])
}
