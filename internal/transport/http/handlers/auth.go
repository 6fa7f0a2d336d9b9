package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/mealplanner/auth-service/internal/errors"
	"github.com/mealplanner/auth-service/internal/models"
	"github.com/mealplanner/auth-service/internal/transport/http/middleware"
)

// Имена JSON-полей повторяют контракт фронта meal-planner (camelCase).

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type renewRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    int64  `json:"expiresAt"`
}

type meResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

func tokenPairFromModel(tp *models.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  tp.AccessToken,
		RefreshToken: tp.RefreshToken,
		ExpiresAt:    tp.AccessExpiresAt.Unix(),
	}
}

// Register регистрирует пользователя и возвращает первую пару токенов.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	tp, _, err := h.service.RegisterUser(r.Context(), in.Username, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenPairFromModel(tp))
}

// Login аутентифицирует пользователя и возвращает новую пару токенов.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in credentialsRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	tp, _, err := h.service.LoginUser(r.Context(), in.Username, in.Password)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenPairFromModel(tp))
}

// Renew обновляет пару токенов по refresh-токену (ротация).
// Access-токен из тела не проверяется: решение принимается только по
// refresh-токену, access к этому моменту обычно уже просрочен.
func (h *Handlers) Renew(w http.ResponseWriter, r *http.Request) {
	var in renewRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	tp, _, err := h.service.RefreshToken(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenPairFromModel(tp))
}

// Logout отзывает refresh-токен.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrInvalidArgument)
		return
	}

	if err := h.service.RevokeToken(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// Me возвращает клеймы текущего пользователя; живёт за мидлваром Authenticate.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		// Ошибка конфигурации роутера: хендлер зарегистрирован вне Authenticate.
		apierrors.WriteError(w, r, errors.New("claims missing in context"))
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		UserID:   claims.UserID.String(),
		Username: claims.Username,
	})
}
