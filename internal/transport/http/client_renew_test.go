package http

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mealplanner/auth-service/internal/models"
	"github.com/mealplanner/auth-service/pkg/authclient"
)

// Сквозной сценарий клиент+сервер: перехватчик authclient обновляет пару
// через настоящий POST /token/renew этого роутера. Пинит wire-контракт
// обмена: тело ровно {accessToken, refreshToken}, строгий декодер сервера
// обязан его принять и ответить ротацией.
func TestScenario_ClientRenewsThroughServer(t *testing.T) {
	t.Parallel()

	srv, svc, st := newServer(t)

	uid := uuid.New()
	user := &models.User{
		ID:           uid,
		Username:     "alice",
		PasswordHash: mustBcrypt(t, "correct-Pw1"),
	}

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	pair, _, err := svc.LoginUser(context.Background(), "alice", "correct-Pw1")
	require.NoError(t, err)

	// Access-токен сессии негоден (протух и был заменён мусором),
	// refresh — настоящий: ровно состояние клиента перед обновлением.
	store := authclient.NewMemoryStore()
	require.NoError(t, store.Set(authclient.TokenPair{
		AccessToken:  "stale-access",
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    time.Now().Add(-time.Minute).Unix(),
	}))

	oldHash := hashOf(pair.RefreshToken)
	st.EXPECT().RefreshTokenByHash(gomock.Any(), oldHash).Return(&models.RefreshToken{
		RefreshTokenHash: oldHash,
		UserID:           uid,
		CreatedAt:        time.Now().UTC(),
		ExpiresAt:        time.Now().UTC().Add(24 * time.Hour),
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), uid).Return(user, nil)
	st.EXPECT().RevokeRefreshTokenIfActive(gomock.Any(), oldHash).Return(true, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	client := authclient.New(srv.URL, authclient.WithStore(store))

	resp, err := client.HTTPClient().Get(srv.URL + "/me")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var me struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&me))
	require.Equal(t, uid.String(), me.UserID)
	require.Equal(t, "alice", me.Username)

	// В хранилище клиента — ротация: оба токена новые.
	fresh, ok, err := store.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, "stale-access", fresh.AccessToken)
	require.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	require.Equal(t, authclient.StateAuthenticated, client.Session().State())
}
