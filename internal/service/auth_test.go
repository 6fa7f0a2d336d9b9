package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mealplanner/auth-service/internal/config"
	"github.com/mealplanner/auth-service/internal/models"
	"github.com/mealplanner/auth-service/internal/storage"
	"github.com/mealplanner/auth-service/internal/token"
	"github.com/mealplanner/auth-service/mocks"
)

func testCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-test-secret-0123456789",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-service",
	}
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	cfg := testCfg()
	svc := New(st, token.NewManager(cfg.JWTSecret, cfg.Issuer), cfg)
	return svc, st, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := hashPassword(pw)
	require.NoError(t, err)
	return h
}

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, uid, err := svc.RegisterUser(ctx, "alice", "Abcdef12")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTokenTTL), tp.AccessExpiresAt, 2*time.Second)
}

func TestRegisterUser_InvalidUsername(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	for _, name := range []string{"", "ab", "has space", "bad!char"} {
		_, _, err := svc.RegisterUser(context.Background(), name, "Abcdef12")
		require.ErrorIs(t, err, ErrInvalidUsername, "username=%q", name)
	}
}

func TestRegisterUser_WeakOrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "alice", "")
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, _, err = svc.RegisterUser(context.Background(), "alice", "short")
	require.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = svc.RegisterUser(context.Background(), "alice", "alllowercase1")
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_UsernameTaken(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByUsername(gomock.Any(), "alice").
		Return(&models.User{ID: uuid.New(), Username: "alice"}, nil)

	_, _, err := svc.RegisterUser(context.Background(), "alice", "Abcdef12")
	require.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginUser_OK_ClaimsRoundTrip(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	uid := uuid.New()
	user := &models.User{
		ID:           uid,
		Username:     "alice",
		PasswordHash: mustHashPW(t, "correct-Pw1"),
	}

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, gotUID, err := svc.LoginUser(ctx, "alice", "correct-Pw1")
	require.NoError(t, err)
	require.Equal(t, uid, gotUID)

	// Выданный access-токен проходит валидацию и несёт те же клеймы.
	claims, err := svc.ValidateToken(ctx, tp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, uid, claims.UserID)
	require.Equal(t, "alice", claims.Username)
}

// Несуществующий пользователь и неверный пароль дают одну и ту же ошибку:
// ответ не позволяет перечислять зарегистрированные имена.
func TestLoginUser_UnknownUserAndWrongPassword_Indistinguishable(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	st.EXPECT().UserByUsername(gomock.Any(), "ghost").Return(nil, storage.ErrNotFound)
	_, _, errUnknown := svc.LoginUser(ctx, "ghost", "whatever1A")

	st.EXPECT().UserByUsername(gomock.Any(), "alice").
		Return(&models.User{ID: uuid.New(), Username: "alice", PasswordHash: mustHashPW(t, "correct-Pw1")}, nil)
	_, _, errWrongPW := svc.LoginUser(ctx, "alice", "wrong-Pw1")

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrongPW, ErrInvalidCredentials)
}

func TestLoginUser_StorageError_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(nil, errors.New("db down"))

	_, _, err := svc.LoginUser(context.Background(), "alice", "correct-Pw1")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateToken_ExpiredAfterTTL(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	st := mocks.NewMockStorage(ctrl)

	cfg := testCfg()
	cfg.AccessTokenTTL = time.Millisecond
	svc := New(st, token.NewManager(cfg.JWTSecret, cfg.Issuer), cfg)

	user := &models.User{ID: uuid.New(), Username: "alice", PasswordHash: mustHashPW(t, "correct-Pw1")}
	st.EXPECT().UserByUsername(gomock.Any(), "alice").Return(user, nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	tp, _, err := svc.LoginUser(context.Background(), "alice", "correct-Pw1")
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)

	_, err = svc.ValidateToken(context.Background(), tp.AccessToken)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateToken_Garbage(t *testing.T) {
	t.Parallel()

	svc, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.ValidateToken(context.Background(), "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
