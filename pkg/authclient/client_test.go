package authclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient_Login_OpensSession(t *testing.T) {
	t.Parallel()

	pair := TokenPair{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    time.Now().Add(time.Minute).Unix(),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/login", r.URL.Path)

		var creds map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		require.Equal(t, "alice", creds["username"])
		require.Equal(t, "correct-Pw1", creds["password"])

		_ = json.NewEncoder(w).Encode(pair)
	}))
	t.Cleanup(srv.Close)

	c, store := newTestClient(t, srv.URL)

	require.NoError(t, c.Login(context.Background(), "alice", "correct-Pw1"))
	require.Equal(t, StateAuthenticated, c.Session().State())

	got, ok, err := store.Get()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pair, got)
}

func TestClient_Login_BadCredentials(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	c, store := newTestClient(t, srv.URL)

	err := c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)

	_, ok, err := store.Get()
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, StateUnauthenticated, c.Session().State())
}

func TestClient_Register(t *testing.T) {
	t.Parallel()

	var called atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/register", r.URL.Path)
		called.Store(true)
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(srv.Close)

	c, store := newTestClient(t, srv.URL)

	require.NoError(t, c.Register(context.Background(), "alice", "correct-Pw1"))
	require.True(t, called.Load())

	// Регистрация сессию не открывает.
	_, ok, err := store.Get()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestClient_Logout_RevokesAndTerminates(t *testing.T) {
	t.Parallel()

	var gotRefresh atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/logout", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotRefresh.Store(body["refreshToken"])
	}))
	t.Cleanup(srv.Close)

	var expired atomic.Int32
	c, store := newTestClient(t, srv.URL, WithOnSessionExpired(func() { expired.Add(1) }))
	require.NoError(t, store.Set(TokenPair{AccessToken: "a", RefreshToken: "refresh-1"}))
	c.Session().Authenticate()

	require.NoError(t, c.Logout(context.Background()))
	require.Equal(t, "refresh-1", gotRefresh.Load())
	require.Equal(t, StateTerminated, c.Session().State())
	require.Equal(t, int32(1), expired.Load())

	_, ok, err := store.Get()
	require.NoError(t, err)
	require.False(t, ok)

	// Повторный выход ничего не делает и не падает.
	require.NoError(t, c.Logout(context.Background()))
	require.Equal(t, int32(1), expired.Load())
}

func TestClient_Logout_ServerDown_StillTerminates(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, store := newTestClient(t, srv.URL)
	require.NoError(t, store.Set(TokenPair{AccessToken: "a", RefreshToken: "r"}))
	c.Session().Authenticate()

	err := c.Logout(context.Background())
	require.Error(t, err)

	// Локально сессия всё равно завершена.
	require.Equal(t, StateTerminated, c.Session().State())
	_, ok, gerr := store.Get()
	require.NoError(t, gerr)
	require.False(t, ok)
}
