package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestManager() *Manager {
	return NewManager("unit-test-secret-0123456789", "auth-service")
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	uid := uuid.New()

	signed, expiresAt, err := m.Sign(uid, "alice", TypeAccess, 15*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	claims, err := m.Verify(signed, TypeAccess)
	require.NoError(t, err)
	require.Equal(t, uid, claims.UserID)
	require.Equal(t, "alice", claims.Username)
	require.WithinDuration(t, expiresAt, claims.ExpiresAt, time.Second)
	require.False(t, claims.IssuedAt.IsZero())
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	other := NewManager("another-secret-entirely-....", "auth-service")

	signed, _, err := m.Sign(uuid.New(), "alice", TypeAccess, 15*time.Minute)
	require.NoError(t, err)

	_, err = other.Verify(signed, TypeAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Malformed(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	for _, raw := range []string{"", "not-a-jwt", "a.b", "a.b.c.d"} {
		_, err := m.Verify(raw, TypeAccess)
		require.ErrorIs(t, err, ErrTokenMalformed, "raw=%q", raw)
	}
}

func TestVerify_WrongTokenType(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	refresh, _, err := m.Sign(uuid.New(), "alice", TypeRefresh, time.Hour)
	require.NoError(t, err)

	_, err = m.Verify(refresh, TypeAccess)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	signed, _, err := m.Sign(uuid.New(), "alice", TypeAccess, time.Second)
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().UTC().Add(time.Hour) }

	_, err = m.Verify(signed, TypeAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

// Токен, действительный ровно до "сейчас", уже просрочен: граница истечения
// исключающая, допуск рассинхронизации часов нулевой.
func TestVerify_ExpiryBoundaryIsExclusive(t *testing.T) {
	t.Parallel()

	m := newTestManager()

	issuedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute

	m.now = func() time.Time { return issuedAt }
	signed, expiresAt, err := m.Sign(uuid.New(), "alice", TypeAccess, ttl)
	require.NoError(t, err)

	// За мгновение до exp токен ещё валиден.
	m.now = func() time.Time { return expiresAt.Add(-time.Second) }
	_, err = m.Verify(signed, TypeAccess)
	require.NoError(t, err)

	// Ровно в exp — уже нет.
	m.now = func() time.Time { return expiresAt }
	_, err = m.Verify(signed, TypeAccess)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSign_RotationYieldsDistinctTokens(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	uid := uuid.New()

	first, _, err := m.Sign(uid, "alice", TypeAccess, 15*time.Minute)
	require.NoError(t, err)

	second, _, err := m.Sign(uid, "alice", TypeAccess, 15*time.Minute)
	require.NoError(t, err)

	// jti уникален, поэтому даже одинаковые клеймы дают разные токены.
	require.NotEqual(t, first, second)
}
