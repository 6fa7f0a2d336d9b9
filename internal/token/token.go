// token реализует подпись и проверку токенов сервиса на общем секрете.
//
// Основные аспекты:
//   - Оба токена пары (access и refresh) — JWT с подписью HS256; различаются
//     клеймом token_type и временем жизни.
//   - Проверка срока действия строгая: токен с exp == now уже просрочен
//     (нулевой допуск рассинхронизации часов; граница исключающая).
//   - Manager не хранит изменяемого состояния кроме секрета; безопасен для
//     конкурентного использования.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mealplanner/auth-service/internal/models"
)

var (
	// ErrTokenMalformed — строка не разбирается как JWT (не три сегмента,
	// битый base64 и т.п.).
	ErrTokenMalformed = errors.New("token malformed")

	// ErrTokenInvalid — подпись не сходится, неподдерживаемый алгоритм
	// или неожиданный token_type.
	ErrTokenInvalid = errors.New("token invalid")

	// ErrTokenExpired — срок действия токена истёк (exp <= now).
	ErrTokenExpired = errors.New("token expired")
)

// Типы токенов в клейме token_type.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// signedClaims — полезная нагрузка подписываемого токена.
type signedClaims struct {
	UserID    string `json:"uid"`
	Username  string `json:"uname"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// Manager выполняет операции подписи и проверки токенов.
type Manager struct {
	secret []byte
	issuer string

	// now подменяется в тестах для контроля границы истечения.
	now func() time.Time
}

// NewManager создаёт Manager с общим секретом.
// Секрет валидируется на уровне конфигурации до запуска сервиса.
func NewManager(secret, issuer string) *Manager {
	return &Manager{
		secret: []byte(secret),
		issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Sign выпускает подписанный токен типа typ со временем жизни ttl.
// Клейм jti уникален для каждого выпуска, поэтому повторная подпись тех же
// данных даёт другой токен (важно для ротации).
func (m *Manager) Sign(userID uuid.UUID, username, typ string, ttl time.Duration) (string, time.Time, error) {
	const op = "token.Sign"

	now := m.now()
	expiresAt := now.Add(ttl)

	claims := signedClaims{
		UserID:    userID.String(),
		Username:  username,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// Verify проверяет подпись и срок действия токена и возвращает клеймы.
// wantType задаёт ожидаемый token_type: access-токен нельзя предъявить
// эндпоинту обновления и наоборот.
//
// Маппинг ошибок:
//   - строка не парсится -> ErrTokenMalformed;
//   - подпись/алгоритм/тип не сходятся -> ErrTokenInvalid;
//   - exp <= now -> ErrTokenExpired (граница исключающая).
func (m *Manager) Verify(raw, wantType string) (*models.Claims, error) {
	const op = "token.Verify"

	parsed, err := jwt.ParseWithClaims(raw, &signedClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
			}

			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%s: %w", op, ErrTokenMalformed)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		default:
			return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
		}
	}

	claims, ok := parsed.Claims.(*signedClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}

	if claims.TokenType != wantType {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}

	// Библиотечная проверка exp включающая на границе; контракт сервиса —
	// исключающая (exp == now уже просрочен), поэтому проверяем явно.
	if claims.ExpiresAt == nil || !m.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrTokenInvalid)
	}

	out := &models.Claims{
		UserID:    uid,
		Username:  claims.Username,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}

	return out, nil
}
