package models

import (
	"time"

	"github.com/google/uuid"
)

// Claims — проверенное содержимое access-токена.
// Доверять полям можно только после проверки подписи и срока действия;
// иной валидации содержимого на границе не выполняется.
type Claims struct {
	UserID    uuid.UUID
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}
