// authclient — клиентская сторона сессии: хранение пары токенов,
// подстановка bearer-токена в исходящие запросы и прозрачное обновление
// пары по refresh-токену при ответе 401.
//
// Основной сценарий: приложение один раз выполняет Login, дальше ходит
// в API через HTTPClient(); перехватчик сам подставляет access-токен,
// а при его протухании координирует единственный запрос обновления на
// все конкурирующие вызовы. Если обновить пару не удалось, сессия
// завершается и все последующие запросы получают ErrSessionExpired.
package authclient

import "errors"

// ErrSessionExpired возвращается, когда пару токенов не удалось обновить
// и сессия завершена. Повторять запрос бессмысленно — нужен новый Login.
var ErrSessionExpired = errors.New("authclient: session expired")

// TokenPair — пара токенов в том виде, в котором её отдаёт сервер.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	// ExpiresAt — unix-время истечения access-токена.
	ExpiresAt int64 `json:"expiresAt"`
}

// Empty сообщает, что пара не содержит токенов.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}
