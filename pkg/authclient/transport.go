package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultRenewTimeout ограничивает запрос обновления пары: его контекст
// принадлежит координатору, а не первому запросу, который упёрся в 401.
const defaultRenewTimeout = 10 * time.Second

// renewRequest — тело POST /token/renew.
type renewRequest struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Transport — http.RoundTripper, прозрачно сопровождающий запросы
// токенами сессии:
//
//   - пары в хранилище нет — запрос уходит как есть;
//   - пара есть — к запросу добавляется заголовок Authorization: Bearer;
//   - сервер ответил 401 — транспорт один раз обновляет пару по
//     refresh-токену и повторяет исходный запрос с новым access-токеном;
//     повторный 401 отдаётся вызывающему без новых попыток;
//   - обновление не удалось (отказ сервера или сетевая ошибка) — сессия
//     завершается и вызывающий получает ErrSessionExpired.
//
// Сколько бы запросов ни получило 401 одновременно, обновление
// выполняется однократно: конкурирующие вызовы ждут общий результат
// и повторяются уже с новой парой.
type Transport struct {
	base         http.RoundTripper
	store        Store
	session      *Session
	renewURL     string
	renewClient  *http.Client
	renewTimeout time.Duration
	group        singleflight.Group
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport собирает перехватчик. base == nil означает
// http.DefaultTransport; renewURL — полный URL операции обновления пары.
func NewTransport(base http.RoundTripper, store Store, session *Session, renewURL string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}

	return &Transport{
		base:         base,
		store:        store,
		session:      session,
		renewURL:     renewURL,
		renewClient:  &http.Client{},
		renewTimeout: defaultRenewTimeout,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	const op = "authclient.Transport.RoundTrip"

	if t.session.State() == StateTerminated {
		return nil, fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	pair, ok, err := t.store.Get()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		// Сессии нет — не вмешиваемся, запрос идёт анонимно.
		return t.base.RoundTrip(req)
	}

	resp, err := t.base.RoundTrip(withBearer(req, pair.AccessToken))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	// Тело 401 нам не нужно; соединение возвращаем в пул.
	drain(resp)

	// Запрос мог быть отменён, пока сервер отвечал; обновление в таком
	// случае не начинаем.
	if err := req.Context().Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	fresh, err := t.renew(pair)
	if err != nil {
		t.session.Terminate()
		return nil, fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	retry, err := rewindRequest(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Итог повтора окончателен: второй 401 отдаём как есть.
	return t.base.RoundTrip(withBearer(retry, fresh.AccessToken))
}

// renew обновляет пару токенов, схлопывая конкурирующие 401 в один
// запрос к серверу. stale — пара, с которой вызывающий получил 401.
func (t *Transport) renew(stale TokenPair) (TokenPair, error) {
	t.session.setState(StateRenewing)

	v, err, _ := t.group.Do("renew", func() (any, error) {
		// Пока мы ждали очередь, пару мог обновить другой вызов —
		// тогда сервер трогать не нужно.
		cur, ok, err := t.store.Get()
		if err == nil && ok && cur.AccessToken != stale.AccessToken {
			return cur, nil
		}

		fresh, err := t.requestRenew(stale)
		if err != nil {
			return TokenPair{}, err
		}

		if err := t.store.Set(fresh); err != nil {
			return TokenPair{}, err
		}

		return fresh, nil
	})
	if err != nil {
		return TokenPair{}, err
	}

	t.session.setState(StateAuthenticated)

	return v.(TokenPair), nil
}

// requestRenew выполняет обменную операцию на сервере. Контекст свой:
// результат обновления разделяют все ожидающие запросы, поэтому отмена
// любого из них не должна срывать обмен.
func (t *Transport) requestRenew(stale TokenPair) (TokenPair, error) {
	const op = "authclient.Transport.requestRenew"

	ctx, cancel := context.WithTimeout(context.Background(), t.renewTimeout)
	defer cancel()

	// Тело обмена строго двухполевое: сервер отвергает лишние поля.
	body, err := json.Marshal(renewRequest{
		AccessToken:  stale.AccessToken,
		RefreshToken: stale.RefreshToken,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.renewURL, bytes.NewReader(body))
	if err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.renewClient.Do(req)
	if err != nil {
		// Сетевую ошибку обмена не отличаем от отказа сервера: пара
		// всё равно непригодна, сессию нужно завершать.
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return TokenPair{}, fmt.Errorf("%s: renew rejected with status %d", op, resp.StatusCode)
	}

	var fresh TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&fresh); err != nil {
		return TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}
	if fresh.Empty() {
		return TokenPair{}, fmt.Errorf("%s: server returned empty token pair", op)
	}

	return fresh, nil
}

// withBearer возвращает копию запроса с подставленным access-токеном.
// Исходный запрос не модифицируется, как того требует контракт RoundTripper.
func withBearer(req *http.Request, accessToken string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+accessToken)

	return out
}

// rewindRequest готовит запрос к повторной отправке. Тело восстанавливаем
// через GetBody; запрос с нечитаемым повторно телом повторить нельзя.
func rewindRequest(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())

	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body is not replayable")
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body

	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
}
