package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client — высокоуровневая обёртка над сервисом аутентификации:
// регистрация, вход, выход и готовый *http.Client с перехватчиком
// для запросов к защищённым API.
type Client struct {
	baseURL string
	store   Store
	session *Session
	httpc   *http.Client
}

// Option настраивает Client.
type Option func(*options)

type options struct {
	store        Store
	base         http.RoundTripper
	onExpired    func()
	renewTimeout time.Duration
}

// WithStore задаёт хранилище пары токенов; по умолчанию MemoryStore.
func WithStore(store Store) Option {
	return func(o *options) { o.store = store }
}

// WithBaseTransport задаёт транспорт, поверх которого работает перехватчик.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.base = rt }
}

// WithOnSessionExpired задаёт колбэк, вызываемый однократно при
// завершении сессии. Обычно здесь приложение уводит пользователя на
// экран входа.
func WithOnSessionExpired(fn func()) Option {
	return func(o *options) { o.onExpired = fn }
}

// WithRenewTimeout ограничивает запрос обновления пары.
func WithRenewTimeout(d time.Duration) Option {
	return func(o *options) { o.renewTimeout = d }
}

// New собирает клиента для сервиса по базовому URL, например
// "https://auth.example.com".
func New(baseURL string, opts ...Option) *Client {
	o := options{
		store:        NewMemoryStore(),
		renewTimeout: defaultRenewTimeout,
	}
	for _, fn := range opts {
		fn(&o)
	}

	baseURL = strings.TrimRight(baseURL, "/")

	session := NewSession(o.store, o.onExpired)
	transport := NewTransport(o.base, o.store, session, baseURL+"/token/renew")
	transport.renewTimeout = o.renewTimeout

	return &Client{
		baseURL: baseURL,
		store:   o.store,
		session: session,
		httpc:   &http.Client{Transport: transport},
	}
}

// HTTPClient возвращает клиента с установленным перехватчиком: все
// запросы через него несут access-токен и переживают его ротацию.
func (c *Client) HTTPClient() *http.Client {
	return c.httpc
}

// Session возвращает сессию клиента.
func (c *Client) Session() *Session {
	return c.session
}

// Register создаёт учётную запись. Сессию не открывает — после
// регистрации нужен обычный Login.
func (c *Client) Register(ctx context.Context, username, password string) error {
	const op = "authclient.Client.Register"

	if err := c.postCredentials(ctx, "/register", username, password, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Login выполняет вход и открывает сессию: полученная пара сохраняется
// в Store, и дальнейшие запросы через HTTPClient идут с токеном.
func (c *Client) Login(ctx context.Context, username, password string) error {
	const op = "authclient.Client.Login"

	var pair TokenPair
	if err := c.postCredentials(ctx, "/login", username, password, &pair); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := c.store.Set(pair); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	c.session.Authenticate()

	return nil
}

// Logout отзывает refresh-токен на сервере и завершает сессию локально.
// Локальное завершение выполняется в любом случае: даже если сервер
// недоступен, пара стирается и повторный Logout безопасен.
func (c *Client) Logout(ctx context.Context) error {
	const op = "authclient.Client.Logout"

	pair, ok, err := c.store.Get()
	// Сессия уже пуста — выходить не из чего.
	if err != nil || !ok {
		c.session.Terminate()
		return nil
	}

	body, err := json.Marshal(map[string]string{"refreshToken": pair.RefreshToken})
	if err != nil {
		c.session.Terminate()
		return fmt.Errorf("%s: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/logout", bytes.NewReader(body))
	if err != nil {
		c.session.Terminate()
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	c.session.Terminate()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	drain(resp)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%s: logout rejected with status %d", op, resp.StatusCode)
	}

	return nil
}

func (c *Client) postCredentials(ctx context.Context, path, username, password string, out any) error {
	body, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}

	return nil
}
