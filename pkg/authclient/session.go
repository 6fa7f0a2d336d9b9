package authclient

import "sync"

// State — состояние клиентской сессии.
type State int

const (
	// StateUnauthenticated — пары токенов нет, запросы идут без bearer.
	StateUnauthenticated State = iota
	// StateAuthenticated — пара есть, запросы несут access-токен.
	StateAuthenticated
	// StateRenewing — идёт обновление пары; конкурирующие запросы ждут его итога.
	StateRenewing
	// StateTerminated — сессия завершена, восстановить её может только новый Login.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateRenewing:
		return "renewing"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Session отслеживает жизненный цикл клиентской сессии и гарантирует,
// что завершение выполняется ровно один раз: пара стирается из Store,
// колбэк onExpired вызывается однократно, сколько бы запросов ни
// упёрлось в просроченную сессию одновременно.
type Session struct {
	mu        sync.Mutex
	state     State
	store     Store
	onExpired func()
}

// NewSession создаёт сессию поверх хранилища. onExpired может быть nil.
// Если в хранилище уже лежит пара (например, FileStore после рестарта),
// сессия стартует аутентифицированной.
func NewSession(store Store, onExpired func()) *Session {
	st := StateUnauthenticated
	if _, ok, err := store.Get(); err == nil && ok {
		st = StateAuthenticated
	}

	return &Session{
		state:     st,
		store:     store,
		onExpired: onExpired,
	}
}

// State возвращает текущее состояние сессии.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Из терминального состояния выход один — через Login (Authenticate).
	if s.state == StateTerminated && st != StateAuthenticated {
		return
	}

	s.state = st
}

// Authenticate переводит сессию в рабочее состояние после успешного входа.
func (s *Session) Authenticate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateAuthenticated
}

// Terminate завершает сессию: стирает пару и один раз дёргает onExpired.
// Повторные вызовы безопасны и ничего не делают.
func (s *Session) Terminate() {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	cb := s.onExpired
	s.mu.Unlock()

	// Ошибку очистки хранилища глотаем сознательно: сессия уже завершена,
	// и повлиять на исход вызывающий всё равно не может.
	_ = s.store.Clear()

	if cb != nil {
		cb()
	}
}
