package authclient

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store — хранилище пары токенов. Реализация обязана быть безопасной
// для конкурентного доступа: перехватчик читает и пишет пару из разных
// горутин.
type Store interface {
	// Get возвращает сохранённую пару; ok == false, если пары нет.
	Get() (pair TokenPair, ok bool, err error)
	// Set сохраняет пару, затирая предыдущую.
	Set(pair TokenPair) error
	// Clear удаляет пару.
	Clear() error
}

// MemoryStore хранит пару в памяти процесса. Подходит для сервисов и
// тестов; после рестарта сессию придётся устанавливать заново.
type MemoryStore struct {
	mu   sync.RWMutex
	pair TokenPair
	set  bool
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (TokenPair, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.pair, s.set, nil
}

func (s *MemoryStore) Set(pair TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = pair
	s.set = true

	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = TokenPair{}
	s.set = false

	return nil
}

// FileStore персистит пару в JSON-файл с правами 0600, переживая рестарт
// процесса. Файл перезаписывается целиком на каждый Set.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get() (TokenPair, bool, error) {
	const op = "authclient.FileStore.Get"

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return TokenPair{}, false, nil
		}
		return TokenPair{}, false, fmt.Errorf("%s: %w", op, err)
	}

	var pair TokenPair
	if err := json.Unmarshal(raw, &pair); err != nil {
		return TokenPair{}, false, fmt.Errorf("%s: %w", op, err)
	}

	if pair.Empty() {
		return TokenPair{}, false, nil
	}

	return pair, true, nil
}

func (s *FileStore) Set(pair TokenPair) error {
	const op = "authclient.FileStore.Set"

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// Пишем во временный файл рядом и атомарно переименовываем: оборванная
	// запись не должна оставить после себя испорченную пару.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *FileStore) Clear() error {
	const op = "authclient.FileStore.Clear"

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}
