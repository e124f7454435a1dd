package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/alanyoungcy/averix/internal/crypto"
	"github.com/alanyoungcy/averix/internal/domain"
)

// Compile-time interface checks.
var (
	_ domain.CredentialStore = (*MemoryStore)(nil)
	_ domain.CredentialStore = (*FileStore)(nil)
)

// MemoryStore keeps credentials for the lifetime of the process.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]string)}
}

func (s *MemoryStore) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return tok, nil
}

func (s *MemoryStore) Save(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[key] = token
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, key)
	return nil
}

// FileStore persists credentials in a single sealed JSON file (0600).
type FileStore struct {
	path   string
	sealer *crypto.Sealer
	mu     sync.Mutex
}

// NewFileStore returns a FileStore writing to path, sealed with sealer.
func NewFileStore(path string, sealer *crypto.Sealer) *FileStore {
	return &FileStore{path: path, sealer: sealer}
}

func (s *FileStore) Load(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.read()
	if err != nil {
		return "", err
	}
	tok, ok := tokens[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return tok, nil
}

func (s *FileStore) Save(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.read()
	if err != nil {
		return err
	}
	tokens[key] = token
	return s.write(tokens)
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := tokens[key]; !ok {
		return nil
	}
	delete(tokens, key)
	if len(tokens) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("session: remove credential file: %w", err)
		}
		return nil
	}
	return s.write(tokens)
}

func (s *FileStore) read() (map[string]string, error) {
	blob, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read credential file: %w", err)
	}

	plain, err := s.sealer.Open(blob)
	if err != nil {
		return nil, fmt.Errorf("session: open credential file: %w", err)
	}
	tokens := make(map[string]string)
	if err := json.Unmarshal(plain, &tokens); err != nil {
		return nil, fmt.Errorf("session: decode credential file: %w", err)
	}
	return tokens, nil
}

func (s *FileStore) write(tokens map[string]string) error {
	plain, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("session: encode credentials: %w", err)
	}
	blob, err := s.sealer.Seal(plain)
	if err != nil {
		return fmt.Errorf("session: seal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create credential dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0o600); err != nil {
		return fmt.Errorf("session: write credential file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("session: replace credential file: %w", err)
	}
	return nil
}
