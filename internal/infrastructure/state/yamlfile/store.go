package yamlfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/medbrief/internal/core/domain"
)

const (
	settingsKey = "medbrief_settings_v1"
	authModeKey = "medbrief_auth_mode"
)

type document struct {
	Settings *domain.Settings `yaml:"medbrief_settings_v1,omitempty"`
	AuthMode domain.AuthMode  `yaml:"medbrief_auth_mode,omitempty"`
}

// Store keeps the persisted local state in a single YAML file.
type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		home, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolve config dir: %w", err)
		}
		path = filepath.Join(home, "medbrief", "state.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) LoadSettings(_ context.Context) (domain.Settings, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return domain.Settings{}, false, err
	}
	if doc.Settings == nil {
		return domain.Settings{}, false, nil
	}
	return *doc.Settings, true, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Settings = &settings
	return s.write(doc)
}

func (s *Store) AuthMode(_ context.Context) (domain.AuthMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return domain.AuthModeNone, err
	}
	return doc.AuthMode, nil
}

func (s *Store) SetAuthMode(_ context.Context, mode domain.AuthMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.AuthMode = mode
	return s.write(doc)
}

func (s *Store) read() (document, error) {
	var doc document
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return doc, fmt.Errorf("read state file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("decode state file %s: %w", s.path, err)
	}
	return doc, nil
}

// write replaces the file through a rename so readers never see a partial
// document.
func (s *Store) write(doc document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
