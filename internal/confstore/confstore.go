package confstore

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source tags identify where a configuration entry came from.
const (
	SourceEnvironment = "environment"
	SourceAppSettings = "appsettings"
)

// Entry is one configuration key/value pair with its origin.
type Entry struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Store supplies configuration entries on demand. All returned slices are
// defensive copies ordered by key.
type Store interface {
	All() ([]Entry, error)
	Lookup(key string) (Entry, bool, error)
	Environment() ([]Entry, error)
	AppSettings() ([]Entry, error)
}

// EnvSettingsStore merges process environment variables with a flattened
// YAML settings file. Nested settings keys are joined with dots
// ("server.timeouts.read"). The settings file is parsed once; Reload re-reads
// it and swaps the parsed tree under a write lock.
type EnvSettingsStore struct {
	settingsPath string
	environ      func() []string

	mu       sync.RWMutex
	settings []Entry
}

// EnvSettingsOption configures an EnvSettingsStore.
type EnvSettingsOption func(*EnvSettingsStore)

// WithEnviron overrides the environment source, primarily for tests.
func WithEnviron(environ func() []string) EnvSettingsOption {
	return func(s *EnvSettingsStore) {
		s.environ = environ
	}
}

// NewEnvSettingsStore constructs a store backed by the process environment
// and, when settingsPath is non-empty, a YAML settings file.
func NewEnvSettingsStore(settingsPath string, opts ...EnvSettingsOption) (*EnvSettingsStore, error) {
	s := &EnvSettingsStore{
		settingsPath: settingsPath,
		environ:      os.Environ,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the settings file. Environment entries are always read
// live and need no reload.
func (s *EnvSettingsStore) Reload() error {
	if s.settingsPath == "" {
		s.mu.Lock()
		s.settings = nil
		s.mu.Unlock()
		return nil
	}

	data, err := os.ReadFile(s.settingsPath)
	if err != nil {
		return fmt.Errorf("read settings file: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("parse settings file: %w", err)
	}

	entries := flatten("", tree)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })

	s.mu.Lock()
	s.settings = entries
	s.mu.Unlock()
	return nil
}

// All returns environment entries followed by settings-file entries.
func (s *EnvSettingsStore) All() ([]Entry, error) {
	env, err := s.Environment()
	if err != nil {
		return nil, err
	}
	app, err := s.AppSettings()
	if err != nil {
		return nil, err
	}
	return append(env, app...), nil
}

// Lookup finds an entry by exact key, environment first.
func (s *EnvSettingsStore) Lookup(key string) (Entry, bool, error) {
	if value, ok := os.LookupEnv(key); ok {
		return Entry{Key: key, Value: value, Source: SourceEnvironment}, true, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, entry := range s.settings {
		if entry.Key == key {
			return entry, true, nil
		}
	}
	return Entry{}, false, nil
}

// Environment returns all process environment variables ordered by name.
func (s *EnvSettingsStore) Environment() ([]Entry, error) {
	raw := s.environ()
	entries := make([]Entry, 0, len(raw))
	for _, kv := range raw {
		key, value, found := strings.Cut(kv, "=")
		if !found || key == "" {
			continue
		}
		entries = append(entries, Entry{Key: key, Value: value, Source: SourceEnvironment})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// AppSettings returns the flattened settings-file entries.
func (s *EnvSettingsStore) AppSettings() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.settings))
	copy(out, s.settings)
	return out, nil
}

func flatten(prefix string, node map[string]any) []Entry {
	var entries []Entry
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch typed := value.(type) {
		case map[string]any:
			entries = append(entries, flatten(full, typed)...)
		case []any:
			for i, item := range typed {
				entries = append(entries, Entry{
					Key:    fmt.Sprintf("%s.%d", full, i),
					Value:  fmt.Sprint(item),
					Source: SourceAppSettings,
				})
			}
		case nil:
			entries = append(entries, Entry{Key: full, Value: "", Source: SourceAppSettings})
		default:
			entries = append(entries, Entry{Key: full, Value: fmt.Sprint(typed), Source: SourceAppSettings})
		}
	}
	return entries
}
