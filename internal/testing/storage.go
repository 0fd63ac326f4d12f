package testing

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/ryantate/typingpool-sub000/internal/services"
	"github.com/ryantate/typingpool-sub000/internal/shared"
)

// MemoryStorage is an in-memory [services.Storage] that also plays the public web host:
// it answers existence probes and serves question fields for the files it holds.
type MemoryStorage struct {
	services.Location

	mu      sync.Mutex
	files   map[string][]byte
	calls   map[string]int
	failing map[string]bool
	// FailAfter makes Put fail once this many files have been stored in total. Negative never fails.
	FailAfter int
	stored    int
}

var (
	_ services.Storage         = (*MemoryStorage)(nil)
	_ services.Prober          = (*MemoryStorage)(nil)
	_ services.QuestionFetcher = (*MemoryStorage)(nil)
)

// NewMemoryStorage serves files under base, e.g. "https://files.example.com/tp".
func NewMemoryStorage(base string) *MemoryStorage {
	loc, err := services.NewLocation(base)
	if err != nil {
		panic(err)
	}
	return &MemoryStorage{
		Location:  loc,
		files:     map[string][]byte{},
		calls:     map[string]int{},
		failing:   map[string]bool{},
		FailAfter: -1,
	}
}

// FailOn makes every Put of name fail.
func (m *MemoryStorage) FailOn(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing[name] = true
}

// Seed stores a file without counting a Put.
func (m *MemoryStorage) Seed(name string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = content
}

// File returns a stored file's content.
func (m *MemoryStorage) File(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.files[name]
	return b, ok
}

// Names returns every stored file name, sorted.
func (m *MemoryStorage) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Calls returns how many times method has been invoked.
func (m *MemoryStorage) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MemoryStorage) Put(_ context.Context, uploads []services.Upload) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Put"]++

	urls := make([]string, 0, len(uploads))
	for _, up := range uploads {
		if m.failing[up.Name] || (m.FailAfter >= 0 && m.stored >= m.FailAfter) {
			return urls, fmt.Errorf("%w: simulated failure storing %s", shared.ErrStorage, up.Name)
		}
		content, err := io.ReadAll(up.Body)
		if err != nil {
			return urls, fmt.Errorf("%w: %v", shared.ErrStorage, err)
		}
		m.files[up.Name] = content
		m.stored++
		urls = append(urls, m.URLForName(up.Name))
	}
	return urls, nil
}

func (m *MemoryStorage) Remove(_ context.Context, names []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Remove"]++
	for _, name := range names {
		delete(m.files, name)
	}
	return nil
}

// Exists implements [services.Prober] for URLs under this storage's base.
func (m *MemoryStorage) Exists(_ context.Context, rawURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls["Exists"]++
	name, err := m.BasenameForURL(rawURL)
	if err != nil {
		return false, nil
	}
	_, ok := m.files[name]
	return ok, nil
}

// QuestionFields implements [services.QuestionFetcher] for documents held by this storage.
func (m *MemoryStorage) QuestionFields(_ context.Context, rawURL string) (map[string]string, error) {
	m.mu.Lock()
	m.calls["QuestionFields"]++
	name, err := m.BasenameForURL(rawURL)
	content, ok := m.files[name]
	m.mu.Unlock()

	if err != nil || !ok {
		return nil, fmt.Errorf("%w: GET %s: status 404", shared.ErrDocumentNotFound, rawURL)
	}
	return services.ParseQuestionFields(bytes.NewReader(content))
}
