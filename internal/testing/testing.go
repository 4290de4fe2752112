// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/watchx/internal/models"
	"github.com/desertthunder/watchx/internal/shared"
)

// MockCatalog is a test double for [services.Catalog]
type MockCatalog struct {
	Kind    models.ContentType
	Pages   []*models.Page              // Popular pages, index 0 is page 1
	Results map[string][]models.Content // Search results by query, served as page 1
	Items   map[string]models.Content   // Details by id
	Err     error
	Delay   time.Duration

	mu    sync.Mutex
	calls []string
}

func (m *MockCatalog) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the recorded calls, e.g. "popular:1" or "search:matrix:1".
func (m *MockCatalog) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockCatalog) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	select {
	case <-time.After(m.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockCatalog) Popular(ctx context.Context, page int) (*models.Page, error) {
	m.record(fmt.Sprintf("popular:%d", page))
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if page < 1 || page > len(m.Pages) {
		return &models.Page{Items: []models.Content{}, Page: page}, nil
	}
	p := *m.Pages[page-1]
	p.Items = append([]models.Content(nil), p.Items...)
	return &p, nil
}

func (m *MockCatalog) Search(ctx context.Context, query string, page int) (*models.Page, error) {
	m.record(fmt.Sprintf("search:%s:%d", query, page))
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if page != 1 {
		return &models.Page{Items: []models.Content{}, Page: page}, nil
	}
	items := append([]models.Content{}, m.Results[query]...)
	return &models.Page{Items: items, Page: 1, TotalPages: 1}, nil
}

func (m *MockCatalog) Details(ctx context.Context, id string) (models.Content, error) {
	m.record("details:" + id)
	if m.Err != nil {
		return nil, m.Err
	}
	item, ok := m.Items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrContentNotFound, id)
	}
	return item, nil
}

func (m *MockCatalog) ContentType() models.ContentType { return m.Kind }
func (m *MockCatalog) Name() string                    { return "mock" }

// PutCall records one [MockBackend.Put].
type PutCall struct {
	UserID    string
	Type      models.ContentType
	ContentID string
	Entry     models.StatusEntry
}

// MockBackend is an in-memory watch-status backend for tracker tests.
//
// Setting Gate makes Put block until a value is received (or the gate is closed), so tests
// can observe optimistic state while a write is in flight. ReadGate does the same for Get,
// All and Batch, which compute their result before blocking so the response is stale by
// the time it is released.
type MockBackend struct {
	UserID      string
	IdentityErr error
	GetErr      error
	PutErr      error
	AllErr      error
	BatchErr    error
	Gate        chan struct{}
	ReadGate    chan struct{}

	mu         sync.Mutex
	entries    map[string]models.StatusEntry
	puts       []PutCall
	gets       int
	allCalls   int
	batchCalls int
}

// NewMockBackend creates a backend that authenticates as userID.
func NewMockBackend(userID string) *MockBackend {
	return &MockBackend{UserID: userID, entries: make(map[string]models.StatusEntry)}
}

func mockKey(t models.ContentType, id string) string { return string(t) + ":" + id }

// Seed stores an entry without recording a Put.
func (m *MockBackend) Seed(t models.ContentType, id string, entry models.StatusEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[mockKey(t, id)] = entry
}

func (m *MockBackend) Identity(ctx context.Context) (string, error) {
	if m.IdentityErr != nil {
		return "", m.IdentityErr
	}
	return m.UserID, nil
}

func (m *MockBackend) hold(ctx context.Context) error {
	if m.ReadGate == nil {
		return nil
	}
	select {
	case <-m.ReadGate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockBackend) Get(ctx context.Context, userID string, t models.ContentType, id string) (models.StatusEntry, error) {
	entry, err := m.get(t, id)
	if herr := m.hold(ctx); herr != nil {
		return models.StatusEntry{Status: models.StatusNone}, herr
	}
	return entry, err
}

func (m *MockBackend) get(t models.ContentType, id string) (models.StatusEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.GetErr != nil {
		return models.StatusEntry{Status: models.StatusNone}, m.GetErr
	}
	if e, ok := m.entries[mockKey(t, id)]; ok {
		return e, nil
	}
	return models.StatusEntry{Status: models.StatusNone}, nil
}

func (m *MockBackend) Put(ctx context.Context, userID string, t models.ContentType, id string, entry models.StatusEntry) error {
	if m.Gate != nil {
		select {
		case <-m.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts = append(m.puts, PutCall{UserID: userID, Type: t, ContentID: id, Entry: entry})
	if m.PutErr != nil {
		return m.PutErr
	}
	if entry.Status == models.StatusNone {
		delete(m.entries, mockKey(t, id))
	} else {
		m.entries[mockKey(t, id)] = entry
	}
	return nil
}

// All builds the aggregate from stored entries using bare items carrying only type and id.
func (m *MockBackend) All(ctx context.Context, userID string) (models.ContentByStatus, error) {
	agg, err := m.all()
	if herr := m.hold(ctx); herr != nil {
		return nil, herr
	}
	return agg, err
}

func (m *MockBackend) all() (models.ContentByStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allCalls++
	if m.AllErr != nil {
		return nil, m.AllErr
	}

	agg := models.NewContentByStatus()
	for key, e := range m.entries {
		kind, id, _ := strings.Cut(key, ":")
		item, err := models.NewContent(models.ContentType(kind))
		if err != nil {
			return nil, err
		}
		item.Info().ID = id
		agg.Add(e.Status, models.Normalize(item))
	}
	return agg, nil
}

func (m *MockBackend) Batch(ctx context.Context, userID string, t models.ContentType, ids []string) (map[string]models.WatchStatus, error) {
	out, err := m.batch(t, ids)
	if herr := m.hold(ctx); herr != nil {
		return nil, herr
	}
	return out, err
}

func (m *MockBackend) batch(t models.ContentType, ids []string) (map[string]models.WatchStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	if m.BatchErr != nil {
		return nil, m.BatchErr
	}

	out := make(map[string]models.WatchStatus, len(ids))
	for _, id := range ids {
		out[id] = models.StatusNone
		if e, ok := m.entries[mockKey(t, id)]; ok {
			out[id] = e.Status
		}
	}
	return out, nil
}

// Puts returns every recorded write, including failed ones.
func (m *MockBackend) Puts() []PutCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PutCall(nil), m.puts...)
}

// Counts returns the number of Get, All and Batch calls.
func (m *MockBackend) Counts() (gets, all, batch int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets, m.allCalls, m.batchCalls
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
