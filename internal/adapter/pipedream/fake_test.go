package pipedream

import (
	"context"
	"errors"
	"sync"

	"github.com/rooftopsai/rooftopsgpt-sub002/internal/domain"
)

type fakeSession struct {
	mu       sync.Mutex
	tools    []Tool
	selected []string
	calls    []string
	result   *CallResult
	callErr  error
	listErr  error
	healthy  bool
	closed   bool
}

func newFakeSession(tools ...Tool) *fakeSession {
	return &fakeSession{tools: tools, healthy: true, result: &CallResult{Text: []string{"ok"}}}
}

func (f *fakeSession) SelectApps(_ context.Context, slugs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selected = append([]string(nil), slugs...)
	return nil
}

func (f *fakeSession) ListTools(context.Context) ([]Tool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tools, f.listErr
}

func (f *fakeSession) CallTool(_ context.Context, name string, _ map[string]any) (*CallResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.result, f.callErr
}

func (f *fakeSession) Healthy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy && !f.closed
}

func (f *fakeSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeConnector struct {
	mu       sync.Mutex
	sessions []*fakeSession
	connects int
	err      error
}

func (f *fakeConnector) Connect(context.Context, string, string) (Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return nil, errors.New("no session scripted")
	}
	s := f.sessions[0]
	if len(f.sessions) > 1 {
		f.sessions = f.sessions[1:]
	}
	return s, nil
}

type fakeApps struct {
	sources []domain.DataSource
	err     error
}

func (f *fakeApps) ListDataSources(context.Context, string) ([]domain.DataSource, error) {
	return f.sources, f.err
}

type fixedPolicy map[string]bool

func (p fixedPolicy) RequiresConfirmation(_ context.Context, name string) bool {
	return p[name]
}
