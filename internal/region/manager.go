package region

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"detour/pkg/platform/circuit"
	"detour/pkg/platform/sentinel"
)

// Session is an authenticated control-plane session for one region. Replaced
// wholesale on re-authentication, never mutated field by field.
type Session struct {
	RegionID string
	Cookie   string
	IssuedAt time.Time
}

// caller is the slice of Client the manager depends on.
type caller interface {
	Descriptor() Descriptor
	Login(ctx context.Context) (string, error)
	AddClient(ctx context.Context, cookie string, rc RemoteClient) error
	RemoveClient(ctx context.Context, cookie string, uuid string) error
	ListClients(ctx context.Context, cookie string) ([]RemoteClient, error)
}

// Manager owns one cached session per region and serializes first-time
// authentication per region through a single-flight group. Concurrent
// workflows share a session; they do not trigger duplicate logins.
type Manager struct {
	clients  map[string]caller
	breakers map[string]*circuit.Breaker
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]Session

	flight singleflight.Group
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger attaches a logger for session lifecycle events.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager builds a Manager over one client per region.
func NewManager(clients []*Client, opts ...ManagerOption) *Manager {
	m := &Manager{
		clients:  make(map[string]caller, len(clients)),
		breakers: make(map[string]*circuit.Breaker, len(clients)),
		sessions: make(map[string]Session, len(clients)),
	}
	for _, c := range clients {
		id := c.Descriptor().ID
		m.clients[id] = c
		m.breakers[id] = circuit.New(id)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// newManagerForTest wires arbitrary callers; used by package tests to
// substitute fakes for the HTTP client.
func newManagerForTest(clients map[string]caller) *Manager {
	breakers := make(map[string]*circuit.Breaker, len(clients))
	for id := range clients {
		breakers[id] = circuit.New(id)
	}
	return &Manager{clients: clients, breakers: breakers, sessions: make(map[string]Session)}
}

// Descriptor returns the descriptor for a known region id.
func (m *Manager) Descriptor(regionID string) (Descriptor, bool) {
	c, ok := m.clients[regionID]
	if !ok {
		return Descriptor{}, false
	}
	return c.Descriptor(), true
}

// EnsureSession returns the cached session for the region, authenticating
// lazily on first use. Concurrent callers during the first authentication
// wait for the in-flight attempt's result.
func (m *Manager) EnsureSession(ctx context.Context, regionID string) (Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[regionID]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	result, err, _ := m.flight.Do(regionID, func() (any, error) {
		// Another caller may have finished while we queued.
		m.mu.RLock()
		cached, ok := m.sessions[regionID]
		m.mu.RUnlock()
		if ok {
			return cached, nil
		}

		client, ok := m.clients[regionID]
		if !ok {
			return Session{}, &AuthError{RegionID: regionID, Err: errors.New("unknown region")}
		}
		cookie, err := client.Login(ctx)
		if err != nil {
			m.recordOutcome(ctx, regionID, err)
			return Session{}, &AuthError{RegionID: regionID, Err: err}
		}
		m.recordOutcome(ctx, regionID, nil)
		fresh := Session{RegionID: regionID, Cookie: cookie, IssuedAt: time.Now()}
		m.mu.Lock()
		m.sessions[regionID] = fresh
		m.mu.Unlock()
		if m.logger != nil {
			m.logger.InfoContext(ctx, "region session established", "region", regionID)
		}
		return fresh, nil
	})
	if err != nil {
		return Session{}, err
	}
	return result.(Session), nil
}

// Invalidate drops the cached session for a region. The next call
// re-authenticates.
func (m *Manager) Invalidate(regionID string) {
	m.mu.Lock()
	delete(m.sessions, regionID)
	m.mu.Unlock()
}

// withSession runs fn with a valid session cookie. If the gateway rejects
// the session, the cached session is invalidated and authentication is
// retried exactly once before the failure surfaces.
func (m *Manager) withSession(ctx context.Context, regionID string, fn func(cookie string) error) error {
	sess, err := m.EnsureSession(ctx, regionID)
	if err != nil {
		return err
	}
	err = fn(sess.Cookie)
	if !errors.Is(err, sentinel.ErrSessionRejected) {
		m.recordOutcome(ctx, regionID, err)
		return err
	}

	if m.logger != nil {
		m.logger.WarnContext(ctx, "region session rejected, re-authenticating", "region", regionID)
	}
	m.Invalidate(regionID)
	sess, authErr := m.EnsureSession(ctx, regionID)
	if authErr != nil {
		return authErr
	}
	err = fn(sess.Cookie)
	m.recordOutcome(ctx, regionID, err)
	return err
}

// Healthy reports whether the region's circuit is closed. A false result
// means recent control-plane calls have been failing consistently.
func (m *Manager) Healthy(regionID string) bool {
	b, ok := m.breakers[regionID]
	if !ok {
		return false
	}
	return !b.IsOpen()
}

// recordOutcome feeds a call result into the region's circuit breaker and
// logs open/close transitions.
func (m *Manager) recordOutcome(ctx context.Context, regionID string, err error) {
	b, ok := m.breakers[regionID]
	if !ok {
		return
	}
	if err == nil {
		if _, change := b.RecordSuccess(); change.Closed && m.logger != nil {
			m.logger.InfoContext(ctx, "region circuit closed", "region", regionID)
		}
		return
	}
	if _, change := b.RecordFailure(); change.Opened && m.logger != nil {
		m.logger.WarnContext(ctx, "region circuit opened", "region", regionID, "error", err)
	}
}

// CreateClient creates a client identity on the region.
func (m *Manager) CreateClient(ctx context.Context, regionID string, rc RemoteClient) error {
	client, ok := m.clients[regionID]
	if !ok {
		return &CallError{RegionID: regionID, Op: "create client", Err: errors.New("unknown region")}
	}
	return m.withSession(ctx, regionID, func(cookie string) error {
		return client.AddClient(ctx, cookie, rc)
	})
}

// RemoveClient deletes a client identity on the region by uuid.
func (m *Manager) RemoveClient(ctx context.Context, regionID string, uuid string) error {
	client, ok := m.clients[regionID]
	if !ok {
		return &CallError{RegionID: regionID, Op: "remove client", Err: errors.New("unknown region")}
	}
	return m.withSession(ctx, regionID, func(cookie string) error {
		return client.RemoveClient(ctx, cookie, uuid)
	})
}

// ListClients returns the live client entries configured on the region.
func (m *Manager) ListClients(ctx context.Context, regionID string) ([]RemoteClient, error) {
	client, ok := m.clients[regionID]
	if !ok {
		return nil, &CallError{RegionID: regionID, Op: "list clients", Err: errors.New("unknown region")}
	}
	var clients []RemoteClient
	err := m.withSession(ctx, regionID, func(cookie string) error {
		var listErr error
		clients, listErr = client.ListClients(ctx, cookie)
		return listErr
	})
	if err != nil {
		return nil, err
	}
	return clients, nil
}
