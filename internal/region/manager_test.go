package region

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"detour/pkg/platform/sentinel"
)

// fakeCaller scripts a region control plane for manager tests.
type fakeCaller struct {
	desc Descriptor

	mu          sync.Mutex
	loginCalls  atomic.Int32
	loginErr    error
	loginErrs   []error
	addCalls    []RemoteClient
	addErr      error
	rejectOnce  bool
	removeCalls []string
	listResult  []RemoteClient
}

func newFakeCaller(id string) *fakeCaller {
	return &fakeCaller{desc: Descriptor{ID: id, Role: RolePrimary, BaseURL: "http://" + id}}
}

func (f *fakeCaller) Descriptor() Descriptor { return f.desc }

func (f *fakeCaller) Login(_ context.Context) (string, error) {
	n := f.loginCalls.Add(1)
	if int(n) <= len(f.loginErrs) {
		if err := f.loginErrs[n-1]; err != nil {
			return "", err
		}
	} else if f.loginErr != nil {
		return "", f.loginErr
	}
	return "session=" + f.desc.ID, nil
}

func (f *fakeCaller) AddClient(_ context.Context, _ string, rc RemoteClient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectOnce {
		f.rejectOnce = false
		return sentinel.ErrSessionRejected
	}
	if f.addErr != nil {
		return f.addErr
	}
	f.addCalls = append(f.addCalls, rc)
	return nil
}

func (f *fakeCaller) RemoveClient(_ context.Context, _ string, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeCalls = append(f.removeCalls, uuid)
	return nil
}

func (f *fakeCaller) ListClients(_ context.Context, _ string) ([]RemoteClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listResult, nil
}

type ManagerSuite struct {
	suite.Suite
	ctx context.Context
}

func (s *ManagerSuite) SetupTest() {
	s.ctx = context.Background()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

// TestLazySessions verifies sessions are established on first use and
// cached afterwards.
func (s *ManagerSuite) TestLazySessions() {
	fake := newFakeCaller("primary")
	m := newManagerForTest(map[string]caller{"primary": fake})

	s.Equal(int32(0), fake.loginCalls.Load())

	sess, err := m.EnsureSession(s.ctx, "primary")
	s.Require().NoError(err)
	s.Equal("primary", sess.RegionID)
	s.Equal("session=primary", sess.Cookie)
	s.Equal(int32(1), fake.loginCalls.Load())

	// Cached on repeat.
	_, err = m.EnsureSession(s.ctx, "primary")
	s.Require().NoError(err)
	s.Equal(int32(1), fake.loginCalls.Load())
}

// TestConcurrentEnsureSingleLogin verifies concurrent first-use callers
// share one authentication attempt.
func (s *ManagerSuite) TestConcurrentEnsureSingleLogin() {
	fake := newFakeCaller("primary")
	m := newManagerForTest(map[string]caller{"primary": fake})

	var wg sync.WaitGroup
	start := make(chan struct{})
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := m.EnsureSession(s.ctx, "primary")
			s.NoError(err)
		}()
	}
	close(start)
	wg.Wait()

	s.Equal(int32(1), fake.loginCalls.Load())
}

// TestAuthFailure verifies login failures surface as AuthError and are not
// cached.
func (s *ManagerSuite) TestAuthFailure() {
	fake := newFakeCaller("primary")
	fake.loginErr = errors.New("bad credentials")
	m := newManagerForTest(map[string]caller{"primary": fake})

	_, err := m.EnsureSession(s.ctx, "primary")
	var authErr *AuthError
	s.Require().ErrorAs(err, &authErr)
	s.Equal("primary", authErr.RegionID)

	// A later attempt authenticates again rather than reusing the failure.
	fake.loginErr = nil
	_, err = m.EnsureSession(s.ctx, "primary")
	s.Require().NoError(err)
}

// TestUnknownRegion verifies calls against unconfigured regions fail
// without panicking.
func (s *ManagerSuite) TestUnknownRegion() {
	m := newManagerForTest(map[string]caller{})

	_, err := m.EnsureSession(s.ctx, "nowhere")
	var authErr *AuthError
	s.ErrorAs(err, &authErr)

	err = m.CreateClient(s.ctx, "nowhere", RemoteClient{})
	var callErr *CallError
	s.ErrorAs(err, &callErr)
}

// TestSessionRejectedRetriesOnce verifies a rejected session triggers
// exactly one re-authentication and retry.
func (s *ManagerSuite) TestSessionRejectedRetriesOnce() {
	fake := newFakeCaller("primary")
	fake.rejectOnce = true
	m := newManagerForTest(map[string]caller{"primary": fake})

	err := m.CreateClient(s.ctx, "primary", RemoteClient{ID: "uuid-1"})
	s.Require().NoError(err)

	// First login, then a second after the rejection.
	s.Equal(int32(2), fake.loginCalls.Load())
	s.Require().Len(fake.addCalls, 1)
	s.Equal("uuid-1", fake.addCalls[0].ID)
}

// TestPersistentRejectionSurfaces verifies the retry happens once, not in a
// loop, when the gateway keeps rejecting the session.
func (s *ManagerSuite) TestPersistentRejectionSurfaces() {
	fake := newFakeCaller("primary")
	fake.addErr = sentinel.ErrSessionRejected
	m := newManagerForTest(map[string]caller{"primary": fake})

	err := m.CreateClient(s.ctx, "primary", RemoteClient{ID: "uuid-1"})
	s.Require().ErrorIs(err, sentinel.ErrSessionRejected)
	s.Equal(int32(2), fake.loginCalls.Load())
}

// TestReauthFailureAfterRejection verifies an AuthError surfaces when the
// re-authentication after a rejected session fails.
func (s *ManagerSuite) TestReauthFailureAfterRejection() {
	fake := newFakeCaller("primary")
	fake.rejectOnce = true
	fake.loginErrs = []error{nil, errors.New("panel restarting")}
	m := newManagerForTest(map[string]caller{"primary": fake})

	err := m.CreateClient(s.ctx, "primary", RemoteClient{ID: "uuid-1"})
	var authErr *AuthError
	s.Require().ErrorAs(err, &authErr)
	s.Equal("primary", authErr.RegionID)
}

// TestInvalidate verifies dropping a session forces re-authentication.
func (s *ManagerSuite) TestInvalidate() {
	fake := newFakeCaller("primary")
	m := newManagerForTest(map[string]caller{"primary": fake})

	_, err := m.EnsureSession(s.ctx, "primary")
	s.Require().NoError(err)
	m.Invalidate("primary")

	_, err = m.EnsureSession(s.ctx, "primary")
	s.Require().NoError(err)
	s.Equal(int32(2), fake.loginCalls.Load())
}

// TestHealthyTracksCallOutcomes verifies sustained control-plane failures
// open the region circuit and a recovery closes it again.
func (s *ManagerSuite) TestHealthyTracksCallOutcomes() {
	fake := newFakeCaller("primary")
	fake.addErr = errors.New("panel unreachable")
	m := newManagerForTest(map[string]caller{"primary": fake})

	s.True(m.Healthy("primary"))
	s.False(m.Healthy("nowhere"))

	for range 5 {
		err := m.CreateClient(s.ctx, "primary", RemoteClient{ID: "uuid-1"})
		s.Require().Error(err)
	}
	s.False(m.Healthy("primary"))

	fake.mu.Lock()
	fake.addErr = nil
	fake.mu.Unlock()
	err := m.CreateClient(s.ctx, "primary", RemoteClient{ID: "uuid-1"})
	s.Require().NoError(err)
	s.True(m.Healthy("primary"))
}

// TestListClients verifies listings flow through the session wrapper.
func (s *ManagerSuite) TestListClients() {
	fake := newFakeCaller("primary")
	fake.listResult = []RemoteClient{{ID: "uuid-1"}, {ID: "uuid-2"}}
	m := newManagerForTest(map[string]caller{"primary": fake})

	clients, err := m.ListClients(s.ctx, "primary")
	s.Require().NoError(err)
	s.Len(clients, 2)
}
