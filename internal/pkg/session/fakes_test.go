package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"workwise-service/internal/domain/auth"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeIdentity struct {
	mu      sync.Mutex
	current *auth.Session
	getErr  error
	getGate chan struct{}

	subErr     error
	subs       map[int]func(auth.EventKind, *auth.Session)
	nextID     int
	subscribed int
	unsubbed   int
	// onSubscribe runs inside Subscribe after the handler is registered.
	onSubscribe func()

	signOutErr   error
	signOutGate  chan struct{}
	signOutCalls []auth.SignOutScope
}

func newFakeIdentity(current *auth.Session) *fakeIdentity {
	return &fakeIdentity{current: current, subs: map[int]func(auth.EventKind, *auth.Session){}}
}

func (f *fakeIdentity) GetCurrentSession(ctx context.Context) (*auth.Session, error) {
	f.mu.Lock()
	gate := f.getGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.getErr
}

type fakeSub struct {
	f  *fakeIdentity
	id int
}

func (s *fakeSub) Unsubscribe() {
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if _, ok := s.f.subs[s.id]; ok {
		delete(s.f.subs, s.id)
		s.f.unsubbed++
	}
}

func (f *fakeIdentity) Subscribe(_ context.Context, fn func(auth.EventKind, *auth.Session)) (Subscription, error) {
	f.mu.Lock()
	if f.subErr != nil {
		f.mu.Unlock()
		return nil, f.subErr
	}
	f.nextID++
	id := f.nextID
	f.subs[id] = fn
	f.subscribed++
	hook := f.onSubscribe
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &fakeSub{f: f, id: id}, nil
}

func (f *fakeIdentity) SignOut(ctx context.Context, scope auth.SignOutScope) error {
	f.mu.Lock()
	f.signOutCalls = append(f.signOutCalls, scope)
	gate := f.signOutGate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signOutErr
}

// emit delivers an event to every live subscriber on the calling goroutine.
func (f *fakeIdentity) emit(kind auth.EventKind, s *auth.Session) {
	f.mu.Lock()
	fns := make([]func(auth.EventKind, *auth.Session), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(kind, s)
	}
}

func (f *fakeIdentity) counts() (subscribed, unsubscribed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed, f.unsubbed
}

func (f *fakeIdentity) scopes() []auth.SignOutScope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]auth.SignOutScope(nil), f.signOutCalls...)
}

type fakeProfiles struct {
	mu    sync.Mutex
	roles map[string]string
	err   error
	gates map[string]chan struct{}
	calls []string
}

func newFakeProfiles(roles map[string]string) *fakeProfiles {
	if roles == nil {
		roles = map[string]string{}
	}
	return &fakeProfiles{roles: roles, gates: map[string]chan struct{}{}}
}

func (p *fakeProfiles) GetRole(ctx context.Context, userID string) (string, bool, error) {
	p.mu.Lock()
	p.calls = append(p.calls, userID)
	gate := p.gates[userID]
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", false, p.err
	}
	role, ok := p.roles[userID]
	return role, ok, nil
}

func (p *fakeProfiles) block(userID string) chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	gate := make(chan struct{})
	p.gates[userID] = gate
	return gate
}

func (p *fakeProfiles) lookups() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type removal struct {
	scope ArtifactScope
	key   string
}

type fakeArtifacts struct {
	mu        sync.Mutex
	clearErr  error
	removeErr error
	cleared   int
	removed   []removal
}

func (a *fakeArtifacts) Clear(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cleared++
	return a.clearErr
}

func (a *fakeArtifacts) Remove(_ context.Context, scope ArtifactScope, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.removed = append(a.removed, removal{scope: scope, key: key})
	return a.removeErr
}

type navCall struct {
	path       string
	fullReload bool
}

type fakeNavigator struct {
	mu    sync.Mutex
	calls []navCall
}

func (n *fakeNavigator) Redirect(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navCall{path: path, fullReload: true})
	return nil
}

func (n *fakeNavigator) Navigate(_ context.Context, path string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, navCall{path: path})
	return nil
}

func (n *fakeNavigator) history() []navCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]navCall(nil), n.calls...)
}

type snapshotRecorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *snapshotRecorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *snapshotRecorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

type harness struct {
	identity  *fakeIdentity
	profiles  *fakeProfiles
	artifacts *fakeArtifacts
	navigator *fakeNavigator
	recorder  *snapshotRecorder
	manager   *Manager
}

func newHarness(t *testing.T, current *auth.Session, roles map[string]string) *harness {
	t.Helper()
	h := &harness{
		identity:  newFakeIdentity(current),
		profiles:  newFakeProfiles(roles),
		artifacts: &fakeArtifacts{},
		navigator: &fakeNavigator{},
		recorder:  &snapshotRecorder{},
	}
	return h
}

// build creates the manager; tweak the fakes before calling it.
func (h *harness) build(t *testing.T, opts Options) *Manager {
	t.Helper()
	opts.OnChange = h.recorder.record
	h.manager = NewManager(Dependencies{
		Identity:  h.identity,
		Profiles:  h.profiles,
		Artifacts: h.artifacts,
		Navigator: h.navigator,
	}, opts, nil)
	t.Cleanup(h.manager.Close)
	return h.manager
}

func testOptions() Options {
	return Options{
		SafetyTimeout:         2 * time.Second,
		RedirectDelay:         time.Millisecond,
		FallbackRedirectDelay: 2 * time.Millisecond,
	}
}

func waitReady(t *testing.T, m *Manager) {
	t.Helper()
	select {
	case <-m.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("manager never became ready")
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func sess(userID string) *auth.Session {
	return &auth.Session{
		ID:        "jti-" + userID,
		UserID:    userID,
		Email:     userID + "@example.com",
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
}
