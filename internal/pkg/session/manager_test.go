package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"workwise-service/internal/domain/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWithoutSession(t *testing.T) {
	h := newHarness(t, nil, nil)
	m := h.build(t, testOptions())

	m.Start(context.Background())
	waitReady(t, m)

	snap := m.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsAdmin)
	assert.False(t, snap.Loading)

	sub, _ := h.identity.counts()
	assert.Equal(t, 1, sub)
	assert.Empty(t, h.profiles.lookups())

	snaps := h.recorder.all()
	require.NotEmpty(t, snaps)
	assert.True(t, snaps[0].Loading, "first snapshot is the loading state")
	assert.Equal(t, snap, snaps[len(snaps)-1])
}

func TestExistingAdminSession(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "Admin "})
	m := h.build(t, testOptions())

	m.Start(context.Background())
	waitReady(t, m)

	snap := m.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.IsAdmin)
	assert.False(t, snap.Loading)
	assert.Equal(t, "u1", snap.UserID)
	assert.Equal(t, auth.RoleAdmin, snap.Role)
}

func TestStartTwiceIsNoop(t *testing.T) {
	h := newHarness(t, nil, nil)
	m := h.build(t, testOptions())

	m.Start(context.Background())
	m.Start(context.Background())
	waitReady(t, m)

	sub, _ := h.identity.counts()
	assert.Equal(t, 1, sub)
}

func TestFetchErrorLeavesSignedOut(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	h.identity.getErr = errBoom
	m := h.build(t, testOptions())

	m.Start(context.Background())
	waitReady(t, m)

	snap := m.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.Loading)
}

func TestSubscribeErrorKeepsInitialSession(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	h.identity.subErr = errBoom
	m := h.build(t, testOptions())

	m.Start(context.Background())
	waitReady(t, m)

	snap := m.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, auth.RoleUser, snap.Role)
}

func TestNotificationDuringSetupSupersedesInitialSession(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
		h.identity.onSubscribe = func() { h.identity.emit(auth.EventSignedOut, nil) }
		m := h.build(t, testOptions())

		m.Start(context.Background())
		waitReady(t, m)

		snap := m.Snapshot()
		assert.False(t, snap.IsAuthenticated)
		assert.False(t, snap.IsAdmin)
		assert.False(t, snap.Loading)
		assert.NotContains(t, h.profiles.lookups(), "u1")
	})

	t.Run("signed in as someone else", func(t *testing.T) {
		h := newHarness(t, sess("u1"), map[string]string{"u1": "admin", "u2": "user"})
		h.identity.onSubscribe = func() { h.identity.emit(auth.EventSignedIn, sess("u2")) }
		m := h.build(t, testOptions())

		m.Start(context.Background())
		waitReady(t, m)

		snap := m.Snapshot()
		assert.Equal(t, "u2", snap.UserID)
		assert.False(t, snap.IsAdmin)
		assert.NotContains(t, h.profiles.lookups(), "u1")
	})
}

func TestSafetyTimeoutEndsLoading(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	h.identity.getGate = make(chan struct{}) // never released
	opts := testOptions()
	opts.SafetyTimeout = 30 * time.Millisecond
	m := h.build(t, opts)

	start := time.Now()
	m.Start(context.Background())
	assert.True(t, m.Snapshot().Loading)

	waitReady(t, m)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	snap := m.Snapshot()
	assert.False(t, snap.Loading)
	assert.False(t, snap.IsAuthenticated)
}

func TestSafetyTimeoutAfterLoadIsNoop(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	opts := testOptions()
	opts.SafetyTimeout = 20 * time.Millisecond
	m := h.build(t, opts)

	m.Start(context.Background())
	waitReady(t, m)
	before := len(h.recorder.all())

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, h.recorder.all(), before, "timer firing after load must not emit")
	assert.True(t, m.Snapshot().IsAuthenticated)
}

func TestLiveUpdates(t *testing.T) {
	h := newHarness(t, nil, map[string]string{"u1": "admin"})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	h.identity.emit(auth.EventSignedIn, sess("u1"))
	snap := m.Snapshot()
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.IsAdmin)
	assert.False(t, snap.CollapseUI)
	assert.Equal(t, auth.EventSignedIn, snap.LastEvent)

	h.identity.emit(auth.EventUserDeleted, nil)
	snap = m.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsAdmin)
	assert.True(t, snap.CollapseUI)
	assert.Equal(t, auth.EventUserDeleted, snap.LastEvent)

	h.identity.emit(auth.EventSignedIn, sess("u1"))
	h.identity.emit(auth.EventSignedOut, nil)
	snap = m.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.True(t, snap.CollapseUI)
}

func TestStaleRoleResultIsDiscarded(t *testing.T) {
	h := newHarness(t, nil, map[string]string{"u1": "admin", "u2": "user"})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	gate := h.profiles.block("u1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.identity.emit(auth.EventSignedIn, sess("u1"))
	}()
	eventually(t, func() bool { return m.Snapshot().UserID == "u1" }, "u1 signed in")

	h.identity.emit(auth.EventSignedIn, sess("u2"))
	require.Equal(t, "u2", m.Snapshot().UserID)

	close(gate)
	<-done

	snap := m.Snapshot()
	assert.Equal(t, "u2", snap.UserID)
	assert.Equal(t, auth.RoleUser, snap.Role)
	assert.False(t, snap.IsAdmin)
}

func TestRoleLookupDiscardedAfterSignOut(t *testing.T) {
	h := newHarness(t, nil, map[string]string{"u1": "admin"})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	gate := h.profiles.block("u1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.identity.emit(auth.EventSignedIn, sess("u1"))
	}()
	eventually(t, func() bool { return m.Snapshot().UserID == "u1" }, "u1 signed in")

	h.identity.emit(auth.EventSignedOut, nil)
	close(gate)
	<-done

	snap := m.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsAdmin)
	assert.Equal(t, auth.RoleUnknown, snap.Role)
}

func TestCloseUnsubscribesExactlyOnce(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	m.Close()
	m.Close()

	sub, unsub := h.identity.counts()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 1, unsub)

	before := m.Snapshot()
	emitted := len(h.recorder.all())
	h.identity.emit(auth.EventSignedOut, nil)
	assert.Equal(t, before, m.Snapshot())
	assert.Len(t, h.recorder.all(), emitted)
}

func TestCloseBeforeSessionFetchCompletes(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	h.identity.getGate = make(chan struct{})
	m := h.build(t, testOptions())

	m.Start(context.Background())
	m.Close()
	close(h.identity.getGate)

	waitReady(t, m)
	time.Sleep(20 * time.Millisecond)

	sub, unsub := h.identity.counts()
	assert.Equal(t, 0, sub)
	assert.Equal(t, 0, unsub)
	assert.Empty(t, h.profiles.lookups())
	assert.False(t, m.Snapshot().IsAuthenticated)
}

func TestCloseDuringSubscribeReleasesSubscription(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	var m *Manager
	h.identity.onSubscribe = func() { m.Close() }
	m = h.build(t, testOptions())

	m.Start(context.Background())
	eventually(t, func() bool {
		_, unsub := h.identity.counts()
		return unsub == 1
	}, "subscription released")

	time.Sleep(20 * time.Millisecond)
	sub, unsub := h.identity.counts()
	assert.Equal(t, 1, sub)
	assert.Equal(t, 1, unsub)
	assert.False(t, m.Snapshot().IsAuthenticated)
}

func TestParentCancellationTearsDown(t *testing.T) {
	h := newHarness(t, nil, nil)
	m := h.build(t, testOptions())

	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	waitReady(t, m)

	cancel()
	eventually(t, func() bool {
		_, unsub := h.identity.counts()
		return unsub == 1
	}, "cancelling the parent unsubscribes")
}

func TestLogoutSuccess(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	res := m.Logout(context.Background())

	assert.Equal(t, LogoutRedirect, res.Mode)
	assert.NoError(t, res.SignOutErr)
	assert.Equal(t, []auth.SignOutScope{auth.ScopeGlobal}, h.identity.scopes())
	assert.Equal(t, 1, h.artifacts.cleared)
	assert.Empty(t, h.artifacts.removed)
	assert.Equal(t, []navCall{{path: "/", fullReload: true}}, h.navigator.history())

	snap := m.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsAdmin)
	assert.False(t, snap.Busy)
}

func TestLogoutClearsStateBeforeSignOut(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	h.identity.signOutGate = make(chan struct{})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	done := make(chan LogoutResult, 1)
	go func() { done <- m.Logout(context.Background()) }()

	eventually(t, func() bool { return len(h.identity.scopes()) == 1 }, "sign-out requested")
	snap := m.Snapshot()
	assert.False(t, snap.IsAuthenticated, "state is cleared optimistically")
	assert.True(t, snap.Busy)
	assert.True(t, snap.CollapseUI)

	assert.Equal(t, LogoutSkipped, m.Logout(context.Background()).Mode)

	close(h.identity.signOutGate)
	res := <-done
	assert.Equal(t, LogoutRedirect, res.Mode)
	assert.Len(t, h.identity.scopes(), 1)
	assert.False(t, m.Snapshot().Busy)
}

func TestLogoutSignOutFailureFallsBackToPurge(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	h.identity.signOutErr = errBoom
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	res := m.Logout(context.Background())

	assert.Equal(t, LogoutRedirect, res.Mode)
	assert.ErrorIs(t, res.SignOutErr, errBoom)
	assert.NoError(t, res.PurgeErr)
	assert.ElementsMatch(t, []removal{
		{scope: ArtifactSession, key: DefaultTokenKey},
		{scope: ArtifactLocal, key: DefaultTokenKey},
	}, h.artifacts.removed)
	assert.Equal(t, []navCall{{path: "/", fullReload: true}}, h.navigator.history())
	assert.False(t, m.Snapshot().IsAuthenticated)
}

func TestLogoutPurgeFailureNavigatesInApp(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	h.identity.signOutErr = errBoom
	h.artifacts.removeErr = errBoom
	opts := testOptions()
	opts.EntryPath = "/welcome"
	m := h.build(t, opts)
	m.Start(context.Background())
	waitReady(t, m)

	res := m.Logout(context.Background())

	assert.Equal(t, LogoutNavigate, res.Mode)
	assert.Error(t, res.PurgeErr)
	assert.Equal(t, []navCall{{path: "/welcome"}}, h.navigator.history())
	assert.False(t, m.Snapshot().IsAuthenticated)
}

func TestLogoutContinuesWhenClearFails(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	h.artifacts.clearErr = errBoom
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	res := m.Logout(context.Background())
	assert.Equal(t, LogoutRedirect, res.Mode)
	assert.Equal(t, []auth.SignOutScope{auth.ScopeGlobal}, h.identity.scopes())
}

func TestLogoutWaitsRedirectDelay(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	opts := testOptions()
	opts.RedirectDelay = 40 * time.Millisecond
	m := h.build(t, opts)
	m.Start(context.Background())
	waitReady(t, m)

	start := time.Now()
	m.Logout(context.Background())
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestSnapshotsArriveInOrder(t *testing.T) {
	h := newHarness(t, nil, map[string]string{"u1": "admin"})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	h.identity.emit(auth.EventSignedIn, sess("u1"))
	h.identity.emit(auth.EventSignedOut, nil)

	snaps := h.recorder.all()
	last := snaps[len(snaps)-1]
	assert.Equal(t, m.Snapshot(), last)
	assert.False(t, last.IsAuthenticated)

	var sawAdmin bool
	for _, s := range snaps {
		if s.IsAdmin {
			sawAdmin = true
		}
	}
	assert.True(t, sawAdmin)
}

type preparingIdentity struct {
	*fakeIdentity
	artifacts *fakeArtifacts

	mu            sync.Mutex
	prepared      int
	clearedAtPrep int
}

func (p *preparingIdentity) PrepareSignOut(context.Context) error {
	p.artifacts.mu.Lock()
	cleared := p.artifacts.cleared
	p.artifacts.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.prepared++
	p.clearedAtPrep = cleared
	return nil
}

func TestLogoutCapturesCredentialsBeforeClearing(t *testing.T) {
	h := newHarness(t, sess("u1"), nil)
	id := &preparingIdentity{fakeIdentity: h.identity, artifacts: h.artifacts}
	m := NewManager(Dependencies{
		Identity:  id,
		Profiles:  h.profiles,
		Artifacts: h.artifacts,
		Navigator: h.navigator,
	}, testOptions(), nil)
	t.Cleanup(m.Close)

	// not started: logout may arrive before the session has loaded
	res := m.Logout(context.Background())
	assert.Equal(t, LogoutRedirect, res.Mode)

	id.mu.Lock()
	defer id.mu.Unlock()
	assert.Equal(t, 1, id.prepared)
	assert.Equal(t, 0, id.clearedAtPrep)
	assert.Equal(t, 1, h.artifacts.cleared)
	assert.Equal(t, []auth.SignOutScope{auth.ScopeGlobal}, h.identity.scopes())
}

func TestRoleLookupAfterCloseDuringInitIsDiscarded(t *testing.T) {
	h := newHarness(t, sess("u1"), map[string]string{"u1": "admin"})
	gate := h.profiles.block("u1")
	m := h.build(t, testOptions())
	m.Start(context.Background())

	eventually(t, func() bool { return len(h.profiles.lookups()) == 1 }, "role lookup started")
	m.Close()
	before := m.Snapshot()
	emitted := len(h.recorder.all())

	close(gate)
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, before, m.Snapshot())
	assert.Len(t, h.recorder.all(), emitted)
	assert.Equal(t, auth.RoleUnknown, m.Snapshot().Role)
	assert.False(t, m.Snapshot().IsAdmin)
}

func TestRoleLookupAfterCloseDuringLiveUpdateIsDiscarded(t *testing.T) {
	h := newHarness(t, nil, map[string]string{"u1": "admin"})
	m := h.build(t, testOptions())
	m.Start(context.Background())
	waitReady(t, m)

	gate := h.profiles.block("u1")
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.identity.emit(auth.EventSignedIn, sess("u1"))
	}()
	eventually(t, func() bool { return len(h.profiles.lookups()) == 1 }, "role lookup started")

	m.Close()
	before := m.Snapshot()
	emitted := len(h.recorder.all())

	close(gate)
	<-done

	assert.Equal(t, before, m.Snapshot())
	assert.Len(t, h.recorder.all(), emitted)
	assert.False(t, m.Snapshot().IsAdmin)
}
