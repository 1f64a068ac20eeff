// internal/pkg/session/manager.go
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"workwise-service/internal/domain/auth"

	"go.uber.org/zap"
)

// Manager owns the authentication state of one mounted presentation client:
// session discovery, live session-change updates, role lookup and logout.
type Manager struct {
	identity  IdentityService
	artifacts ArtifactStore
	navigator Navigator
	roles     *RoleResolver
	opts      Options
	logger    *zap.Logger

	mu      sync.Mutex
	state   authState
	seq     uint64 // bumped by every notification and by logout
	sub     Subscription
	timer   *time.Timer
	started bool
	closed  bool

	ctx        context.Context
	cancel     context.CancelFunc
	stopParent func() bool
	closeOnce  sync.Once

	ready     chan struct{}
	readyOnce sync.Once

	emitMu sync.Mutex
}

type authState struct {
	session    *auth.Session
	role       auth.Role
	loading    bool
	busy       bool
	collapseUI bool
	lastEvent  auth.EventKind
}

func NewManager(deps Dependencies, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("session")
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		identity:  deps.Identity,
		artifacts: deps.Artifacts,
		navigator: deps.Navigator,
		roles:     NewRoleResolver(deps.Profiles, logger),
		opts:      opts.withDefaults(),
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
	}
}

// Start mounts the manager: it arms the safety timer and runs the
// initialization protocol in the background. Cancelling parent tears the
// manager down. Subsequent calls are no-ops.
func (m *Manager) Start(parent context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.state.loading = true
	m.timer = time.AfterFunc(m.opts.SafetyTimeout, m.onSafetyTimeout)
	if parent != nil {
		m.stopParent = context.AfterFunc(parent, m.Close)
	}
	m.mu.Unlock()

	m.emit()
	go m.initialize()
}

// Close tears the manager down exactly once: the safety timer is stopped, the
// notification subscription released and every in-flight continuation is
// discarded.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		sub := m.sub
		m.sub = nil
		timer := m.timer
		stopParent := m.stopParent
		m.mu.Unlock()

		m.cancel()
		if timer != nil {
			timer.Stop()
		}
		if sub != nil {
			sub.Unsubscribe()
		}
		if stopParent != nil {
			stopParent()
		}
		m.markReady()
		m.logger.Debug("session manager torn down")
	})
}

// Ready is closed once loading first settles (or on teardown).
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// Snapshot returns the current read-only view.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		Loading:    m.state.loading,
		Busy:       m.state.busy,
		CollapseUI: m.state.collapseUI,
		LastEvent:  m.state.lastEvent,
	}
	if m.state.session != nil {
		s.IsAuthenticated = true
		s.UserID = m.state.session.UserID
		s.Email = m.state.session.Email
		s.Role = m.state.role
		s.IsAdmin = m.state.role == auth.RoleAdmin
	}
	return s
}

func (m *Manager) initialize() {
	ctx := m.ctx

	initial, err := m.identity.GetCurrentSession(ctx)
	if err != nil {
		m.logger.Warn("session fetch failed, continuing signed out", zap.Error(err))
		m.mutate(func(s *authState) {
			s.session = nil
			s.role = auth.RoleUnknown
			s.loading = false
		})
		return
	}

	// Capture the notification sequence before subscribing so that anything
	// delivered during setup supersedes the initially fetched session.
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	seq := m.seq
	m.mu.Unlock()

	sub, err := m.identity.Subscribe(ctx, m.handleEvent)
	if err != nil {
		m.logger.Warn("session subscription failed, live updates disabled", zap.Error(err))
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		if sub != nil {
			sub.Unsubscribe()
		}
		return
	}
	m.sub = sub
	if m.seq != seq {
		m.state.loading = false
		m.mu.Unlock()
		m.logger.Debug("initial session superseded by notification")
		m.afterMutation()
		return
	}
	if initial == nil || initial.UserID == "" {
		m.state.session = nil
		m.state.role = auth.RoleUnknown
		m.state.loading = false
		m.mu.Unlock()
		m.logger.Debug("no active session")
		m.afterMutation()
		return
	}
	m.state.session = initial
	m.state.role = auth.RoleUnknown
	m.mu.Unlock()
	m.emit()

	m.logger.Debug("existing session found", zap.String("user_id", initial.UserID))
	m.applyRole(initial.UserID, m.roles.Resolve(ctx, initial.UserID))

	m.mutate(func(s *authState) { s.loading = false })
}

func (m *Manager) handleEvent(kind auth.EventKind, s *auth.Session) {
	switch kind {
	case auth.EventSignedIn:
		if s == nil || s.UserID == "" {
			return
		}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.seq++
		if m.state.session == nil || m.state.session.UserID != s.UserID {
			m.state.role = auth.RoleUnknown
		}
		m.state.session = s
		m.state.collapseUI = false
		m.state.lastEvent = kind
		m.mu.Unlock()
		m.emit()

		m.logger.Debug("signed in", zap.String("user_id", s.UserID))
		m.applyRole(s.UserID, m.roles.Resolve(m.ctx, s.UserID))

	case auth.EventSignedOut, auth.EventUserDeleted:
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.seq++
		m.clearLocked(kind)
		m.mu.Unlock()
		m.logger.Debug("signed out", zap.String("event", string(kind)))
		m.emit()

	default:
		m.logger.Debug("ignoring session event", zap.String("event", string(kind)))
	}
}

// applyRole stores role only if userID is still the signed-in subject.
func (m *Manager) applyRole(userID string, role auth.Role) {
	m.mu.Lock()
	if m.closed || m.state.session == nil || m.state.session.UserID != userID {
		m.mu.Unlock()
		return
	}
	m.state.role = role
	m.mu.Unlock()
	m.emit()
}

func (m *Manager) onSafetyTimeout() {
	m.mu.Lock()
	if m.closed || !m.state.loading {
		m.mu.Unlock()
		return
	}
	m.state.loading = false
	m.mu.Unlock()

	m.logger.Warn("safety timeout: forcing loading state to complete",
		zap.Duration("timeout", m.opts.SafetyTimeout),
	)
	m.afterMutation()
}

func (m *Manager) clearLocked(kind auth.EventKind) {
	m.state.session = nil
	m.state.role = auth.RoleUnknown
	m.state.collapseUI = true
	m.state.lastEvent = kind
}

// mutate applies fn under the lock unless the manager has been torn down.
func (m *Manager) mutate(fn func(*authState)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	fn(&m.state)
	m.mu.Unlock()
	m.afterMutation()
}

// afterMutation publishes the new state, then releases Ready waiters once
// loading has settled so they observe the final snapshot.
func (m *Manager) afterMutation() {
	m.emit()
	m.mu.Lock()
	loading := m.state.loading
	m.mu.Unlock()
	if !loading {
		m.markReady()
	}
}

func (m *Manager) markReady() {
	m.readyOnce.Do(func() { close(m.ready) })
}

// emit publishes the current snapshot. emitMu keeps deliveries ordered.
func (m *Manager) emit() {
	if m.opts.OnChange == nil {
		return
	}
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.opts.OnChange(snap)
}

// Logout signs the user out and sends the presentation layer to the entry
// point. It always leaves the manager without a session; failures only
// degrade how the entry point is reached.
func (m *Manager) Logout(ctx context.Context) LogoutResult {
	m.mu.Lock()
	if m.state.busy {
		m.mu.Unlock()
		return LogoutResult{Mode: LogoutSkipped}
	}
	m.state.busy = true
	m.seq++
	m.clearLocked(auth.EventSignedOut)
	m.mu.Unlock()
	m.emit()

	defer func() {
		m.mu.Lock()
		m.state.busy = false
		m.mu.Unlock()
		m.emit()
	}()

	m.logger.Info("logout started")

	if p, ok := m.identity.(SignOutPreparer); ok {
		if err := p.PrepareSignOut(ctx); err != nil {
			m.logger.Warn("failed to capture credentials before clearing artifacts", zap.Error(err))
		}
	}

	if err := m.artifacts.Clear(ctx); err != nil {
		m.logger.Warn("failed to clear local auth artifacts", zap.Error(err))
	}

	err := m.identity.SignOut(ctx, auth.ScopeGlobal)
	if err == nil {
		m.sleep(ctx, m.opts.RedirectDelay)
		if rerr := m.navigator.Redirect(ctx, m.opts.EntryPath); rerr != nil {
			m.logger.Warn("redirect after logout failed", zap.Error(rerr))
		}
		m.logger.Info("logout completed")
		return LogoutResult{Mode: LogoutRedirect}
	}

	m.logger.Error("sign-out failed, forcing local logout", zap.Error(err))
	res := LogoutResult{SignOutErr: err}

	m.mu.Lock()
	m.clearLocked(auth.EventSignedOut)
	m.mu.Unlock()
	m.emit()

	if perr := m.purgeToken(ctx); perr != nil {
		m.logger.Error("fallback artifact purge failed, navigating in-app", zap.Error(perr))
		res.PurgeErr = perr
		res.Mode = LogoutNavigate
		if nerr := m.navigator.Navigate(ctx, m.opts.EntryPath); nerr != nil {
			m.logger.Warn("in-app navigation after logout failed", zap.Error(nerr))
		}
		return res
	}

	m.sleep(ctx, m.opts.FallbackRedirectDelay)
	if rerr := m.navigator.Redirect(ctx, m.opts.EntryPath); rerr != nil {
		m.logger.Warn("redirect after logout failed", zap.Error(rerr))
	}
	res.Mode = LogoutRedirect
	return res
}

// purgeToken removes the token key from both artifact scopes.
func (m *Manager) purgeToken(ctx context.Context) error {
	return errors.Join(
		m.artifacts.Remove(ctx, ArtifactSession, m.opts.TokenKey),
		m.artifacts.Remove(ctx, ArtifactLocal, m.opts.TokenKey),
	)
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
