package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/depths.social/internal/identity"
	apperrors "github.com/louisbranch/depths.social/internal/platform/errors"
	"github.com/louisbranch/depths.social/internal/platform/timeouts"
)

const defaultLoginAttempts = 3

// ProfileEnsurer is the slice of the identity client the manager needs.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context) (identity.Profile, error)
}

// Options tunes manager retry behavior.
type Options struct {
	// LoginAttempts bounds ensure-profile attempts per login; zero uses
	// the default.
	LoginAttempts int
	// RetryInitial overrides the initial backoff between attempts.
	RetryInitial time.Duration
	// RetryMax caps the backoff between attempts.
	RetryMax time.Duration
}

// Manager drives the session state machine. All mutation goes through it;
// callers observe the session only via Current snapshots.
type Manager struct {
	creds    CredentialSource
	identity ProfileEnsurer

	attempts     int
	retryInitial time.Duration
	retryMax     time.Duration
	sleep        func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	state     State
	principal string
	token     string
	profile   *identity.Profile
	lastErr   error
}

// NewManager builds a manager in StateUnauthenticated.
func NewManager(creds CredentialSource, ensurer ProfileEnsurer, opts Options) *Manager {
	attempts := opts.LoginAttempts
	if attempts <= 0 {
		attempts = defaultLoginAttempts
	}
	retryInitial := opts.RetryInitial
	if retryInitial <= 0 {
		retryInitial = timeouts.LoginRetryInitial
	}
	retryMax := opts.RetryMax
	if retryMax <= 0 {
		retryMax = timeouts.LoginRetryMax
	}
	return &Manager{
		creds:        creds,
		identity:     ensurer,
		attempts:     attempts,
		retryInitial: retryInitial,
		retryMax:     retryMax,
		sleep:        sleepContext,
	}
}

// Login establishes the authenticated identity. Calls made while a login
// is already in flight, or while authenticated, collapse into no-ops so
// at most one authentication attempt runs at a time. After a failure the
// error state is sticky until Acknowledge.
func (m *Manager) Login(ctx context.Context) error {
	if m == nil {
		return apperrors.E(apperrors.KindUnauthenticated, "session manager is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	switch m.state {
	case StateAuthenticating, StateAuthenticated:
		m.mu.Unlock()
		return nil
	case StateError:
		err := m.lastErr
		m.mu.Unlock()
		return err
	}
	m.state = StateAuthenticating
	m.mu.Unlock()

	creds, err := m.resolveCredentials(ctx)
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	m.token = creds.Token
	m.mu.Unlock()

	profile, err := m.ensureProfileWithRetry(ctx)
	if err != nil {
		return m.fail(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticating {
		// A logout raced the login; discard the result.
		return nil
	}
	principal := profile.Principal
	if principal == "" {
		principal = creds.Principal
	}
	m.state = StateAuthenticated
	m.principal = principal
	m.profile = &profile
	m.lastErr = nil
	log.Printf("session authenticated principal=%s", principal)
	return nil
}

func (m *Manager) resolveCredentials(ctx context.Context) (Credentials, error) {
	if m.creds == nil {
		return Credentials{}, apperrors.E(apperrors.KindUnauthenticated, "no credential source configured")
	}
	return m.creds.Resolve(ctx)
}

// ensureProfileWithRetry calls ensure_profile, retrying with doubling
// backoff while the identity service is unavailable. The call itself is
// idempotent server-side: repeating it cannot trigger a second onboarding
// credit.
func (m *Manager) ensureProfileWithRetry(ctx context.Context) (identity.Profile, error) {
	if m.identity == nil {
		return identity.Profile{}, apperrors.E(apperrors.KindUnavailable, "identity service client is not configured")
	}
	delay := m.retryInitial
	var lastErr error
	for attempt := 1; attempt <= m.attempts; attempt++ {
		profile, err := m.identity.EnsureProfile(ctx)
		if err == nil {
			return profile, nil
		}
		lastErr = err
		if !apperrors.Retryable(err) {
			return identity.Profile{}, err
		}
		if attempt == m.attempts {
			break
		}
		log.Printf("session ensure profile attempt %d failed, retrying in %s: %v", attempt, delay, err)
		if err := m.sleep(ctx, delay); err != nil {
			return identity.Profile{}, err
		}
		if delay < m.retryMax {
			delay *= 2
			if delay > m.retryMax {
				delay = m.retryMax
			}
		}
	}
	return identity.Profile{}, fmt.Errorf("ensure profile after %d attempts: %w", m.attempts, lastErr)
}

func (m *Manager) fail(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticating {
		return err
	}
	m.state = StateError
	m.principal = ""
	m.token = ""
	m.profile = nil
	m.lastErr = err
	log.Printf("session login failed: %v", err)
	return err
}

// Acknowledge clears a sticky login error so the next Login retries from
// scratch. It is a no-op in any other state.
func (m *Manager) Acknowledge() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateError {
		return
	}
	m.state = StateUnauthenticated
	m.lastErr = nil
}

// Logout resets the session unconditionally. In-flight mutations are not
// cancelled; their effects still land.
func (m *Manager) Logout() {
	m.reset("logout")
}

// Expire resets the session after the services rejected its credentials.
func (m *Manager) Expire() {
	m.reset("credentials rejected")
}

func (m *Manager) reset(reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUnauthenticated {
		log.Printf("session reset (%s)", reason)
	}
	m.state = StateUnauthenticated
	m.principal = ""
	m.token = ""
	m.profile = nil
	m.lastErr = nil
}

// Current returns a snapshot of the session. It never blocks on network
// activity.
func (m *Manager) Current() Session {
	if m == nil {
		return Session{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := Session{State: m.state, Principal: m.principal}
	if m.profile != nil {
		profile := *m.profile
		snapshot.Profile = &profile
	}
	return snapshot
}

// Token returns the bearer token for outbound RPCs, or empty when no
// login has resolved credentials.
func (m *Manager) Token() string {
	if m == nil {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// SetProfile replaces the cached profile copy. Only the orchestrator
// calls this, to apply an optimistic update, reconcile with the service's
// authoritative response, or roll back. The principal of an authenticated
// session never changes through this path.
func (m *Manager) SetProfile(profile identity.Profile) error {
	if m == nil {
		return apperrors.E(apperrors.KindUnauthenticated, "session manager is not configured")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateAuthenticated {
		return apperrors.E(apperrors.KindUnauthenticated, "no authenticated session")
	}
	if profile.Principal != "" && profile.Principal != m.principal {
		return apperrors.E(apperrors.KindInvalidInput, "profile principal does not match session")
	}
	profile.Principal = m.principal
	m.profile = &profile
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
