// Package protected implements the session handling for archives sitting
// behind a bot verification wall. Cookies are obtained from a real browser
// and replayed on every api request.
package protected

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"forarchives/internal/components/assert"
	"forarchives/internal/components/chrono"
	"forarchives/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

const (
	report_session_bootstrap = "session.bootstrap"
	report_session_reinit    = "session.reinit"
	report_session_gen       = "session.generation"
)

const DefaultCooldown = 300 * time.Second

type State int

const (
	StateUninitialized State = iota
	StateBootstrapping
	StateReady
	StateBlocked
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateBootstrapping:
		return "bootstrapping"
	case StateReady:
		return "ready"
	case StateBlocked:
		return "blocked"
	}
	return "unknown"
}

var (
	ErrClosed    = errors.New("session manager closed")
	ErrNoCookies = errors.New("bootstrap produced no cookies")
)

// Bootstrapper produces a fresh cookie set, typically by driving a browser
// through the verification page.
type Bootstrapper interface {
	Bootstrap(ctx context.Context) ([]*http.Cookie, error)
}

// Lease is a snapshot of the session at the time it was handed out.
type Lease struct {
	Client  *resty.Client
	Cookies []*http.Cookie
	// Generation increases with every successful bootstrap.
	Generation uint64
}

// SessionManager owns the one cookie set and connection pool used for a
// protected archive. Bootstraps are single-flight.
type SessionManager struct {
	client       *resty.Client
	bootstrapper Bootstrapper
	cooldown     time.Duration
	clock        chrono.API
	tel          telemetry.API

	group singleflight.Group

	mu            sync.Mutex
	state         State
	cookies       []*http.Cookie
	lastBootstrap time.Time
	generation    uint64
	closed        bool
}

func NewSessionManager(
	client *resty.Client,
	bootstrapper Bootstrapper,
	cooldown time.Duration,
	clock chrono.API,
	tel telemetry.API,
) *SessionManager {
	assert.NotNil(client)
	assert.NotNil(bootstrapper)
	assert.NotNil(clock)
	assert.NonNegative("cooldown", int64(cooldown))

	return &SessionManager{
		client:       client,
		bootstrapper: bootstrapper,
		cooldown:     cooldown,
		clock:        clock,
		tel:          telemetry.NewScopedAPI("protected", tel),
	}
}

func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) leaseLocked() Lease {
	cookies := make([]*http.Cookie, len(m.cookies))
	copy(cookies, m.cookies)
	return Lease{
		Client:     m.client,
		Cookies:    cookies,
		Generation: m.generation,
	}
}

// Session returns the current session, bootstrapping first when there is
// none yet or its cookies are gone.
func (m *SessionManager) Session(ctx context.Context) (Lease, error) {
	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return Lease{}, ErrClosed
		}
		if m.state == StateReady && len(m.cookies) > 0 {
			lease := m.leaseLocked()
			m.mu.Unlock()
			return lease, nil
		}
		m.mu.Unlock()

		err := m.Bootstrap(ctx, false)
		if err != nil {
			return Lease{}, err
		}
	}
}

// Bootstrap acquires a new cookie set. Unless force is set it does nothing
// when the last successful bootstrap is younger than the cooldown.
// Concurrent callers share one in-flight bootstrap.
func (m *SessionManager) Bootstrap(ctx context.Context, force bool) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	fresh := m.state == StateReady &&
		len(m.cookies) > 0 &&
		m.clock.Now().Sub(m.lastBootstrap) < m.cooldown
	seen := m.generation
	m.mu.Unlock()
	if fresh && !force {
		return nil
	}

	// the bootstrap is shared so a caller giving up must not cancel it
	shared := context.WithoutCancel(ctx)
	result := m.group.DoChan("bootstrap", func() (any, error) {
		return nil, m.runBootstrap(shared, seen)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-result:
		return res.Err
	}
}

// runBootstrap does nothing when a bootstrap completed after the caller saw
// generation seen, the caller then already has a newer session.
func (m *SessionManager) runBootstrap(ctx context.Context, seen uint64) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.generation != seen && m.state == StateReady {
		m.mu.Unlock()
		return nil
	}
	previous := m.state
	m.state = StateBootstrapping
	m.mu.Unlock()

	start := time.Now()
	cookies, err := m.bootstrapper.Bootstrap(ctx)
	if err == nil && len(cookies) == 0 {
		err = ErrNoCookies
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		if previous == StateUninitialized {
			m.state = StateUninitialized
		} else {
			m.state = StateBlocked
		}
		m.tel.ReportBroken(report_session_bootstrap, err)
		return fmt.Errorf("bootstrap session: %w", err)
	}
	if m.closed {
		return ErrClosed
	}

	m.cookies = cookies
	m.lastBootstrap = m.clock.Now()
	m.generation++
	m.state = StateReady
	m.tel.ReportDebug(report_session_bootstrap, "session ready", len(cookies), time.Since(start).String())
	m.tel.ReportCount(report_session_gen, int64(m.generation))
	return nil
}

// Reinit forces a bootstrap after a challenge was seen by a request that used
// the given generation. When the session already moved past that generation
// the challenge was handled by someone else and nothing happens.
func (m *SessionManager) Reinit(ctx context.Context, generation uint64) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if generation != m.generation {
		m.mu.Unlock()
		return nil
	}
	if m.state == StateReady {
		m.state = StateBlocked
	}
	m.mu.Unlock()

	m.tel.ReportWarning(report_session_reinit, "challenge detected", generation)
	return m.Bootstrap(ctx, true)
}

// Close drops the session. Every later call fails with ErrClosed.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cookies = nil
	m.state = StateUninitialized
	m.client.GetClient().CloseIdleConnections()
	return nil
}
