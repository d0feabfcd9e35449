// Package session drives the login flow of a live messaging session.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Client is the transport the state machine drives.
type Client interface {
	Connect(ctx context.Context) error
	IsAuthorized(ctx context.Context) (bool, error)
	SendCode(ctx context.Context, phone string) error
	// SignIn returns ErrPasswordNeeded when a second factor is required.
	SignIn(ctx context.Context, phone, code string) error
	SignInPassword(ctx context.Context, password string) error
	Disconnect() error
}

// Prompter supplies operator input while the machine is suspended in
// AwaitingCode or AwaitingPassword.
type Prompter interface {
	Code(ctx context.Context) (string, error)
	Password(ctx context.Context) (string, error)
}

// Manager owns the session state for the duration of one run.
type Manager struct {
	client   Client
	prompter Prompter
	phone    string
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	connected bool
	observers []func(from, to State)
}

// NewManager returns a manager in the Disconnected state.
func NewManager(client Client, prompter Prompter, phone string, logger *slog.Logger) *Manager {
	return &Manager{
		client:   client,
		prompter: prompter,
		phone:    phone,
		logger:   logger,
		state:    Disconnected,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnTransition registers fn to be called after every state change.
func (m *Manager) OnTransition(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	observers := append([]func(from, to State){}, m.observers...)
	m.mu.Unlock()

	m.logger.Info("session state changed", "from", from.String(), "to", to.String())
	for _, fn := range observers {
		fn(from, to)
	}
}

func (m *Manager) fail(err error) error {
	state := m.State()
	m.transition(Failed)
	m.logger.Error("session authorization failed", "state", state.String(), "error", err)
	return &AuthError{State: state, Err: err}
}

func (m *Manager) expect(want State) error {
	if got := m.State(); got != want {
		return fmt.Errorf("invalid transition: session is %s, want %s", got, want)
	}
	return nil
}

// Connect opens the transport: Disconnected -> Connected.
func (m *Manager) Connect(ctx context.Context) error {
	if err := m.expect(Disconnected); err != nil {
		return err
	}
	if err := m.client.Connect(ctx); err != nil {
		return m.fail(fmt.Errorf("connect: %w", err))
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	m.transition(Connected)
	return nil
}

// Authorize runs the machine until it reaches a terminal state, connecting
// first if needed. It blocks on the Prompter while awaiting a code or password.
func (m *Manager) Authorize(ctx context.Context) error {
	if m.State() == Disconnected {
		if err := m.Connect(ctx); err != nil {
			return err
		}
	}
	if err := m.expect(Connected); err != nil {
		return err
	}

	authorized, err := m.client.IsAuthorized(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("check authorization: %w", err))
	}
	if authorized {
		m.transition(Authorized)
		return nil
	}
	if m.phone == "" {
		return m.fail(ErrNoPhone)
	}

	if err := m.client.SendCode(ctx, m.phone); err != nil {
		return m.fail(fmt.Errorf("send code request: %w", err))
	}
	m.transition(AwaitingCode)

	code, err := m.prompter.Code(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("read code: %w", err))
	}
	if err := m.SubmitCode(ctx, code); err != nil {
		return err
	}
	if m.State() == Authorized {
		return nil
	}

	password, err := m.prompter.Password(ctx)
	if err != nil {
		return m.fail(fmt.Errorf("read password: %w", err))
	}
	return m.SubmitPassword(ctx, password)
}

// SubmitCode signs in with a one-time code: AwaitingCode -> Authorized,
// AwaitingPassword when a second factor is required, or Failed.
func (m *Manager) SubmitCode(ctx context.Context, code string) error {
	if err := m.expect(AwaitingCode); err != nil {
		return err
	}
	err := m.client.SignIn(ctx, m.phone, code)
	switch {
	case err == nil:
		m.transition(Authorized)
		return nil
	case errors.Is(err, ErrPasswordNeeded):
		m.transition(AwaitingPassword)
		return nil
	default:
		return m.fail(fmt.Errorf("sign in: %w", err))
	}
}

// SubmitPassword completes two-step verification: AwaitingPassword ->
// Authorized or Failed.
func (m *Manager) SubmitPassword(ctx context.Context, password string) error {
	if err := m.expect(AwaitingPassword); err != nil {
		return err
	}
	if err := m.client.SignInPassword(ctx, password); err != nil {
		return m.fail(fmt.Errorf("sign in with password: %w", err))
	}
	m.transition(Authorized)
	return nil
}

// Close releases the transport. Safe to call on every exit path and more
// than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	connected := m.connected
	m.connected = false
	m.mu.Unlock()

	if !connected {
		return nil
	}
	if err := m.client.Disconnect(); err != nil {
		m.logger.Warn("session disconnect failed", "error", err)
		return fmt.Errorf("disconnect: %w", err)
	}
	m.logger.Info("session released")
	return nil
}
