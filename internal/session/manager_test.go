package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	ConnectFunc        func(ctx context.Context) error
	IsAuthorizedFunc   func(ctx context.Context) (bool, error)
	SendCodeFunc       func(ctx context.Context, phone string) error
	SignInFunc         func(ctx context.Context, phone, code string) error
	SignInPasswordFunc func(ctx context.Context, password string) error
	DisconnectCalls    int
}

func (m *MockClient) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockClient) IsAuthorized(ctx context.Context) (bool, error) {
	if m.IsAuthorizedFunc != nil {
		return m.IsAuthorizedFunc(ctx)
	}
	return false, nil
}

func (m *MockClient) SendCode(ctx context.Context, phone string) error {
	if m.SendCodeFunc != nil {
		return m.SendCodeFunc(ctx, phone)
	}
	return nil
}

func (m *MockClient) SignIn(ctx context.Context, phone, code string) error {
	if m.SignInFunc != nil {
		return m.SignInFunc(ctx, phone, code)
	}
	return nil
}

func (m *MockClient) SignInPassword(ctx context.Context, password string) error {
	if m.SignInPasswordFunc != nil {
		return m.SignInPasswordFunc(ctx, password)
	}
	return nil
}

func (m *MockClient) Disconnect() error {
	m.DisconnectCalls++
	return nil
}

type staticPrompter struct {
	code, password string
	codeErr        error
	codeCalls      int
	passwordCalls  int
}

func (p *staticPrompter) Code(ctx context.Context) (string, error) {
	p.codeCalls++
	return p.code, p.codeErr
}

func (p *staticPrompter) Password(ctx context.Context) (string, error) {
	p.passwordCalls++
	return p.password, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func recordTransitions(m *Manager) *[]State {
	var seen []State
	m.OnTransition(func(from, to State) { seen = append(seen, to) })
	return &seen
}

func TestAuthorize_AlreadyAuthorized(t *testing.T) {
	client := &MockClient{
		IsAuthorizedFunc: func(ctx context.Context) (bool, error) { return true, nil },
	}
	prompter := &staticPrompter{}
	m := NewManager(client, prompter, "+15550001", discardLogger())
	seen := recordTransitions(m)

	require.NoError(t, m.Authorize(context.Background()))
	assert.Equal(t, Authorized, m.State())
	assert.Equal(t, []State{Connected, Authorized}, *seen)
	assert.Zero(t, prompter.codeCalls, "stored session should not prompt")
}

func TestAuthorize_CodeFlow(t *testing.T) {
	var gotPhone, gotCode string
	client := &MockClient{
		SendCodeFunc: func(ctx context.Context, phone string) error {
			gotPhone = phone
			return nil
		},
		SignInFunc: func(ctx context.Context, phone, code string) error {
			gotCode = code
			return nil
		},
	}
	m := NewManager(client, &staticPrompter{code: "12345"}, "+15550001", discardLogger())
	seen := recordTransitions(m)

	require.NoError(t, m.Authorize(context.Background()))
	assert.Equal(t, "+15550001", gotPhone)
	assert.Equal(t, "12345", gotCode)
	assert.Equal(t, []State{Connected, AwaitingCode, Authorized}, *seen)
}

func TestAuthorize_PasswordFlow(t *testing.T) {
	var gotPassword string
	client := &MockClient{
		SignInFunc: func(ctx context.Context, phone, code string) error {
			return ErrPasswordNeeded
		},
		SignInPasswordFunc: func(ctx context.Context, password string) error {
			gotPassword = password
			return nil
		},
	}
	prompter := &staticPrompter{code: "12345", password: "hunter2"}
	m := NewManager(client, prompter, "+15550001", discardLogger())
	seen := recordTransitions(m)

	require.NoError(t, m.Authorize(context.Background()))
	assert.Equal(t, "hunter2", gotPassword)
	assert.Equal(t, []State{Connected, AwaitingCode, AwaitingPassword, Authorized}, *seen)
	assert.Equal(t, 1, prompter.passwordCalls)
}

func TestAuthorize_WrongPassword(t *testing.T) {
	wrong := errors.New("PASSWORD_HASH_INVALID")
	client := &MockClient{
		SignInFunc:         func(ctx context.Context, phone, code string) error { return ErrPasswordNeeded },
		SignInPasswordFunc: func(ctx context.Context, password string) error { return wrong },
	}
	m := NewManager(client, &staticPrompter{code: "1", password: "bad"}, "+1", discardLogger())

	err := m.Authorize(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AwaitingPassword, authErr.State)
	assert.ErrorIs(t, err, wrong)
	assert.Equal(t, Failed, m.State())
}

func TestAuthorize_BadCode(t *testing.T) {
	client := &MockClient{
		SignInFunc: func(ctx context.Context, phone, code string) error {
			return errors.New("PHONE_CODE_INVALID")
		},
	}
	m := NewManager(client, &staticPrompter{code: "000"}, "+1", discardLogger())

	err := m.Authorize(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, AwaitingCode, authErr.State)
	assert.Equal(t, Failed, m.State())
}

func TestAuthorize_NoPhone(t *testing.T) {
	m := NewManager(&MockClient{}, &staticPrompter{}, "", discardLogger())

	err := m.Authorize(context.Background())
	assert.ErrorIs(t, err, ErrNoPhone)
	assert.Equal(t, Failed, m.State())
}

func TestAuthorize_ConnectFailure(t *testing.T) {
	client := &MockClient{
		ConnectFunc: func(ctx context.Context) error { return errors.New("dial tcp: refused") },
	}
	m := NewManager(client, &staticPrompter{}, "+1", discardLogger())

	err := m.Authorize(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, Disconnected, authErr.State)
	assert.Equal(t, Failed, m.State())

	require.NoError(t, m.Close())
	assert.Zero(t, client.DisconnectCalls, "never connected, nothing to release")
}

func TestAuthorize_PrompterError(t *testing.T) {
	m := NewManager(&MockClient{}, &staticPrompter{codeErr: io.EOF}, "+1", discardLogger())

	err := m.Authorize(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, Failed, m.State())
}

func TestSubmitCode_WrongState(t *testing.T) {
	m := NewManager(&MockClient{}, &staticPrompter{}, "+1", discardLogger())

	err := m.SubmitCode(context.Background(), "123")
	require.Error(t, err)
	assert.Equal(t, Disconnected, m.State(), "invalid transitions leave the state unchanged")
}

func TestClose_Idempotent(t *testing.T) {
	client := &MockClient{
		IsAuthorizedFunc: func(ctx context.Context) (bool, error) { return true, nil },
	}
	m := NewManager(client, &staticPrompter{}, "+1", discardLogger())
	require.NoError(t, m.Authorize(context.Background()))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Equal(t, 1, client.DisconnectCalls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "awaiting_password", AwaitingPassword.String())
	assert.Equal(t, "state(42)", State(42).String())
	assert.True(t, Authorized.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, AwaitingCode.Terminal())
}
