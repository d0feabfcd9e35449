// Package telegram is the live user session: MTProto login, chat history,
// participants and sender lookup, built on gotd.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	tdsession "github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/whoisscan/internal/session"
)

type Options struct {
	AppID   int
	AppHash string
	// SessionPath is where the authorization key is persisted between runs.
	SessionPath string
	// Zap receives gotd's own protocol logs. Nil disables them.
	Zap *zap.Logger
}

// Client owns one MTProto connection. The connection loop runs in a
// background goroutine between Connect and Disconnect.
type Client struct {
	client *telegram.Client
	api    *tg.Client
	logger *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	group    *errgroup.Group
	codeHash string

	peers *peerCache
	// floodWait configures the sleeps between FLOOD_WAIT retries.
	floodWait []tgerr.FloodWaitOption
}

func New(opts Options, logger *slog.Logger) *Client {
	zl := opts.Zap
	if zl == nil {
		zl = zap.NewNop()
	}
	client := telegram.NewClient(opts.AppID, opts.AppHash, telegram.Options{
		SessionStorage: &tdsession.FileStorage{Path: opts.SessionPath},
		Logger:         zl,
	})
	return &Client{
		client: client,
		api:    client.API(),
		logger: logger,
		peers:  newPeerCache(),
	}
}

// Connect starts the connection loop and returns once the client is ready
// for API calls.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.group != nil {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	g, gctx := errgroup.WithContext(runCtx)
	ready := make(chan struct{})

	g.Go(func() error {
		return c.client.Run(gctx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return ctx.Err()
		})
	})

	select {
	case <-ready:
		c.mu.Lock()
		c.cancel, c.group = cancel, g
		c.mu.Unlock()
		c.logger.Info("telegram connected")
		return nil
	case <-gctx.Done():
		cancel()
		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("telegram run: %w", err)
		}
		return errors.New("telegram connection closed before ready")
	case <-ctx.Done():
		cancel()
		_ = g.Wait()
		return ctx.Err()
	}
}

// Disconnect stops the connection loop and waits for it to exit.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	cancel, g := c.cancel, c.group
	c.cancel, c.group = nil, nil
	c.mu.Unlock()

	if g == nil {
		return nil
	}
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("telegram run: %w", err)
	}
	c.logger.Info("telegram disconnected")
	return nil
}

func (c *Client) IsAuthorized(ctx context.Context) (bool, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return false, fmt.Errorf("auth status: %w", err)
	}
	return status.Authorized, nil
}

func (c *Client) SendCode(ctx context.Context, phone string) error {
	sent, err := c.client.Auth().SendCode(ctx, phone, auth.SendCodeOptions{})
	if err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	code, ok := sent.(*tg.AuthSentCode)
	if !ok {
		return fmt.Errorf("unexpected send code response %T", sent)
	}
	c.mu.Lock()
	c.codeHash = code.PhoneCodeHash
	c.mu.Unlock()
	return nil
}

func (c *Client) SignIn(ctx context.Context, phone, code string) error {
	c.mu.Lock()
	hash := c.codeHash
	c.mu.Unlock()
	if hash == "" {
		return errors.New("sign in before code was sent")
	}

	_, err := c.client.Auth().SignIn(ctx, phone, code, hash)
	if errors.Is(err, auth.ErrPasswordAuthNeeded) {
		return session.ErrPasswordNeeded
	}
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

func (c *Client) SignInPassword(ctx context.Context, password string) error {
	if _, err := c.client.Auth().Password(ctx, password); err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}
