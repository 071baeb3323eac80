package lightning

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"lightning-paywall.backend/internal/config"
	domainerrors "lightning-paywall.backend/internal/domain/errors"
	"lightning-paywall.backend/pkg/logger"
)

type connState int

const (
	stateUninitialized connState = iota
	stateInitializing
	stateReady
	stateFailed
)

// Connector builds a live client. Swappable for tests.
type Connector func(ctx context.Context, cfg config.LightningConfig, workDir string) (Client, error)

// DefaultConnector dials the backend daemon over REST and probes liveness.
func DefaultConnector(ctx context.Context, cfg config.LightningConfig, workDir string) (Client, error) {
	client := NewRestClient(cfg.DaemonURL, cfg.APIKey, cfg.RequestTimeout)
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

type connectAttempt struct {
	done   chan struct{}
	client Client
	err    error
}

// ConnectionManager owns the single shared backend connection: lazily
// initialized on first use, single-flight under concurrent demand, retried
// per the connect policy. A failed initialization leaves the manager in a
// retryable state rather than crashing the process.
type ConnectionManager struct {
	cfg       config.LightningConfig
	connector Connector
	listener  EventListener

	mu                sync.Mutex
	state             connState
	attempt           *connectAttempt
	client            Client
	listenerID        string
	webhookRegistered bool

	// cancel tears down the current attempt/connection; a fresh one is
	// minted per attempt so Close leaves the manager reconnectable.
	cancel context.CancelFunc
}

// NewConnectionManager creates a manager; listener receives backend events
// once connected and may be nil.
func NewConnectionManager(cfg config.LightningConfig, connector Connector, listener EventListener) *ConnectionManager {
	if connector == nil {
		connector = DefaultConnector
	}
	return &ConnectionManager{
		cfg:       cfg,
		connector: connector,
		listener:  listener,
	}
}

// GetConnection returns the shared connection, initializing it on first
// call. Concurrent callers during initialization await the same in-flight
// attempt.
func (m *ConnectionManager) GetConnection(ctx context.Context) (Client, error) {
	m.mu.Lock()
	switch m.state {
	case stateReady:
		client := m.client
		m.mu.Unlock()
		return client, nil
	case stateInitializing:
		// fall through to wait below
	default:
		// Uninitialized or Failed: start a fresh attempt. Failed is
		// retryable on the next demand.
		m.attempt = &connectAttempt{done: make(chan struct{})}
		m.state = stateInitializing
		if m.cancel != nil {
			// Release the previous failed attempt's context.
			m.cancel()
		}
		attemptCtx, cancel := context.WithCancel(context.Background())
		m.cancel = cancel
		go m.runAttempt(attemptCtx, m.attempt)
	}
	attempt := m.attempt
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-attempt.done:
	}
	if attempt.err != nil {
		return nil, domainerrors.NotConnected()
	}
	return attempt.client, nil
}

// IsConnected reports whether a live connection is held.
func (m *ConnectionManager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == stateReady
}

func (m *ConnectionManager) runAttempt(ctx context.Context, attempt *connectAttempt) {
	client, err := m.initialize(ctx)
	if err == nil && ctx.Err() != nil {
		// Closed while the attempt was finishing; don't resurrect the
		// connection behind Close's back.
		_ = client.Disconnect(context.Background())
		client = nil
		err = ctx.Err()
	}

	m.mu.Lock()
	if err != nil {
		m.state = stateFailed
		m.client = nil
		logger.Error(ctx, "Backend connection failed; will retry on next demand", zap.Error(err))
	} else {
		m.state = stateReady
		m.client = client
	}
	attempt.client = client
	attempt.err = err
	close(attempt.done)
	m.mu.Unlock()
}

func (m *ConnectionManager) initialize(ctx context.Context) (Client, error) {
	workDir, err := m.resolveWorkDir()
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return nil, fmt.Errorf("create working directory: %w", err)
	}

	var client Client
	connectErr := ConnectPolicy().Do(ctx, func(attemptCtx context.Context) error {
		var err error
		client, err = m.connector(attemptCtx, m.cfg, workDir)
		return err
	})
	if connectErr != nil {
		return nil, connectErr
	}

	logger.Info(ctx, "Connected to payment backend",
		zap.String("network", m.cfg.Network), zap.String("workdir", workDir))

	if m.listener != nil {
		id, err := client.AddEventListener(m.listener)
		if err != nil {
			// Without the event stream the settlement pipeline is blind;
			// treat this as a failed connect.
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("register event listener: %w", err)
		}
		m.mu.Lock()
		m.listenerID = id
		m.mu.Unlock()
	}

	m.registerWebhook(ctx, client)
	return client, nil
}

// registerWebhook registers the configured webhook URL at most once per
// process lifetime. Failure is logged but does not fail initialization.
func (m *ConnectionManager) registerWebhook(ctx context.Context, client Client) {
	if m.cfg.WebhookURL == "" {
		return
	}

	m.mu.Lock()
	already := m.webhookRegistered
	m.mu.Unlock()
	if already {
		return
	}

	if err := validateWebhookURL(m.cfg.WebhookURL); err != nil {
		logger.Error(ctx, "Invalid webhook URL, skipping registration",
			zap.String("url", m.cfg.WebhookURL), zap.Error(err))
		return
	}

	err := WebhookPolicy().Do(ctx, func(attemptCtx context.Context) error {
		return client.RegisterWebhook(attemptCtx, m.cfg.WebhookURL)
	})
	if err != nil {
		logger.Error(ctx, "Webhook registration failed", zap.Error(err))
		return
	}

	m.mu.Lock()
	m.webhookRegistered = true
	m.mu.Unlock()
	logger.Info(ctx, "Webhook registered", zap.String("url", m.cfg.WebhookURL))
}

func (m *ConnectionManager) resolveWorkDir() (string, error) {
	if m.cfg.WorkingDir != "" {
		return m.cfg.WorkingDir, nil
	}
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "lightning-paywall", m.cfg.Network), nil
}

// Close tears the connection down: cancels outstanding work, removes the
// event listener best-effort, and disconnects. Safe to call when never
// initialized.
func (m *ConnectionManager) Close() {
	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	client := m.client
	listenerID := m.listenerID
	m.client = nil
	m.listenerID = ""
	m.state = stateUninitialized
	m.mu.Unlock()

	if client == nil {
		return
	}

	if listenerID != "" {
		if err := client.RemoveEventListener(listenerID); err != nil {
			logger.Warn(context.Background(), "Could not remove event listener", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn(ctx, "Backend disconnect failed", zap.Error(err))
	}
}

func validateWebhookURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !u.IsAbs() {
		return fmt.Errorf("webhook URL must be absolute")
	}
	if u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use https, got %q", u.Scheme)
	}
	return nil
}
