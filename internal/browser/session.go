// File: internal/browser/session.go
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/harvest-cli/internal/config"
	"github.com/xkilldash9x/harvest-cli/internal/workflow"
)

// Session is a live browser tab. It owns the allocator and tab contexts and
// implements the engine's driver contract.
type Session struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc

	allocCancel context.CancelFunc

	logger *zap.Logger
	cfg    *config.Config
	idle   *idleTracker

	mu       sync.Mutex
	isClosed bool
}

var _ workflow.Driver = (*Session)(nil)

// NewSession launches a browser and connects a fresh tab. The session dies
// with parent.
func NewSession(parent context.Context, cfg *config.Config, logger *zap.Logger) (*Session, error) {
	opts := buildAllocatorOptions(cfg.Browser)
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	sessionID := uuid.New().String()
	s := &Session{
		id:          sessionID,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      logger.Named("browser").With(zap.String("session_id", sessionID)),
		cfg:         cfg,
	}

	// Create the target and verify the CDP connection before anything else
	// touches the session.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to launch browser session: %w", err)
	}

	s.idle = newIdleTracker(ctx, s.logger)
	if err := s.idle.Start(); err != nil {
		s.Close(parent)
		return nil, fmt.Errorf("failed to start network tracking: %w", err)
	}

	if len(cfg.Network.Headers) > 0 {
		headers := make(network.Headers, len(cfg.Network.Headers))
		for k, v := range cfg.Network.Headers {
			headers[k] = v
		}
		if err := chromedp.Run(ctx, network.SetExtraHTTPHeaders(headers)); err != nil {
			s.logger.Warn("Failed to apply extra HTTP headers.", zap.Error(err))
		}
	}

	s.logger.Debug("Browser session ready.")
	return s, nil
}

func buildAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.DisableCache {
		opts = append(opts, chromedp.Flag("disk-cache-size", "0"))
	}
	for _, arg := range cfg.Args {
		opts = append(opts, chromedp.Flag(trimFlag(arg), true))
	}
	return opts
}

func trimFlag(arg string) string {
	for len(arg) > 0 && arg[0] == '-' {
		arg = arg[1:]
	}
	return arg
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// stabilize waits for the DOM to be ready and the network to settle.
func (s *Session) stabilize(ctx context.Context) error {
	stabCtx, cancel := context.WithTimeout(ctx, s.cfg.Network.ActionTimeout)
	defer cancel()

	if err := chromedp.Run(stabCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("WaitReady failed during stabilization.", zap.Error(err))
	}

	if err := s.idle.WaitIdle(stabCtx, s.cfg.Network.QuietPeriod); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Debug("Network idle wait failed during stabilization.", zap.Error(err))
	}
	return nil
}

// runActions executes chromedp actions honoring both the session lifetime
// and the caller's context.
func (s *Session) runActions(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// runActionsWithTimeout is runActions with an upper bound, used for
// individual element interactions.
func (s *Session) runActionsWithTimeout(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	timedCtx, timedCancel := context.WithTimeout(runCtx, timeout)
	defer timedCancel()
	return chromedp.Run(timedCtx, actions...)
}

// Close terminates the tab and the browser process. Idempotent.
func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	if s.idle != nil {
		s.idle.Stop()
	}
	s.cancel()
	s.allocCancel()
	return nil
}
