// File: internal/browser/idle.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// idleTracker listens to CDP network events and keeps a live count of
// in-flight requests so navigation can wait for the page to actually settle
// instead of trusting the load event.
type idleTracker struct {
	logger *zap.Logger

	// The context of the tab this tracker is attached to.
	sessionCtx context.Context
	// A separate context for the listener so it can be stopped cleanly.
	listenerCtx    context.Context
	cancelListener context.CancelFunc

	lock     sync.RWMutex
	inflight map[network.RequestID]bool

	isStarted bool
}

func newIdleTracker(sessionCtx context.Context, logger *zap.Logger) *idleTracker {
	return &idleTracker{
		sessionCtx: sessionCtx,
		logger:     logger.Named("idle"),
		inflight:   make(map[network.RequestID]bool),
	}
}

// Start enables network events and begins tracking.
func (t *idleTracker) Start() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.isStarted {
		return nil
	}
	t.listenerCtx, t.cancelListener = context.WithCancel(t.sessionCtx)

	chromedp.ListenTarget(t.listenerCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.lock.Lock()
			t.inflight[e.RequestID] = true
			t.lock.Unlock()
		case *network.EventLoadingFinished:
			t.lock.Lock()
			delete(t.inflight, e.RequestID)
			t.lock.Unlock()
		case *network.EventLoadingFailed:
			t.lock.Lock()
			delete(t.inflight, e.RequestID)
			t.lock.Unlock()
		}
	})

	if err := chromedp.Run(t.sessionCtx, network.Enable()); err != nil {
		t.cancelListener()
		return err
	}

	t.isStarted = true
	t.logger.Debug("Network idle tracking started.")
	return nil
}

// Stop halts event tracking. Idempotent.
func (t *idleTracker) Stop() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if t.cancelListener != nil {
		t.cancelListener()
		t.cancelListener = nil
	}
	t.isStarted = false
}

// WaitIdle polls until no request has been in flight for the whole quiet
// period.
func (t *idleTracker) WaitIdle(ctx context.Context, quietPeriod time.Duration) error {
	if quietPeriod <= 0 {
		quietPeriod = 500 * time.Millisecond
	}
	// Check more frequently than the quiet period itself.
	ticker := time.NewTicker(quietPeriod / 2)
	defer ticker.Stop()

	lastActivity := time.Now()
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("WaitIdle aborted due to context cancellation.", zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			t.lock.RLock()
			inflightCount := len(t.inflight)
			t.lock.RUnlock()

			if inflightCount > 0 {
				lastActivity = time.Now()
				t.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", inflightCount))
			} else if time.Since(lastActivity) >= quietPeriod {
				return nil
			}
		}
	}
}
