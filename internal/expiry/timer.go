package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"transport-dispatch/internal/logx"
)

// TimerScheduler keeps one time.AfterFunc per active offer.
// Timers are lost on restart; the Sweeper picks those offers up.
type TimerScheduler struct {
	timers  *xsync.MapOf[string, *time.Timer]
	logger  logx.Logger
	timeout time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	handler Handler
	base    context.Context
}

// NewTimerScheduler creates a TimerScheduler. timeout bounds every handler call.
func NewTimerScheduler(logger logx.Logger, timeout time.Duration) *TimerScheduler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TimerScheduler{
		timers:  xsync.NewMapOf[string, *time.Timer](),
		logger:  logger,
		timeout: timeout,
		now:     time.Now,
		base:    context.Background(),
	}
}

// Bind sets the handler fired on timeout and the context it runs under.
func (s *TimerScheduler) Bind(ctx context.Context, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = h
	if ctx != nil {
		s.base = ctx
	}
}

// Schedule arms a timer for offerID, replacing any earlier one.
func (s *TimerScheduler) Schedule(_ context.Context, offerID string, at time.Time) error {
	delay := at.Sub(s.now())
	if delay < 0 {
		delay = 0
	}
	t := time.AfterFunc(delay, func() { s.fire(offerID) })
	if prev, loaded := s.timers.LoadAndStore(offerID, t); loaded {
		prev.Stop()
	}
	return nil
}

// Cancel stops the timer of offerID if it has not fired yet.
func (s *TimerScheduler) Cancel(offerID string) {
	if t, ok := s.timers.LoadAndDelete(offerID); ok {
		t.Stop()
	}
}

// Pending returns the number of armed timers.
func (s *TimerScheduler) Pending() int {
	return s.timers.Size()
}

// Stop disarms every timer.
func (s *TimerScheduler) Stop() {
	s.timers.Range(func(id string, t *time.Timer) bool {
		t.Stop()
		s.timers.Delete(id)
		return true
	})
}

func (s *TimerScheduler) fire(offerID string) {
	s.timers.Delete(offerID)

	s.mu.RLock()
	h, base := s.handler, s.base
	s.mu.RUnlock()
	if h == nil || base.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(base, s.timeout)
	defer cancel()
	if err := h(ctx, offerID); err != nil {
		s.logger.Error("offer expiry failed",
			logx.String("offer_id", offerID),
			logx.Err(err),
		)
	}
}

var _ Scheduler = (*TimerScheduler)(nil)
