// Package scheduler arms local countdown timers for a demo handle: a warning
// shortly before expiry and an expiry callback that also asks the API to
// clean the project up.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/expiry"
	"github.com/slc-run/slc-demo-backend/internal/logger"
)

const (
	DefaultWarningLead    = 5 * time.Minute
	DefaultCleanupTimeout = 10 * time.Second
)

// Cleaner revokes a project once its demo has expired.
type Cleaner interface {
	Cleanup(ctx context.Context, projectID string) error
}

// Target is the part of a demo handle the scheduler needs.
type Target struct {
	ProjectID string
	ExpiresAt time.Time
}

type Callbacks struct {
	OnWarning func(remainingSeconds int)
	OnExpired func()
}

type Options struct {
	WarningLead    time.Duration
	Cleaner        Cleaner // optional
	CleanupTimeout time.Duration
	Now            func() time.Time
}

func (o Options) withDefaults() Options {
	if o.WarningLead <= 0 {
		o.WarningLead = DefaultWarningLead
	}
	if o.CleanupTimeout <= 0 {
		o.CleanupTimeout = DefaultCleanupTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Timer holds the pending timers for one handle. The zero value is not usable;
// get one from Schedule.
type Timer struct {
	target Target
	cb     Callbacks
	opts   Options

	mu      sync.Mutex
	warning *time.Timer
	expiry  *time.Timer
	stopped bool

	done     chan struct{}
	doneOnce sync.Once
}

// Schedule arms the warning and expiry timers for target. If expiresAt is not
// after now, OnExpired runs before Schedule returns and no cleanup is
// attempted. A target less than a second away is still armed.
func Schedule(target Target, cb Callbacks, opts Options) *Timer {
	opts = opts.withDefaults()
	t := &Timer{
		target: target,
		cb:     cb,
		opts:   opts,
		done:   make(chan struct{}),
	}

	now := opts.Now()
	untilExpiry := target.ExpiresAt.Sub(now)
	if untilExpiry <= 0 {
		t.stopped = true
		if cb.OnExpired != nil {
			cb.OnExpired()
		}
		t.close()
		return t
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if untilWarning := untilExpiry - opts.WarningLead; untilWarning > 0 {
		t.warning = time.AfterFunc(untilWarning, t.fireWarning)
	}
	t.expiry = time.AfterFunc(untilExpiry, t.fireExpired)
	return t
}

// Cancel clears all pending timers. Callbacks that already fired are not
// affected. Safe to call more than once.
func (t *Timer) Cancel() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.warning != nil {
		t.warning.Stop()
	}
	if t.expiry != nil {
		t.expiry.Stop()
	}
	t.mu.Unlock()
	t.close()
}

// Done is closed once the timer has expired or been cancelled.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Target returns the handle the timer was armed for.
func (t *Timer) Target() Target {
	return t.target
}

func (t *Timer) fireWarning() {
	t.mu.Lock()
	stopped := t.stopped
	t.mu.Unlock()
	if stopped || t.cb.OnWarning == nil {
		return
	}
	t.cb.OnWarning(expiry.Check(t.target.ExpiresAt, t.opts.Now()).RemainingSeconds)
}

func (t *Timer) fireExpired() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.warning != nil {
		t.warning.Stop()
	}
	t.mu.Unlock()
	defer t.close()

	if t.cb.OnExpired != nil {
		t.cb.OnExpired()
	}
	t.cleanup()
}

// cleanup is best-effort; failures are logged only.
func (t *Timer) cleanup() {
	if t.opts.Cleaner == nil || t.target.ProjectID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.opts.CleanupTimeout)
	defer cancel()

	log := logger.New(ctx)
	if err := t.opts.Cleaner.Cleanup(ctx, t.target.ProjectID); err != nil {
		log.LogWarnf("expiry_cleanup", "project_id=%s cleanup failed: %v", t.target.ProjectID, err)
		return
	}
	log.LogInfof("expiry_cleanup", "project_id=%s cleaned up", t.target.ProjectID)
}

func (t *Timer) close() {
	t.doneOnce.Do(func() { close(t.done) })
}
