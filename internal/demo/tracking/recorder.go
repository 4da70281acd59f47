package tracking

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	"github.com/slc-run/slc-demo-backend/internal/logger"
)

const (
	DefaultQueueSize = 64
	DefaultWorkers   = 2
	DefaultTimeout   = 10 * time.Second
)

type Options struct {
	QueueSize int
	Workers   int
	Timeout   time.Duration // per write attempt
}

// Stats counts what happened to enqueued records.
type Stats struct {
	Recorded int64 `json:"recorded"`
	Failed   int64 `json:"failed"`
	Dropped  int64 `json:"dropped"`
	Skipped  int64 `json:"skipped"`
}

type job struct {
	ctx context.Context
	rec domain.TrackingRecord
}

// Recorder dispatches tracking records to a Sink in the background. Record
// never blocks, never returns an error and never panics into the caller: sink
// failures, a full queue and a missing sink are only logged.
type Recorder struct {
	sink    Sink
	queue   chan job
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	recorded int64
	failed   int64
	dropped  int64
	skipped  int64
}

// NewRecorder starts the background workers. A nil sink disables tracking.
func NewRecorder(sink Sink, opts Options) *Recorder {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	r := &Recorder{
		sink:    sink,
		timeout: opts.Timeout,
	}
	if sink == nil {
		return r
	}

	r.queue = make(chan job, opts.QueueSize)
	for i := 0; i < opts.Workers; i++ {
		r.wg.Add(1)
		go r.work()
	}
	return r
}

// Record enqueues rec for persistence and returns immediately.
func (r *Recorder) Record(ctx context.Context, rec domain.TrackingRecord) {
	log := logger.New(ctx)

	if r.sink == nil {
		atomic.AddInt64(&r.skipped, 1)
		log.LogWarnf("track_demo", "tracking store not configured; skipping project_id=%s", rec.ProjectID)
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		atomic.AddInt64(&r.dropped, 1)
		log.LogWarnf("track_demo", "recorder closed; dropping project_id=%s", rec.ProjectID)
		return
	}

	select {
	case r.queue <- job{ctx: context.WithoutCancel(ctx), rec: rec}:
	default:
		atomic.AddInt64(&r.dropped, 1)
		log.LogWarnf("track_demo", "queue full; dropping project_id=%s", rec.ProjectID)
	}
}

// Close stops accepting records and waits for queued ones to be written or
// for ctx to end.
func (r *Recorder) Close(ctx context.Context) error {
	if r.sink == nil {
		return nil
	}

	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("tracking recorder drain: %w", ctx.Err())
	}
}

// Enabled reports whether a sink is configured.
func (r *Recorder) Enabled() bool {
	return r.sink != nil
}

func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: atomic.LoadInt64(&r.recorded),
		Failed:   atomic.LoadInt64(&r.failed),
		Dropped:  atomic.LoadInt64(&r.dropped),
		Skipped:  atomic.LoadInt64(&r.skipped),
	}
}

func (r *Recorder) work() {
	defer r.wg.Done()
	for j := range r.queue {
		r.write(j)
	}
}

func (r *Recorder) write(j job) {
	log := logger.New(j.ctx)

	defer func() {
		if p := recover(); p != nil {
			atomic.AddInt64(&r.failed, 1)
			log.LogErrorf("track_demo", "sink panic project_id=%s: %v", j.rec.ProjectID, p)
		}
	}()

	ctx, cancel := context.WithTimeout(j.ctx, r.timeout)
	defer cancel()

	if err := r.sink.Record(ctx, j.rec); err != nil {
		atomic.AddInt64(&r.failed, 1)
		log.LogErrorf("track_demo", "failed to track project_id=%s: %v", j.rec.ProjectID, err)
		return
	}

	atomic.AddInt64(&r.recorded, 1)
	log.LogInfof("track_demo", "tracked project_id=%s kind=%s", j.rec.ProjectID, j.rec.Kind)
}
