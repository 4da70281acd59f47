// Package sweeper garbage-collects demo projects whose tracking rows have
// expired. It is the out-of-band backstop for clients that never call
// cleanup.
package sweeper

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	"github.com/slc-run/slc-demo-backend/internal/logger"
)

const (
	DefaultSchedule  = "0 * * * * *" // every minute, seconds field first
	DefaultBatchSize = 100
	DefaultTimeout   = 30 * time.Second
)

// Store lists and deletes tracking rows.
type Store interface {
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.TrackingRecord, error)
	Delete(ctx context.Context, projectID string) error
}

// Revoker revokes a project on the control plane.
type Revoker interface {
	RevokeProject(ctx context.Context, projectID string) error
}

type Options struct {
	Schedule  string
	BatchSize int
	Timeout   time.Duration // bound for one sweep
	Now       func() time.Time
}

// Result summarises one sweep.
type Result struct {
	Scanned int
	Revoked int
	Failed  int
}

type Sweeper struct {
	store     Store
	revoker   Revoker
	schedule  string
	batchSize int
	timeout   time.Duration
	now       func() time.Time
	cron      *cron.Cron
}

// New creates a sweeper. Nothing runs until Start.
func New(store Store, revoker Revoker, opts Options) *Sweeper {
	if opts.Schedule == "" {
		opts.Schedule = DefaultSchedule
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	cronLogger := cron.PrintfLogger(log.Default())
	return &Sweeper{
		store:     store,
		revoker:   revoker,
		schedule:  opts.Schedule,
		batchSize: opts.BatchSize,
		timeout:   opts.Timeout,
		now:       opts.Now,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			log.Printf("[error] operation=demo_sweep error=%v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sweeper %q: %w", s.schedule, err)
	}

	log.Printf("Demo sweeper started (schedule %q)", s.schedule)
	s.cron.Start()
	return nil
}

// Stop stops scheduling and waits for a running sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce revokes one batch of expired projects. A row is deleted only when
// its project was revoked or is already gone upstream; anything else stays
// for the next sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	lg := logger.New(ctx)

	expired, err := s.store.ListExpired(ctx, s.now(), s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list expired demos: %w", err)
	}
	res.Scanned = len(expired)

	for _, rec := range expired {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.revoker.RevokeProject(ctx, rec.ProjectID); err != nil && domain.StatusCode(err) != http.StatusNotFound {
			res.Failed++
			lg.LogWarnf("demo_sweep", "project_id=%s revoke failed: %v", rec.ProjectID, err)
			continue
		}

		if err := s.store.Delete(ctx, rec.ProjectID); err != nil {
			res.Failed++
			lg.LogWarnf("demo_sweep", "project_id=%s delete tracking row failed: %v", rec.ProjectID, err)
			continue
		}
		res.Revoked++
	}

	if res.Scanned > 0 {
		lg.LogInfof("demo_sweep", "scanned=%d revoked=%d failed=%d", res.Scanned, res.Revoked, res.Failed)
	}
	return res, nil
}
