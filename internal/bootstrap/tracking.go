package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/slc-run/slc-demo-backend/config"
	httpapi "github.com/slc-run/slc-demo-backend/internal/api/http"
	"github.com/slc-run/slc-demo-backend/internal/demo/repository"
	"github.com/slc-run/slc-demo-backend/internal/demo/sweeper"
	"github.com/slc-run/slc-demo-backend/internal/demo/tracking"
)

// TrackingStore is a local store that can both receive tracking rows and
// feed the sweeper.
type TrackingStore interface {
	tracking.Store
	sweeper.Store
	httpapi.Pinger
}

// Tracking is the wired tracking backend. Sink is nil when tracking is
// disabled; Store is nil unless the backend is Postgres or Redis.
type Tracking struct {
	Backend string
	Sink    tracking.Sink
	Store   TrackingStore

	closers []func() error
}

// OpenTracking connects the backend selected by cfg.Tracking.Backend.
func OpenTracking(ctx context.Context, cfg *config.Config) (*Tracking, error) {
	t := &Tracking{Backend: cfg.Tracking.Backend}

	switch cfg.Tracking.Backend {
	case config.TrackingBackendREST:
		t.Sink = tracking.NewRESTSink(cfg.Tracking.URL, cfg.Tracking.ServiceKey, cfg.Tracking.Timeout)

	case config.TrackingBackendPostgres:
		db, err := OpenDB(ctx, DBOptions{DSN: cfg.Database.DSN})
		if err != nil {
			return nil, err
		}
		store := repository.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		t.Store = store
		t.Sink = tracking.NewStoreSink(store)
		t.closers = append(t.closers, db.Close)

	case config.TrackingBackendRedis:
		client, err := OpenRedis(ctx, RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		store := repository.NewRedisStore(client)
		t.Store = store
		t.Sink = tracking.NewStoreSink(store)
		t.closers = append(t.closers, client.Close)

	case config.TrackingBackendNone:
		log.Println("Demo tracking disabled: no SUPABASE_URL, DB_DSN or REDIS_ADDR configured")

	default:
		return nil, fmt.Errorf("unknown tracking backend %q", cfg.Tracking.Backend)
	}

	return t, nil
}

func (t *Tracking) Close() error {
	var errs []error
	for _, c := range t.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
