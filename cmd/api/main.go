package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slc-run/slc-demo-backend/config"
	httpapi "github.com/slc-run/slc-demo-backend/internal/api/http"
	"github.com/slc-run/slc-demo-backend/internal/bootstrap"
	"github.com/slc-run/slc-demo-backend/internal/demo/boilerplate"
	"github.com/slc-run/slc-demo-backend/internal/demo/controlplane"
	"github.com/slc-run/slc-demo-backend/internal/demo/service"
	"github.com/slc-run/slc-demo-backend/internal/demo/sweeper"
	"github.com/slc-run/slc-demo-backend/internal/demo/tracking"
)

const serviceName = "slc-demo-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog := boilerplate.Default()
	if cfg.Demo.BoilerplateFile != "" {
		catalog, err = catalog.LoadFile(cfg.Demo.BoilerplateFile)
		if err != nil {
			log.Fatalf("boilerplates: %v", err)
		}
	}

	tr, err := bootstrap.OpenTracking(ctx, cfg)
	if err != nil {
		log.Fatalf("tracking: %v", err)
	}
	defer tr.Close()

	recorder := tracking.NewRecorder(tr.Sink, tracking.Options{
		QueueSize: cfg.Tracking.QueueSize,
		Workers:   cfg.Tracking.Workers,
		Timeout:   cfg.Tracking.Timeout,
	})

	cp := controlplane.NewClient(cfg.ControlPlane.BaseURL, controlplane.Options{
		AdminToken:     cfg.ControlPlane.AdminToken,
		Timeout:        cfg.ControlPlane.Timeout,
		MaxBundleBytes: cfg.Demo.MaxCodeBytes,
	})
	if err := cp.Ready(); err != nil {
		log.Printf("[warn] %v Demo endpoints will answer 500 until it is set.", err)
	}

	svc := service.NewDemoService(cp, catalog, recorder, service.Options{
		ProjectPrefix: cfg.Demo.ProjectPrefix,
		TTL:           cfg.Demo.TTL,
		WarningLead:   cfg.Demo.WarningLead,
		MaxCodeBytes:  cfg.Demo.MaxCodeBytes,
	})

	var sw *sweeper.Sweeper
	if tr.Store != nil && cfg.Sweeper.Enabled() && cp.Ready() == nil {
		sw = sweeper.New(tr.Store, cp, sweeper.Options{
			Schedule:  cfg.Sweeper.Schedule,
			BatchSize: cfg.Sweeper.BatchSize,
		})
		if err := sw.Start(); err != nil {
			log.Fatalf("sweeper: %v", err)
		}
	}

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		Health: httpapi.HealthDeps{
			ServiceName:     serviceName,
			Version:         cfg.App.Version,
			TrackingBackend: tr.Backend,
			ControlPlane:    cp,
			Recorder:        recorder,
			Store:           tr.Store,
		},
		Demo:               svc,
		MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
		CleanupAPIKey:      cfg.Server.CleanupAPIKey,
		RateLimitPerMinute: cfg.RateLimit.PerMinute,
		RateLimitBurst:     cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("%s %s listening on :%s (env=%s, tracking=%s)",
			serviceName, cfg.App.Version, cfg.Server.Port, cfg.App.Environment, tr.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[error] http shutdown: %v", err)
	}
	if sw != nil {
		sw.Stop(shutdownCtx)
	}
	if err := recorder.Close(shutdownCtx); err != nil {
		log.Printf("[warn] tracking drain: %v", err)
	}
	if stats := recorder.Stats(); stats.Dropped > 0 || stats.Failed > 0 {
		log.Printf("[warn] tracking recorded=%d failed=%d dropped=%d", stats.Recorded, stats.Failed, stats.Dropped)
	}
}
