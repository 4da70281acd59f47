package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/boilerplate"
	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	"github.com/slc-run/slc-demo-backend/internal/demo/expiry"
	"github.com/slc-run/slc-demo-backend/internal/logger"
)

const (
	DefaultProjectPrefix = "demo"
	DefaultTTL           = 30 * time.Minute
	DefaultWarningLead   = 5 * time.Minute
	DefaultMaxCodeBytes  = 64 * 1024

	BoilerplateAppName   = "demo-app"
	DefaultCustomAppName = "custom-demo-app"
)

// ControlPlane is the subset of the control plane client the service needs.
type ControlPlane interface {
	Ready() error
	CreateProject(ctx context.Context, projectID string) (string, error)
	DeployBundle(ctx context.Context, credential, appName, code string) (*domain.Deployment, error)
	RevokeProject(ctx context.Context, projectID string) error
}

// Tracker receives tracking records. Implementations must not block or fail
// the caller.
type Tracker interface {
	Record(ctx context.Context, rec domain.TrackingRecord)
}

type Options struct {
	ProjectPrefix string
	TTL           time.Duration
	WarningLead   time.Duration
	MaxCodeBytes  int
	Now           func() time.Time
	NewProjectID  func(prefix string, now time.Time) (string, error)
}

// DemoService provisions, tracks and revokes demo projects.
type DemoService struct {
	cp           ControlPlane
	catalog      *boilerplate.Catalog
	tracker      Tracker
	prefix       string
	ttl          time.Duration
	warningLead  time.Duration
	maxCodeBytes int
	now          func() time.Time
	newID        func(prefix string, now time.Time) (string, error)
}

// NewDemoService creates a new DemoService
func NewDemoService(cp ControlPlane, catalog *boilerplate.Catalog, tracker Tracker, opts Options) *DemoService {
	if opts.ProjectPrefix == "" {
		opts.ProjectPrefix = DefaultProjectPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.WarningLead <= 0 {
		opts.WarningLead = DefaultWarningLead
	}
	if opts.MaxCodeBytes <= 0 {
		opts.MaxCodeBytes = DefaultMaxCodeBytes
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewProjectID == nil {
		opts.NewProjectID = NewProjectID
	}
	if catalog == nil {
		catalog = boilerplate.Default()
	}

	return &DemoService{
		cp:           cp,
		catalog:      catalog,
		tracker:      tracker,
		prefix:       opts.ProjectPrefix,
		ttl:          opts.TTL,
		warningLead:  opts.WarningLead,
		maxCodeBytes: opts.MaxCodeBytes,
		now:          opts.Now,
		newID:        opts.NewProjectID,
	}
}

type provisionRequest struct {
	kind        domain.SourceKind
	boilerplate string
	appName     string
	code        string
}

// StartFromBoilerplate deploys the named template into a fresh project.
// Unknown ids are rejected before anything is created.
func (s *DemoService) StartFromBoilerplate(ctx context.Context, boilerplateID string) (*domain.DemoHandle, error) {
	if err := s.cp.Ready(); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(boilerplateID)
	if id == "" {
		return nil, domain.NewValidationError("Missing required field: boilerplate")
	}
	bp, ok := s.catalog.Get(id)
	if !ok {
		return nil, domain.NewValidationError("Unknown boilerplate: %s", id)
	}

	return s.provision(ctx, provisionRequest{
		kind:        domain.SourceBoilerplate,
		boilerplate: bp.ID,
		appName:     BoilerplateAppName,
		code:        bp.WorkerCode,
	})
}

// StartFromCustomCode deploys caller supplied code into a fresh project.
func (s *DemoService) StartFromCustomCode(ctx context.Context, code, appName string) (*domain.DemoHandle, error) {
	if err := s.cp.Ready(); err != nil {
		return nil, err
	}

	if code == "" {
		return nil, domain.NewValidationError("Missing required field: code")
	}
	if len(code) > s.maxCodeBytes {
		return nil, domain.NewPayloadTooLargeError(s.maxCodeBytes)
	}

	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = DefaultCustomAppName
	}

	return s.provision(ctx, provisionRequest{
		kind:        domain.SourceCustom,
		boilerplate: string(domain.SourceCustom),
		appName:     appName,
		code:        code,
	})
}

// provision runs create -> deploy -> track. Once the project exists, any
// failure revokes it before the original error is returned.
func (s *DemoService) provision(ctx context.Context, req provisionRequest) (*domain.DemoHandle, error) {
	// a started provisioning runs to completion even if the caller goes away
	ctx = context.WithoutCancel(ctx)
	log := logger.New(ctx)

	projectID, err := s.newID(s.prefix, s.now())
	if err != nil {
		return nil, fmt.Errorf("start demo: %w", err)
	}

	credential, err := s.cp.CreateProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCredential) {
			s.compensate(ctx, projectID, err)
		}
		return nil, err
	}

	deployment, err := s.cp.DeployBundle(ctx, credential, req.appName, req.code)
	if err != nil {
		s.compensate(ctx, projectID, err)
		return nil, err
	}

	handle := &domain.DemoHandle{
		ProjectID:   projectID,
		Credential:  credential,
		AppName:     req.appName,
		SourceKind:  req.kind,
		Boilerplate: req.boilerplate,
		ExpiresAt:   s.now().Add(s.ttl).UTC(),
		Deployment:  deployment,
	}

	if s.tracker != nil {
		s.tracker.Record(ctx, handle.Record())
	}

	log.LogInfof("start_demo", "project_id=%s kind=%s boilerplate=%s expires_at=%s",
		projectID, req.kind, req.boilerplate, expiry.FormatTimestamp(handle.ExpiresAt))
	return handle, nil
}

// compensate revokes a project left behind by a failed provisioning. Its own
// failure is logged and never replaces the error that triggered it.
func (s *DemoService) compensate(ctx context.Context, projectID string, cause error) {
	log := logger.New(ctx)
	if err := s.cp.RevokeProject(ctx, projectID); err != nil {
		log.LogErrorf("rollback", "project_id=%s revoke failed: %v (original error: %v)", projectID, err, cause)
		return
	}
	log.LogInfof("rollback", "project_id=%s revoked after failure: %v", projectID, cause)
}

// Cleanup revokes a demo project immediately. Upstream failures are returned
// with their status.
func (s *DemoService) Cleanup(ctx context.Context, projectID string) (*domain.CleanupResult, error) {
	if err := s.cp.Ready(); err != nil {
		return nil, err
	}

	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, domain.NewValidationError("Missing required field: projectId")
	}

	if err := s.cp.RevokeProject(ctx, projectID); err != nil {
		return nil, err
	}

	return &domain.CleanupResult{
		Success: true,
		Message: fmt.Sprintf("Project %s has been cleaned up", projectID),
	}, nil
}

// Status reports the expiry state of a demo against the service clock.
func (s *DemoService) Status(expiresAt time.Time) domain.ExpiryState {
	return expiry.Check(expiresAt, s.now())
}

// Ready reports a ConfigurationError when the control plane cannot be used.
func (s *DemoService) Ready() error {
	return s.cp.Ready()
}

// WarningLead is how long before expiry clients should warn the user.
func (s *DemoService) WarningLead() time.Duration {
	return s.warningLead
}

// TTL is the lifetime assigned to new demos.
func (s *DemoService) TTL() time.Duration {
	return s.ttl
}

// Boilerplates lists the templates available to StartFromBoilerplate.
func (s *DemoService) Boilerplates() []boilerplate.Boilerplate {
	return s.catalog.List()
}
