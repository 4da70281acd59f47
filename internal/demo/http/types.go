package http

import (
	"context"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/boilerplate"
	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
)

// DemoService is what the handlers need from the orchestrator.
type DemoService interface {
	Ready() error
	StartFromBoilerplate(ctx context.Context, boilerplateID string) (*domain.DemoHandle, error)
	StartFromCustomCode(ctx context.Context, code, appName string) (*domain.DemoHandle, error)
	Cleanup(ctx context.Context, projectID string) (*domain.CleanupResult, error)
	Status(expiresAt time.Time) domain.ExpiryState
	TTL() time.Duration
	WarningLead() time.Duration
	Boilerplates() []boilerplate.Boilerplate
}

// StartDemoRequest accepts both the documented boilerplateId field and the
// older boilerplate field.
type StartDemoRequest struct {
	BoilerplateID string `json:"boilerplateId"`
	Boilerplate   string `json:"boilerplate"`
}

func (r StartDemoRequest) id() string {
	if r.BoilerplateID != "" {
		return r.BoilerplateID
	}
	return r.Boilerplate
}

type StartCustomDemoRequest struct {
	Code    string `json:"code"`
	AppName string `json:"appName,omitempty"`
}

type CleanupRequest struct {
	ProjectID string `json:"projectId"`
}

type StatusRequest struct {
	ExpiresAt string `json:"expiresAt"`
}

// DemoResponse is the handle as sent to callers. APIKey mirrors Credential
// for clients built against the first version of the API.
type DemoResponse struct {
	Success          bool              `json:"success"`
	ProjectID        string            `json:"projectId"`
	Credential       string            `json:"credential"`
	APIKey           string            `json:"apiKey"`
	AppName          string            `json:"appName"`
	SourceKind       domain.SourceKind `json:"sourceKind"`
	Boilerplate      string            `json:"boilerplate"`
	ExpiresAt        string            `json:"expiresAt"`
	ExpiresInSeconds int               `json:"expiresInSeconds"`
	WarningSeconds   int               `json:"warningSeconds"`
}

type StatusResponse struct {
	Valid            bool   `json:"valid"`
	ExpiresAt        string `json:"expiresAt"`
	RemainingSeconds int    `json:"remainingSeconds"`
	IsExpired        bool   `json:"isExpired"`
}

type BoilerplateSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
