package domain

import "time"

// SourceKind identifies which path produced a deployment.
type SourceKind string

const (
	SourceBoilerplate SourceKind = "boilerplate"
	SourceCustom      SourceKind = "custom"
)

// DemoHandle is returned to the caller once a demo project exists and its
// bundle is deployed. ExpiresAt is fixed at issuance and never extended.
type DemoHandle struct {
	ProjectID  string     `json:"projectId"`
	Credential string     `json:"credential"`
	AppName    string     `json:"appName"`
	SourceKind SourceKind `json:"sourceKind"`
	// Boilerplate is the template id, or "custom" for user supplied code.
	Boilerplate string      `json:"boilerplate"`
	ExpiresAt   time.Time   `json:"expiresAt"`
	Deployment  *Deployment `json:"-"`
}

// TrackingRecord is the subset of a handle persisted for out-of-band cleanup.
type TrackingRecord struct {
	ProjectID string     `json:"project_id"`
	Kind      SourceKind `json:"kind"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Record returns the tracking row for the handle.
func (h *DemoHandle) Record() TrackingRecord {
	return TrackingRecord{
		ProjectID: h.ProjectID,
		Kind:      h.SourceKind,
		ExpiresAt: h.ExpiresAt,
	}
}

// ExpiryState is derived from an expiry timestamp and the current time.
type ExpiryState struct {
	IsExpired        bool `json:"isExpired"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

// Deployment is the metadata the control plane returns for a deployed app.
type Deployment struct {
	Name     string                 `json:"name,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CleanupResult is the outcome of an explicit project revocation.
type CleanupResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
