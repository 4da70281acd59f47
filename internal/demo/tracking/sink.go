package tracking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
)

// Sink persists tracking records. Implementations return errors; the Recorder
// is what shields callers from them.
type Sink interface {
	Record(ctx context.Context, rec domain.TrackingRecord) error
}

// RESTSink inserts rows through a PostgREST endpoint (Supabase) using the
// service role key.
type RESTSink struct {
	endpoint   string
	serviceKey string
	httpClient *http.Client
}

// NewRESTSink creates a sink posting to {baseURL}/rest/v1/demo_projects.
func NewRESTSink(baseURL, serviceKey string, timeout time.Duration) *RESTSink {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTSink{
		endpoint:   strings.TrimRight(baseURL, "/") + "/rest/v1/demo_projects",
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type restRow struct {
	ProjectID string `json:"project_id"`
	Kind      string `json:"kind"`
	ExpiresAt string `json:"expires_at"`
}

func (s *RESTSink) Record(ctx context.Context, rec domain.TrackingRecord) error {
	jsonData, err := json.Marshal(restRow{
		ProjectID: rec.ProjectID,
		Kind:      string(rec.Kind),
		ExpiresAt: rec.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal tracking row: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call tracking store: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("tracking store returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Store is the write side of a tracking repository.
type Store interface {
	Insert(ctx context.Context, rec domain.TrackingRecord) error
}

// StoreSink adapts a repository (Postgres or Redis) into a Sink.
type StoreSink struct {
	store Store
}

func NewStoreSink(store Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Record(ctx context.Context, rec domain.TrackingRecord) error {
	return s.store.Insert(ctx, rec)
}
