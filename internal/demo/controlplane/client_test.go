package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/slc-run/slc-demo-backend/internal/demo/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateProject(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/_control/create-project", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "admin-token", r.Header.Get("x-slc-admin"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "demo-1-abc", body["projectId"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"apiKey":"proj-key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", Options{AdminToken: "admin-token"})
	key, err := client.CreateProject(context.Background(), "demo-1-abc")
	require.NoError(t, err)
	assert.Equal(t, "proj-key", key)

	m := client.Metrics()
	assert.Equal(t, int64(1), m.Calls)
	assert.Equal(t, int64(1), m.Creates)
	assert.Equal(t, float64(0), m.ErrorRate())
}

func TestClient_CreateProject_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"project exists"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{AdminToken: "admin-token"})
	_, err := client.CreateProject(context.Background(), "demo-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProvisioning))
	assert.Equal(t, http.StatusConflict, domain.StatusCode(err))
	assert.Equal(t, "Failed to create project: project exists", domain.PublicMessage(err))
	assert.Equal(t, float64(100), client.Metrics().ErrorRate())
}

func TestClient_CreateProject_MissingCredential(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, Options{AdminToken: "t"}).CreateProject(context.Background(), "demo-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProvisioning))
	assert.True(t, errors.Is(err, domain.ErrMissingCredential))
	assert.Equal(t, http.StatusInternalServerError, domain.StatusCode(err))
}

func TestClient_CreateProject_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(url, Options{AdminToken: "t"}).CreateProject(context.Background(), "demo-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrProvisioning))
	assert.Equal(t, http.StatusBadGateway, domain.StatusCode(err))
}

func TestClient_NotConfigured(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{})
	assert.True(t, errors.Is(client.Ready(), domain.ErrConfiguration))

	_, err := client.CreateProject(context.Background(), "demo-1")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	err = client.RevokeProject(context.Background(), "demo-1")
	assert.True(t, errors.Is(err, domain.ErrConfiguration))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_DeployBundle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/_control/deploy-app", r.URL.Path)
		assert.Equal(t, "proj-key", r.Header.Get("x-slc-api-key"))
		assert.Empty(t, r.Header.Get("x-slc-admin"))

		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "demo-app", body["name"])
		assert.Equal(t, "code", body["bundle"])

		w.Write([]byte(`{"version":3}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{AdminToken: "admin"})
	d, err := client.DeployBundle(context.Background(), "proj-key", "demo-app", "code")
	require.NoError(t, err)
	assert.Equal(t, "demo-app", d.Name)
	assert.Equal(t, float64(3), d.Metadata["version"])
}

func TestClient_DeployBundle_TooLarge(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{AdminToken: "admin"})
	_, err := client.DeployBundle(context.Background(), "proj-key", "app", strings.Repeat("x", DefaultMaxBundleBytes+1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPayloadTooLarge))
	assert.Equal(t, http.StatusRequestEntityTooLarge, domain.StatusCode(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_DeployBundle_UpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, Options{AdminToken: "a"}).DeployBundle(context.Background(), "k", "app", "code")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDeployment))
	assert.Equal(t, http.StatusUnprocessableEntity, domain.StatusCode(err))
	assert.Equal(t, "Failed to deploy app: Unknown error", domain.PublicMessage(err))
}

func TestClient_RevokeProject(t *testing.T) {
	var status int32 = http.StatusOK
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/_control/revoke-project", r.URL.Path)
		assert.Equal(t, "admin", r.Header.Get("x-slc-admin"))
		w.WriteHeader(int(atomic.LoadInt32(&status)))
		w.Write([]byte(`{"error":"not found"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, Options{AdminToken: "admin"})
	require.NoError(t, client.RevokeProject(context.Background(), "demo-1"))

	atomic.StoreInt32(&status, http.StatusNotFound)
	err := client.RevokeProject(context.Background(), "demo-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCleanup))
	assert.Equal(t, http.StatusNotFound, domain.StatusCode(err))
	assert.Equal(t, int64(2), client.Metrics().Revokes)
}
