package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iatlab/internal/config"
	"iatlab/internal/models"
	"iatlab/internal/router"
	"iatlab/internal/store"
)

func testResults() models.ReactionTimes {
	return models.ReactionTimes{
		MaleComputer:   []float64{500, 620},
		FemaleSkincare: []float64{480},
		FemaleComputer: []float64{},
		MaleSkincare:   []float64{},
	}
}

func testAnalysis() models.Analysis {
	return models.Analysis{DScore: 0.35, BiasType: "male-tech", BiasLevel: "weak"}
}

// newServiceServer runs the real router over the in-memory store so client
// tests cover the whole request path.
func newServiceServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Server: config.ServerConfig{
			Mode:         "release",
			CORSOrigins:  []string{"*"},
			MaxPageLimit: 50,
		},
	}
	srv := httptest.NewServer(router.Setup(zap.NewNop(), cfg, store.NewMemory()))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithIDPath(filepath.Join(t.TempDir(), "user_id"))}, opts...)
	return New(baseURL, opts...)
}

func TestUserIDStableAcrossCallsAndInstances(t *testing.T) {
	idPath := filepath.Join(t.TempDir(), "user_id")

	c1 := New("http://localhost:0", WithIDPath(idPath))
	first, err := c1.UserID()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	again, err := c1.UserID()
	require.NoError(t, err)
	assert.Equal(t, first, again)

	c2 := New("http://localhost:0", WithIDPath(idPath))
	other, err := c2.UserID()
	require.NoError(t, err)
	assert.Equal(t, first, other, "id must survive across client instances sharing the id file")
}

func TestDeviceInfo(t *testing.T) {
	info := New("http://localhost:0").DeviceInfo()
	assert.NotEmpty(t, info["platform"])
	assert.NotEmpty(t, info["arch"])
	assert.NotZero(t, info["cpus"])
}

func TestSubmitEndToEnd(t *testing.T) {
	srv := newServiceServer(t)
	c := newTestClient(t, srv.URL)

	receipt, err := c.Submit(context.Background(), testResults(), testAnalysis(), map[string]any{"age": "25-34"})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.False(t, receipt.CreatedAt.IsZero())

	userID, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, receipt.UserID, "service echoes the submitted userId unchanged")
}

func TestSubmitSkipPreflight(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"data":{"id":"abc","userId":"u1"}}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, WithSkipPreflight())
	_, err := c.Submit(context.Background(), testResults(), testAnalysis(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/api/test-results"}, paths, "no probe requests when preflight is skipped")
}

func TestSubmitPreflightOrder(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"success":true,"data":{"id":"abc","userId":"u1"}}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Submit(context.Background(), testResults(), testAnalysis(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"/health", "/test-atlas", "/api/test-results"}, paths)
}

func TestSubmitErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusBadRequest, ErrRejected},
		{http.StatusConflict, ErrDuplicate},
		{http.StatusServiceUnavailable, ErrStorageDown},
		{http.StatusTeapot, ErrServer},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost {
				w.WriteHeader(tc.status)
				w.Write([]byte(`{"success":false,"error":"SOME_CODE","message":"nope"}`))
				return
			}
			w.WriteHeader(http.StatusOK)
		}))

		c := newTestClient(t, srv.URL)
		_, err := c.Submit(context.Background(), testResults(), testAnalysis(), nil)
		assert.ErrorIs(t, err, tc.want, "status %d", tc.status)
		srv.Close()
	}
}

func TestSubmitUnreachable(t *testing.T) {
	// A closed server distinguishes transport failure from an
	// application-level error response.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url)
	_, err := c.Submit(context.Background(), testResults(), testAnalysis(), nil)
	assert.ErrorIs(t, err, ErrUnreachable)
}

func TestProbesFailFastWithoutRetry(t *testing.T) {
	var healthCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			healthCalls++
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Submit(context.Background(), testResults(), testAnalysis(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrServer)
	assert.Equal(t, 1, healthCalls, "probes are single-attempt")
}
