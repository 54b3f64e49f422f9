// Package client submits completed test sessions to the result store
// service. It mirrors the browser submission flow: a stable per-installation
// user id, coarse device metadata, fail-fast preflight probes, then a single
// create request. The client never retries; callers decide what to do with
// the typed errors it returns.
package client

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"iatlab/internal/models"
)

// Failure categories for a submission attempt. Errors returned by Submit
// wrap one of these, so callers can branch with errors.Is.
var (
	// ErrUnreachable means no HTTP response arrived at all.
	ErrUnreachable = errors.New("service unreachable: check that the server is running and the base URL is correct")
	// ErrRejected means the service refused the payload (HTTP 400).
	ErrRejected = errors.New("submission rejected: the payload is missing required fields")
	// ErrDuplicate means the service reported an identifier conflict (HTTP 409).
	ErrDuplicate = errors.New("submission conflicts with an existing record")
	// ErrStorageDown means the service is up but its database is not (HTTP 503).
	ErrStorageDown = errors.New("storage unavailable: check the database connection and configuration, retrying will not help until it is restored")
	// ErrServer covers any other non-success response.
	ErrServer = errors.New("service error")
)

// Client talks to one result store service.
type Client struct {
	baseURL       string
	http          *http.Client
	idPath        string
	skipPreflight bool
}

type Option func(*Client)

// WithHTTPClient replaces the underlying transport, e.g. to set a timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithIDPath overrides where the persistent user id is stored.
func WithIDPath(path string) Option {
	return func(c *Client) { c.idPath = path }
}

// WithSkipPreflight disables the health and connectivity probes before a
// submit, trading two round trips for less specific failure diagnostics.
func WithSkipPreflight() Option {
	return func(c *Client) { c.skipPreflight = true }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserID returns the stable per-installation identifier, generating and
// persisting one on first use. The id combines the current time with random
// bits; it is not globally unique, but collisions are negligible at the
// intended scale.
func (c *Client) UserID() (string, error) {
	path := c.idPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "iatlab", "user_id")
	}

	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	id, err := generateUserID()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("create id directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("persist user id: %w", err)
	}
	return id, nil
}

func generateUserID() (string, error) {
	random := make([]byte, 6)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate user id: %w", err)
	}
	ts := strconv.FormatInt(time.Now().UnixMilli(), 36)
	return "user-" + ts + "-" + hex.EncodeToString(random), nil
}

// DeviceInfo collects coarse host metadata for the submission. Read-only,
// never fails; absent values are simply omitted.
func (c *Client) DeviceInfo() map[string]any {
	info := map[string]any{
		"platform": runtime.GOOS,
		"arch":     runtime.GOARCH,
		"cpus":     runtime.NumCPU(),
	}
	if host, err := os.Hostname(); err == nil {
		info["hostname"] = host
	}
	if lang := os.Getenv("LANG"); lang != "" {
		info["language"] = lang
	}
	if zone, _ := time.Now().Zone(); zone != "" {
		info["timezone"] = zone
	}
	return info
}

// HealthCheck probes service liveness with a single GET, no retries.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.probe(ctx, "/health")
}

// ConnectivityCheck asks the service to round-trip a document through its
// storage, confirming the write path end to end.
func (c *Client) ConnectivityCheck(ctx context.Context) error {
	return c.probe(ctx, "/test-atlas")
}

func (c *Client) probe(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrServer, path, resp.StatusCode)
	}
	return nil
}

// Submit assembles the payload and creates a record. The user id and device
// info are filled in automatically; surveyResponses may be nil.
func (c *Client) Submit(ctx context.Context, results models.ReactionTimes, analysis models.Analysis, surveyResponses map[string]any) (*models.CreateReceipt, error) {
	userID, err := c.UserID()
	if err != nil {
		return nil, err
	}

	if !c.skipPreflight {
		if err := c.HealthCheck(ctx); err != nil {
			return nil, fmt.Errorf("preflight health check failed: %w", err)
		}
		if err := c.ConnectivityCheck(ctx); err != nil {
			return nil, fmt.Errorf("preflight connectivity check failed: %w", err)
		}
	}

	payload := map[string]any{
		"userId":          userID,
		"results":         results,
		"analysis":        analysis,
		"deviceInfo":      c.DeviceInfo(),
		"surveyResponses": surveyResponses,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/test-results", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, responseError(resp)
	}

	var parsed struct {
		Success bool                 `json:"success"`
		Data    models.CreateReceipt `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &parsed.Data, nil
}

// responseError maps a non-success status onto the failure taxonomy,
// keeping whatever message the service included.
func responseError(resp *http.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &body)

	detail := body.Message
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w (%s): %s", ErrRejected, body.Error, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrDuplicate, detail)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrStorageDown, detail)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrServer, resp.StatusCode, detail)
	}
}
