// Package client is the REST client for the analysis service. It covers
// the read surface the pollers consume plus the single mutating
// operation, job submission. All list endpoints return the full
// collection; the upstream contract has no pagination.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/reveris/aetherwatch/pkg/domain"
)

// DefaultTimeout bounds every request. A request that exceeds it resolves
// as a failed poll cycle rather than hanging a sequence slot forever.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx response. The body is not contractually parsed;
// only the status code is carried.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

// Client talks to one analysis service instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithHTTPClient replaces the underlying HTTP client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Method: http.MethodGet, Path: path}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

// Status fetches the system status snapshot.
func (c *Client) Status(ctx context.Context) (*domain.StatusSnapshot, error) {
	var snap domain.StatusSnapshot
	if err := c.get(ctx, "/status", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListJobs fetches every job known to the service.
func (c *Client) ListJobs(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := c.get(ctx, "/jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// GetJob fetches a single job by id.
func (c *Client) GetJob(ctx context.Context, id int64) (*domain.Job, error) {
	var job domain.Job
	if err := c.get(ctx, fmt.Sprintf("/jobs/%d", id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListFindings fetches the global finding collection.
func (c *Client) ListFindings(ctx context.Context) ([]domain.Finding, error) {
	var findings []domain.Finding
	if err := c.get(ctx, "/findings", &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// JobFindings fetches the findings attached to one job.
func (c *Client) JobFindings(ctx context.Context, jobID int64) ([]domain.Finding, error) {
	var findings []domain.Finding
	if err := c.get(ctx, fmt.Sprintf("/jobs/%d/findings", jobID), &findings); err != nil {
		return nil, err
	}
	return findings, nil
}

// ListArtifacts fetches the global artifact collection.
func (c *Client) ListArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	if err := c.get(ctx, "/artifacts", &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// JobArtifacts fetches the artifacts attached to one job.
func (c *Client) JobArtifacts(ctx context.Context, jobID int64) ([]domain.Artifact, error) {
	var artifacts []domain.Artifact
	if err := c.get(ctx, fmt.Sprintf("/jobs/%d/artifacts", jobID), &artifacts); err != nil {
		return nil, err
	}
	return artifacts, nil
}

// JobEvents fetches the trace events attached to one job.
func (c *Client) JobEvents(ctx context.Context, jobID int64) ([]domain.TraceEvent, error) {
	var events []domain.TraceEvent
	if err := c.get(ctx, fmt.Sprintf("/jobs/%d/events", jobID), &events); err != nil {
		return nil, err
	}
	return events, nil
}

// JobRequest is the submission payload.
type JobRequest struct {
	Target     string   `json:"target"`
	PipelineID string   `json:"pipeline_id"`
	Tags       []string `json:"tags"`
}

// CreateJob submits a new analysis job. A non-2xx response surfaces as an
// *APIError carrying the HTTP status; there is no client-side retry — the
// caller decides whether to resubmit.
func (c *Client) CreateJob(ctx context.Context, req JobRequest) (*domain.Job, error) {
	if req.Tags == nil {
		req.Tags = []string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build job request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Method: http.MethodPost, Path: "/jobs"}
	}

	var job domain.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode created job: %w", err)
	}
	return &job, nil
}
