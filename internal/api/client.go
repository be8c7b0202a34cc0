package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"overlaystudio/internal/jobs"
)

// Client talks to a running daemon's API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient returns a client for the API served at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestError is a non-2xx API response.
type RequestError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *RequestError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// Health fetches the liveness payload.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &out)
	return out, err
}

// Status fetches daemon runtime details.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var out DaemonStatus
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// Submit creates a job from a remote source.
func (c *Client) Submit(ctx context.Context, sourceURL, brief string) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodPost, "/jobs", CreateJobRequest{SourceURL: sourceURL, Brief: brief}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload streams a local video to the daemon and creates a job.
func (c *Client) Upload(ctx context.Context, path, brief string) (*jobs.Job, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer file.Close()

	body, writer := io.Pipe()
	form := multipart.NewWriter(writer)
	go func() {
		err := writeUploadForm(form, file, filepath.Base(path), brief)
		_ = writer.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+BasePath+"/jobs/upload", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	var out jobs.Job
	if err := c.send(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func writeUploadForm(form *multipart.Writer, file io.Reader, name, brief string) error {
	if strings.TrimSpace(brief) != "" {
		if err := form.WriteField("brief", brief); err != nil {
			return err
		}
	}
	part, err := form.CreateFormFile("video", name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return form.Close()
}

// Job fetches one job.
func (c *Client) Job(ctx context.Context, id string) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List fetches every job, newest first.
func (c *Client) List(ctx context.Context) ([]JobSummary, error) {
	var out JobListResponse
	if err := c.do(ctx, http.MethodGet, "/jobs", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// Refine asks for one overlay to be rewritten.
func (c *Client) Refine(ctx context.Context, id, instruction string, targetIndex *int) (*jobs.Job, error) {
	var out jobs.Job
	req := RefineRequest{Instruction: instruction, TargetIndex: targetIndex}
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/refine", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Advance records a review decision.
func (c *Client) Advance(ctx context.Context, id, action string) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/review/advance", AdvanceRequest{Action: action}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Render queues the final render.
func (c *Client) Render(ctx context.Context, id string) (*jobs.Job, error) {
	var out jobs.Job
	if err := c.do(ctx, http.MethodPost, "/jobs/"+url.PathEscape(id)+"/render", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+BasePath+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api request: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error apiErrorBody `json:"error"`
		}
		_ = json.Unmarshal(data, &envelope)
		return &RequestError{StatusCode: resp.StatusCode, Code: envelope.Error.Code, Message: envelope.Error.Message}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
