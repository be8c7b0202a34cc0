package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/render"
	"overlaystudio/internal/testsupport"
	"overlaystudio/internal/workflow"
)

type stubCompositor struct{}

func (stubCompositor) Render(_ context.Context, _ render.Props, dest string, progress func(float64)) error {
	progress(1)
	return os.WriteFile(dest, []byte("rendered"), 0o644)
}

type testServer struct {
	cfg     *config.Config
	manager *workflow.Manager
	url     string
	client  *Client
}

func newTestServer(t *testing.T, start bool, opts ...func(*config.Config)) *testServer {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	cfg.Media.FFprobeBinary = "clearly-missing-ffprobe"
	for _, opt := range opts {
		opt(cfg)
	}
	svc, err := workflow.ServicesFromConfig(cfg, nil)
	if err != nil {
		t.Fatalf("services: %v", err)
	}
	svc.Compositor = stubCompositor{}
	manager := workflow.NewManager(cfg, jobs.NewMemory(), nil, svc)
	if start {
		if err := manager.Start(context.Background()); err != nil {
			t.Fatalf("start manager: %v", err)
		}
		t.Cleanup(manager.Stop)
	}

	handler, err := New(Config{Settings: cfg, Manager: manager})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{cfg: cfg, manager: manager, url: srv.URL, client: NewClient(srv.URL)}
}

func (s *testServer) waitForStatus(t *testing.T, id string, want jobs.Status) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.client.Job(context.Background(), id)
		if err != nil {
			t.Fatalf("get job: %v", err)
		}
		if job.Status == want {
			return job
		}
		if job.Status == jobs.StatusFailed {
			t.Fatalf("job failed at %s: %s", job.Stage, job.Error)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s", id, want)
	return nil
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func errorCode(t *testing.T, data []byte) string {
	t.Helper()
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode error envelope %q: %v", data, err)
	}
	return envelope.Error.Code
}

func uploadFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "review.mp4")
	testsupport.WriteFile(t, path, 4096)
	return path
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, true)
	health, err := srv.client.Health(context.Background())
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health.Status != "ok" || !health.Running {
		t.Fatalf("unexpected health %+v", health)
	}

	res, _ := doJSON(t, http.MethodGet, srv.url+"/api/health", nil)
	if res.Header.Get(RequestIDHeader) == "" {
		t.Fatal("expected a request id header")
	}
}

func TestStatusReportsWorkflow(t *testing.T) {
	srv := newTestServer(t, false)
	status, err := srv.client.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.DatabasePath != srv.cfg.DatabasePath() || status.Workflow.QueueCapacity != srv.cfg.Workflow.QueueSize {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestUploadAnalyzeReviewRenderDownload(t *testing.T) {
	srv := newTestServer(t, true)
	ctx := context.Background()

	created, err := srv.client.Upload(ctx, uploadFixture(t), "compare two cameras and ask viewers to subscribe")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if created.Input.Kind != jobs.SourceUpload || created.Input.OriginalName != "review.mp4" || created.Input.SizeBytes != 4096 {
		t.Fatalf("unexpected input %+v", created.Input)
	}
	if filepath.Dir(created.Input.Path) != srv.cfg.Paths.UploadsDir {
		t.Fatalf("upload stored outside uploads dir: %s", created.Input.Path)
	}

	analyzed := srv.waitForStatus(t, created.ID, jobs.StatusReview)
	if len(analyzed.OverlayPlan) == 0 || analyzed.ReviewState == nil {
		t.Fatalf("expected an overlay plan under review, got %+v", analyzed)
	}

	res, _ := doJSON(t, http.MethodGet, srv.url+"/media/"+filepath.Base(created.Input.Path), nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected source media to be served, got %d", res.StatusCode)
	}

	if _, err := srv.client.Advance(ctx, created.ID, "approve"); err != nil {
		t.Fatalf("advance: %v", err)
	}
	res, data := doJSON(t, http.MethodPost, srv.url+"/api/jobs/"+created.ID+"/render", nil)
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("render status %d: %s", res.StatusCode, data)
	}

	done := srv.waitForStatus(t, created.ID, jobs.StatusCompleted)
	if done.Output == nil || done.Output.Filename != render.OutputName(created.ID) {
		t.Fatalf("unexpected output %+v", done.Output)
	}
	res, data = doJSON(t, http.MethodGet, srv.url+"/renders/"+done.Output.Filename, nil)
	if res.StatusCode != http.StatusOK || string(data) != "rendered" {
		t.Fatalf("download failed: %d %q", res.StatusCode, data)
	}

	_, err = srv.client.Render(ctx, created.ID)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for completed job, got %v", err)
	}

	items, err := srv.client.List(ctx)
	if err != nil || len(items) != 1 || items[0].Source != "review.mp4" || items[0].DownloadURL == "" {
		t.Fatalf("unexpected list %+v (%v)", items, err)
	}
}

func TestCreateJobRejectsUnsupportedSource(t *testing.T) {
	srv := newTestServer(t, false)
	res, data := doJSON(t, http.MethodPost, srv.url+"/api/jobs", CreateJobRequest{SourceURL: "https://example.com/clip.mp4"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "bad_request" {
		t.Fatalf("unexpected error code %q", code)
	}
	if jobs := srv.manager.Store().List(); len(jobs) != 0 {
		t.Fatalf("rejected submissions must not create jobs, got %d", len(jobs))
	}
}

func TestCreateJobQueuesAnalysis(t *testing.T) {
	srv := newTestServer(t, false)
	job, err := srv.client.Submit(context.Background(), "https://youtu.be/abc123", "  launch recap ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Status != jobs.StatusQueued || job.Stage != jobs.StageAnalyzeQueued || job.Input.Kind != jobs.SourceYouTube {
		t.Fatalf("unexpected job %+v", job)
	}
	if job.Brief != "launch recap" {
		t.Fatalf("expected trimmed brief, got %q", job.Brief)
	}

	res, data := doJSON(t, http.MethodPost, srv.url+"/api/jobs", map[string]string{"youtubeUrl": "https://www.youtube.com/watch?v=xyz"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("expected youtubeUrl alias to be accepted, got %d: %s", res.StatusCode, data)
	}
}

func TestQueueFullReturnsUnavailable(t *testing.T) {
	srv := newTestServer(t, false, func(cfg *config.Config) { cfg.Workflow.QueueSize = 1 })
	if _, err := srv.client.Submit(context.Background(), "https://youtu.be/first", ""); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	res, data := doJSON(t, http.MethodPost, srv.url+"/api/jobs", CreateJobRequest{SourceURL: "https://youtu.be/second"})
	if res.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "queue_full" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestJobErrors(t *testing.T) {
	srv := newTestServer(t, false)
	queued, err := srv.client.Submit(context.Background(), "https://youtu.be/abc123", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"missing job", http.MethodGet, "/api/jobs/nope", nil, http.StatusNotFound},
		{"refine without instruction", http.MethodPost, "/api/jobs/" + queued.ID + "/refine", RefineRequest{}, http.StatusBadRequest},
		{"refine before analysis", http.MethodPost, "/api/jobs/" + queued.ID + "/refine", RefineRequest{Instruction: "shorter"}, http.StatusConflict},
		{"invalid review action", http.MethodPost, "/api/jobs/" + queued.ID + "/review/advance", AdvanceRequest{Action: "maybe"}, http.StatusBadRequest},
		{"empty overrides", http.MethodPost, "/api/jobs/" + queued.ID + "/visual-overrides", OverridesRequest{}, http.StatusBadRequest},
		{"render before analysis", http.MethodPost, "/api/jobs/" + queued.ID + "/render", nil, http.StatusConflict},
		{"missing download", http.MethodGet, "/renders/nope.mp4", nil, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, data := doJSON(t, tc.method, srv.url+tc.path, tc.body)
			if res.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, res.StatusCode, data)
			}
		})
	}
}

func TestUploadRequiresVideo(t *testing.T) {
	srv := newTestServer(t, false)
	res, data := doJSON(t, http.MethodPost, srv.url+"/api/jobs/upload", map[string]string{"brief": "x"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", res.StatusCode, data)
	}
	if code := errorCode(t, data); code != "bad_request" {
		t.Fatalf("unexpected error code %q", code)
	}
}
