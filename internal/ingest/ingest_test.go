package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"overlaystudio/internal/config"
	"overlaystudio/internal/jobs"
	"overlaystudio/internal/services"
)

func TestClassifySource(t *testing.T) {
	policy := SourcePolicy{BlobHostSuffixes: []string{".public.blob.vercel-storage.com"}, ObjectStorage: true}
	cases := []struct {
		raw  string
		want jobs.SourceKind
	}{
		{"https://www.youtube.com/watch?v=abc", jobs.SourceYouTube},
		{"https://youtu.be/abc", jobs.SourceYouTube},
		{"http://music.youtube.com/watch?v=abc", jobs.SourceYouTube},
		{"https://m.youtube.com/watch?v=abc", jobs.SourceYouTube},
		{"https://store1.public.blob.vercel-storage.com/clip.mov", jobs.SourceRemote},
		{"s3://videos/raw/clip.mp4", jobs.SourceObject},
	}
	for _, tc := range cases {
		got, err := ClassifySource(tc.raw, policy)
		if err != nil {
			t.Fatalf("ClassifySource(%q) error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ClassifySource(%q) = %q want %q", tc.raw, got, tc.want)
		}
	}

	rejected := []string{
		"",
		"ftp://www.youtube.com/watch?v=abc",
		"https://notyoutube.com/watch",
		"https://example.com/video.mp4",
		"s3://bucket-only",
		"youtube.com/watch?v=abc",
	}
	for _, raw := range rejected {
		if _, err := ClassifySource(raw, policy); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("ClassifySource(%q) expected validation error, got %v", raw, err)
		}
	}

	if _, err := ClassifySource("s3://videos/clip.mp4", SourcePolicy{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("s3 sources require object storage, got %v", err)
	}
}

func TestYTDLPFetch(t *testing.T) {
	dir := t.TempDir()
	var gotArgs []string
	strategy := NewYTDLP("", dir).WithRunner(func(_ context.Context, name string, args ...string) error {
		if name != "yt-dlp" {
			t.Fatalf("unexpected binary %q", name)
		}
		gotArgs = args
		template := args[len(args)-2]
		target := strings.Replace(template, "%(ext)s", "mp4", 1)
		if err := os.WriteFile(target+".part", []byte("partial"), 0o644); err != nil {
			return err
		}
		return os.WriteFile(target, []byte("video-bytes"), 0o644)
	})
	strategy.now = func() time.Time { return time.UnixMilli(1700000000000) }

	media, err := strategy.Fetch(context.Background(), Request{JobID: "job1", Kind: jobs.SourceYouTube, SourceURL: "https://youtu.be/x"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if want := filepath.Join(dir, "yt-job1-1700000000000.mp4"); media.Path != want {
		t.Fatalf("path = %q want %q", media.Path, want)
	}
	if media.SizeBytes != int64(len("video-bytes")) || media.MimeType != "video/mp4" {
		t.Fatalf("unexpected media %+v", media)
	}
	if gotArgs[0] != "--no-playlist" || gotArgs[len(gotArgs)-1] != "https://youtu.be/x" {
		t.Fatalf("unexpected args %v", gotArgs)
	}
}

func TestYTDLPMissingOutput(t *testing.T) {
	strategy := NewYTDLP("yt-dlp", t.TempDir()).WithRunner(func(context.Context, string, ...string) error { return nil })
	_, err := strategy.Fetch(context.Background(), Request{JobID: "j", SourceURL: "https://youtu.be/x"})
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
}

func TestHTTPDownloaderFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mp4" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "video/webm; codecs=vp9")
		_, _ = w.Write([]byte("webm-bytes"))
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := NewHTTPDownloader(dir, config.Ingest{HTTPTimeoutSeconds: 5, MaxDownloadMiB: 1})
	media, err := downloader.Fetch(context.Background(), Request{JobID: "job2", Kind: jobs.SourceRemote, SourceURL: server.URL + "/clip.WEBM"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if filepath.Dir(media.Path) != dir || !strings.HasPrefix(filepath.Base(media.Path), "remote-job2-") || filepath.Ext(media.Path) != ".webm" {
		t.Fatalf("unexpected path %q", media.Path)
	}
	if media.MimeType != "video/webm" || media.SizeBytes != int64(len("webm-bytes")) {
		t.Fatalf("unexpected media %+v", media)
	}

	_, err = downloader.Fetch(context.Background(), Request{JobID: "job2", SourceURL: server.URL + "/missing.mp4"})
	if !errors.Is(err, services.ErrExternalTool) || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("expected HTTP 404 error, got %v", err)
	}
}

func TestHTTPDownloaderEnforcesLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, (1<<20)+10))
	}))
	defer server.Close()

	dir := t.TempDir()
	downloader := NewHTTPDownloader(dir, config.Ingest{MaxDownloadMiB: 1})
	_, err := downloader.Fetch(context.Background(), Request{JobID: "big", SourceURL: server.URL + "/big.mp4"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected size validation error, got %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("oversized download should be removed, found %d files", len(entries))
	}
}

type fakeObjects struct {
	bucket, key string
	err         error
}

func (f *fakeObjects) FGetObject(_ context.Context, bucket, key, path string, _ minio.GetObjectOptions) error {
	f.bucket, f.key = bucket, key
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(path, []byte("object"), 0o644)
}

func TestObjectFetcher(t *testing.T) {
	objects := &fakeObjects{}
	fetcher := NewObjectFetcherWithClient(objects, t.TempDir())
	media, err := fetcher.Fetch(context.Background(), Request{JobID: "job3", Kind: jobs.SourceObject, SourceURL: "s3://raw/uploads/take-1.mov"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if objects.bucket != "raw" || objects.key != "uploads/take-1.mov" {
		t.Fatalf("unexpected object %s/%s", objects.bucket, objects.key)
	}
	if media.OriginalName != "take-1.mov" || filepath.Ext(media.Path) != ".mov" || media.SizeBytes != 6 {
		t.Fatalf("unexpected media %+v", media)
	}
}

type scriptedStrategy struct {
	name  string
	kinds []jobs.SourceKind
	err   error
	calls int
}

func (s *scriptedStrategy) Name() string { return s.name }

func (s *scriptedStrategy) Supports(kind jobs.SourceKind) bool {
	for _, k := range s.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func (s *scriptedStrategy) Fetch(context.Context, Request) (Media, error) {
	s.calls++
	if s.err != nil {
		return Media{}, s.err
	}
	return Media{Path: "/uploads/" + s.name + ".mp4"}, nil
}

func TestIngesterTriesStrategiesInOrder(t *testing.T) {
	first := &scriptedStrategy{name: "http", kinds: []jobs.SourceKind{jobs.SourceRemote}, err: errors.New("http failed")}
	second := &scriptedStrategy{name: "yt-dlp", kinds: []jobs.SourceKind{jobs.SourceRemote, jobs.SourceYouTube}}
	unrelated := &scriptedStrategy{name: "objects", kinds: []jobs.SourceKind{jobs.SourceObject}}
	ingester := NewIngester(nil, unrelated, first, second)

	media, err := ingester.Fetch(context.Background(), "job", jobs.Input{Kind: jobs.SourceRemote, SourceURL: "https://x.public.blob.vercel-storage.com/a.mp4"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if media.Path != "/uploads/yt-dlp.mp4" || first.calls != 1 || unrelated.calls != 0 {
		t.Fatalf("unexpected routing: media=%+v first=%d unrelated=%d", media, first.calls, unrelated.calls)
	}
}

func TestIngesterReturnsLastError(t *testing.T) {
	lastErr := errors.New("yt-dlp: exit status 1")
	ingester := NewIngester(nil,
		&scriptedStrategy{name: "http", kinds: []jobs.SourceKind{jobs.SourceRemote}, err: errors.New("http failed")},
		&scriptedStrategy{name: "yt-dlp", kinds: []jobs.SourceKind{jobs.SourceRemote}, err: lastErr},
	)
	_, err := ingester.Fetch(context.Background(), "job", jobs.Input{Kind: jobs.SourceRemote, SourceURL: "https://example/a.mp4"})
	if err != lastErr {
		t.Fatalf("expected last strategy error verbatim, got %v", err)
	}

	_, err = ingester.Fetch(context.Background(), "job", jobs.Input{Kind: jobs.SourceObject, SourceURL: "s3://a/b"})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error without strategies, got %v", err)
	}
}

func TestIngesterUploadIsLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upload.mp4")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	ingester := NewIngester(nil)
	media, err := ingester.Fetch(context.Background(), "job", jobs.Input{Kind: jobs.SourceUpload, Path: path, OriginalName: "mine.mp4", MimeType: "video/mp4"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	if media.SizeBytes != 3 || media.OriginalName != "mine.mp4" {
		t.Fatalf("unexpected media %+v", media)
	}
	if _, err := ingester.Fetch(context.Background(), "job", jobs.Input{Kind: jobs.SourceUpload, Path: path + ".gone"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing upload, got %v", err)
	}
}
