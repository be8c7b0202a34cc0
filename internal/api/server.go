package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"overlaystudio/internal/config"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
	"overlaystudio/internal/workflow"
)

// BasePath prefixes every JSON route.
const BasePath = "/api"

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// Config for the HTTP API handler.
type Config struct {
	Settings *config.Config
	Manager  *workflow.Manager
	Logger   *slog.Logger
	// Status reports daemon runtime details for /api/status. When nil only
	// the workflow summary is returned.
	Status func(ctx context.Context) DaemonStatus
}

type apiErrorBody struct {
	Code    string `json:"code" example:"not_found"`
	Message string `json:"message" example:"job not found"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

type server struct {
	settings *config.Config
	manager  *workflow.Manager
	logger   *slog.Logger
	status   func(ctx context.Context) DaemonStatus
}

// New returns an HTTP handler exposing the job API, render downloads and
// source media.
func New(cfg Config) (http.Handler, error) {
	if cfg.Settings == nil || cfg.Manager == nil {
		return nil, errors.New("api: settings and manager are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &server{
		settings: cfg.Settings,
		manager:  cfg.Manager,
		logger:   logging.NewComponentLogger(logger, "api"),
		status:   cfg.Status,
	}

	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		if len(errs) > 0 {
			details := make([]string, 0, len(errs))
			for _, err := range errs {
				details = append(details, err.Error())
			}
			msg = msg + ": " + strings.Join(details, "; ")
		}
		return newAPIError(status, "", msg)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(s.requestContext)

	hcfg := huma.DefaultConfig("overlaystudio API", "1.0.0")
	hcfg.OpenAPIPath = BasePath + "/openapi"
	hcfg.DocsPath = ""
	hcfg.SchemasPath = BasePath + "/schemas"
	humaAPI := humachi.New(router, hcfg)
	group := huma.NewGroup(humaAPI, BasePath)

	s.registerHealth(group)
	s.registerJobs(group)
	router.Post(BasePath+"/jobs/upload", s.handleUpload)
	router.Handle("/renders/*", staticFiles("/renders/", cfg.Settings.Paths.RendersDir))
	router.Handle("/media/*", staticFiles("/media/", cfg.Settings.Paths.UploadsDir))
	return router, nil
}

// requestContext tags every request with a correlation id and logs it once
// the response is written.
func (s *server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := services.WithRequestID(r.Context(), id)

		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.WithContext(ctx, s.logger).Debug("request served",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(started)),
		)
	})
}

func staticFiles(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, prefix)
		if name == "" || strings.HasSuffix(name, "/") {
			writeError(w, newAPIError(http.StatusNotFound, "", "file not found"))
			return
		}
		files.ServeHTTP(w, r)
	})
}

func newAPIError(status int, code, message string) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body:   apiErrorBody{Code: code, Message: message},
	}
}

// handleError maps marker errors onto HTTP statuses.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var statusErr huma.StatusError
	if errors.As(err, &statusErr) {
		return statusErr
	}
	msg := err.Error()
	switch {
	case errors.Is(err, workflow.ErrQueueFull):
		return newAPIError(http.StatusServiceUnavailable, "queue_full", msg)
	case errors.Is(err, services.ErrValidation):
		return newAPIError(http.StatusBadRequest, "", msg)
	case errors.Is(err, services.ErrNotFound):
		return newAPIError(http.StatusNotFound, "", msg)
	case errors.Is(err, services.ErrConflict):
		return newAPIError(http.StatusConflict, "", msg)
	default:
		return newAPIError(http.StatusInternalServerError, "", "internal error: "+msg)
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}
