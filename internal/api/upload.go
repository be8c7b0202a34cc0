package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"overlaystudio/internal/ingest"
	"overlaystudio/internal/logging"
	"overlaystudio/internal/services"
)

// multipartMemory is how much of a multipart body is buffered in memory
// before spilling to temp files.
const multipartMemory = 32 << 20

// handleUpload accepts a multipart form with a "video" file and an optional
// "brief" field, stores the file in the uploads directory and submits it.
func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.settings.Ingest.MaxDownloadMiB) << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, newAPIError(http.StatusRequestEntityTooLarge, "too_large", "upload exceeds the size limit"))
			return
		}
		writeError(w, newAPIError(http.StatusBadRequest, "", "expected a multipart form with a video file"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, newAPIError(http.StatusBadRequest, "", "video file is required"))
		return
	}
	defer file.Close()

	input, err := ingest.SaveUpload(s.settings.Paths.UploadsDir, ingest.Upload{
		Name:     header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     file,
	}, maxBytes)
	if err != nil {
		writeError(w, handleError(err))
		return
	}

	job, err := s.submit(r.Context(), input, r.FormValue("brief"))
	if err != nil {
		if !errors.Is(err, services.ErrTransient) {
			logging.WithContext(r.Context(), s.logger).Warn("upload submission failed",
				logging.String("path", input.Path),
				logging.Error(err),
			)
		}
		writeError(w, handleError(err))
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var statusErr interface{ GetStatus() int }
	if errors.As(err, &statusErr) {
		status = statusErr.GetStatus()
	}
	if _, ok := err.(*apiError); !ok {
		err = newAPIError(status, "", strings.TrimSpace(err.Error()))
	}
	writeJSON(w, status, err)
}
