package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/aieou/sceneqc/internal/attributes"
	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/ingest"
	"github.com/aieou/sceneqc/internal/processing"
	"github.com/aieou/sceneqc/internal/storage"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// The status line is already sent; an encode failure means the client went away.
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps a service error onto a status code. Anything unexpected is
// logged and reported as a 500 without its details.
func (app *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, processing.ErrInvalidSequenceID),
		errors.Is(err, database.ErrInvalidAttributes),
		errors.Is(err, attributes.ErrMissingColumn),
		errors.Is(err, attributes.ErrEmptyFile),
		errors.Is(err, ingest.ErrNoImages),
		errors.Is(err, ingest.ErrUnsupportedFile):
		status = http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, processing.ErrSequenceNotFound),
		errors.Is(err, storage.ErrInvalidKey):
		status = http.StatusNotFound
	case errors.Is(err, processing.ErrRunInProgress):
		status = http.StatusConflict
	case errors.Is(err, processing.ErrEmptySequence):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ingest.ErrFFmpegUnavailable):
		status = http.StatusNotImplemented
	}

	if status == http.StatusInternalServerError {
		app.Logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, status, "internal server error")
		return
	}
	writeJSONError(w, status, err.Error())
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("invalid request body: %v", err)
	}
	return nil
}
