package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aieou/sceneqc/internal/ingest"
	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

const multipartMemory = 32 << 20

type createSequenceRequest struct {
	Name  string   `json:"name"`
	FPS   *float64 `json:"fps"`
	Notes string   `json:"notes"`
}

func (app *App) ListSequencesHandler(w http.ResponseWriter, r *http.Request) {
	pipeline, err := app.Pipelines.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	sequences, err := app.Sequences.ListByPipeline(r.Context(), pipeline.ID)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sequences)
}

func (app *App) CreateSequenceHandler(w http.ResponseWriter, r *http.Request) {
	var req createSequenceRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		app.writeError(w, r, badRequest("name is required"))
		return
	}
	if req.FPS != nil && *req.FPS <= 0 {
		app.writeError(w, r, badRequest("fps must be positive"))
		return
	}

	pipeline, err := app.Pipelines.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	seq := models.NewSequence(pipeline.ID, req.Name, req.FPS)
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		seq.Notes = &notes
	}
	if err := app.Sequences.Create(r.Context(), seq); err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, seq)
}

func (app *App) GetSequenceHandler(w http.ResponseWriter, r *http.Request) {
	seq, err := app.Sequences.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, seq)
}

func (app *App) DeleteSequenceHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := app.Sequences.Delete(r.Context(), id); err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := app.Storage.DeleteDir("sequences/" + id); err != nil {
		app.Logger.Warn("failed to remove sequence images", "sequence_id", id, "error", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) ListFramesHandler(w http.ResponseWriter, r *http.Request) {
	seq, err := app.Sequences.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	filter, err := parseFrameFilter(r)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	frames, err := app.Frames.ListBySequence(r.Context(), seq.ID, filter)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frames)
}

func (app *App) GetFrameByNumberHandler(w http.ResponseWriter, r *http.Request) {
	seq, err := app.Sequences.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number < 1 {
		app.writeError(w, r, badRequest("frame number must be a positive integer"))
		return
	}
	frame, err := app.Frames.GetByNumber(r.Context(), seq.ID, number)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func parseFrameFilter(r *http.Request) (models.FrameFilter, error) {
	q := r.URL.Query()
	tax := taxonomy.Default()
	var filter models.FrameFilter

	fields := []struct {
		dim taxonomy.Dimension
		dst *string
	}{
		{taxonomy.Weather, &filter.Weather},
		{taxonomy.TimeOfDay, &filter.TimeOfDay},
		{taxonomy.RoadType, &filter.RoadType},
		{taxonomy.Lanes, &filter.Lanes},
	}
	for _, f := range fields {
		raw := q.Get(string(f.dim))
		if raw == "" {
			continue
		}
		value, ok := tax.Canonical(f.dim, raw)
		if !ok {
			return filter, badRequest("unknown %s %q", f.dim, raw)
		}
		*f.dst = value
	}

	if raw := q.Get("classified"); raw != "" {
		classified, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, badRequest("classified must be true or false")
		}
		filter.Classified = &classified
	}
	if raw := q.Get("min_confidence"); raw != "" {
		minConf, err := strconv.ParseFloat(raw, 64)
		if err != nil || minConf < 0 || minConf > 1 {
			return filter, badRequest("min_confidence must be between 0 and 1")
		}
		filter.MinConfidence = &minConf
	}
	return filter, nil
}

func (app *App) UploadFramesHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		app.writeUploadError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	uploads := make([]ingest.Upload, 0, len(files))
	for _, fh := range files {
		fh := fh
		uploads = append(uploads, ingest.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	frames, err := app.Ingest.ImportImages(r.Context(), chi.URLParam(r, "id"), uploads)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, frames)
}

func (app *App) UploadVideoHandler(w http.ResponseWriter, r *http.Request) {
	if !app.Ingest.VideoEnabled() {
		app.writeError(w, r, ingest.ErrFFmpegUnavailable)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		app.writeUploadError(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["video"]
	if len(files) == 0 {
		app.writeError(w, r, badRequest("video file is required"))
		return
	}
	fh := files[0]
	frames, err := app.Ingest.ImportVideo(r.Context(), chi.URLParam(r, "id"), ingest.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Open:        func() (io.ReadCloser, error) { return fh.Open() },
	})
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, frames)
}

func (app *App) writeUploadError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "file too large")
		return
	}
	app.writeError(w, r, badRequest("invalid multipart form: %v", err))
}

// ImportAttributesHandler accepts the CSV either as the "file" field of a
// multipart form or as the raw request body.
func (app *App) ImportAttributesHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)
	body := r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, err := r.FormFile("file")
		if err != nil {
			app.writeUploadError(w, r, err)
			return
		}
		defer file.Close()
		body = file
	}

	report, err := app.Importer.Import(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// AnalyzeHandler runs classification synchronously. Every terminal state,
// including partial failure, is a 200 carrying the summary.
func (app *App) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := app.Analyzer.Analyze(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
