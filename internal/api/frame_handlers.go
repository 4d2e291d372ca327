package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

type attributesRequest struct {
	Weather    string   `json:"weather"`
	TimeOfDay  string   `json:"time_of_day"`
	RoadType   string   `json:"road_type"`
	Lanes      string   `json:"lanes"`
	Confidence *float64 `json:"confidence"`
}

// attributes folds free-form values onto the taxonomy. Manual edits default
// to full confidence.
func (req attributesRequest) attributes() (models.Attributes, error) {
	tax := taxonomy.Default()
	attrs := models.Attributes{Confidence: 1, Classifier: models.ClassifierManual}
	fields := []struct {
		dim taxonomy.Dimension
		raw string
		dst *string
	}{
		{taxonomy.Weather, req.Weather, &attrs.Weather},
		{taxonomy.TimeOfDay, req.TimeOfDay, &attrs.TimeOfDay},
		{taxonomy.RoadType, req.RoadType, &attrs.RoadType},
		{taxonomy.Lanes, req.Lanes, &attrs.Lanes},
	}
	for _, f := range fields {
		value, ok := tax.Canonical(f.dim, f.raw)
		if !ok {
			return attrs, badRequest("unknown %s %q", f.dim, f.raw)
		}
		*f.dst = value
	}
	attrs.LaneCount = taxonomy.LaneCount(attrs.Lanes)
	if req.Confidence != nil {
		if *req.Confidence < 0 || *req.Confidence > 1 {
			return attrs, badRequest("confidence must be between 0 and 1")
		}
		attrs.Confidence = *req.Confidence
	}
	return attrs, nil
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (app *App) GetFrameHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := app.Frames.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (app *App) DeleteFrameHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	frame, err := app.Frames.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if err := app.Frames.Delete(ctx, frame.ID); err != nil {
		app.writeError(w, r, err)
		return
	}
	if frame.ImageURL != "" && !strings.Contains(frame.ImageURL, "://") {
		if err := app.Storage.DeleteFile(frame.ImageURL); err != nil {
			app.Logger.Warn("failed to remove frame image", "frame_id", frame.ID, "key", frame.ImageURL, "error", err)
		}
	}
	if err := app.Sequences.RefreshTotalFrames(ctx, frame.SequenceID, nil); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) UpdateAttributesHandler(w http.ResponseWriter, r *http.Request) {
	var req attributesRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	attrs, err := req.attributes()
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	frame, err := app.Frames.UpdateAttributes(r.Context(), chi.URLParam(r, "id"), attrs)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (app *App) ClearAttributesHandler(w http.ResponseWriter, r *http.Request) {
	frame, err := app.Frames.ClearAttributes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}

func (app *App) UpdateNotesHandler(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		app.writeError(w, r, err)
		return
	}
	frame, err := app.Frames.UpdateNotes(r.Context(), chi.URLParam(r, "id"), req.Notes)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, frame)
}
