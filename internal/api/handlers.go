package api

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/aieou/sceneqc/internal/attributes"
	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/ingest"
	"github.com/aieou/sceneqc/internal/processing"
	"github.com/aieou/sceneqc/internal/storage"
	"github.com/aieou/sceneqc/internal/taxonomy"
)

// Analyzer runs scene classification over a sequence.
type Analyzer interface {
	Analyze(ctx context.Context, sequenceID string) (*processing.Summary, error)
}

type App struct {
	Projects      *database.ProjectRepo
	Pipelines     *database.PipelineRepo
	Sequences     *database.SequenceRepo
	Frames        *database.FrameRepo
	Storage       storage.Storage
	Ingest        *ingest.Service
	Importer      *attributes.Importer
	Analyzer      Analyzer
	MaxUploadSize int64
	Logger        *slog.Logger
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

type taxonomyCandidate struct {
	Value    string   `json:"value"`
	Label    string   `json:"label"`
	Prompt   string   `json:"prompt"`
	Synonyms []string `json:"synonyms"`
}

type taxonomyDimension struct {
	Dimension  taxonomy.Dimension  `json:"dimension"`
	Default    string              `json:"default"`
	Candidates []taxonomyCandidate `json:"candidates"`
}

func TaxonomyHandler(w http.ResponseWriter, r *http.Request) {
	sets := taxonomy.Default().Sets()
	out := make([]taxonomyDimension, 0, len(sets))
	for _, set := range sets {
		prompts := set.Prompts()
		dim := taxonomyDimension{Dimension: set.Dimension, Default: set.Default}
		for i, c := range set.Candidates {
			synonyms := c.Synonyms
			if synonyms == nil {
				synonyms = []string{}
			}
			dim.Candidates = append(dim.Candidates, taxonomyCandidate{
				Value:    c.Value,
				Label:    taxonomy.DisplayName(c.Phrase),
				Prompt:   prompts[i],
				Synonyms: synonyms,
			})
		}
		out = append(out, dim)
	}
	writeJSON(w, http.StatusOK, out)
}

// ImageHandler serves stored frame images. ServeContent handles Range
// requests and conditional headers.
func (app *App) ImageHandler(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	if !storage.IsImage(key) {
		writeJSONError(w, http.StatusNotFound, "image not found")
		return
	}
	file, err := app.Storage.OpenFile(key)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, "image not found")
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, path.Base(key), stat.ModTime(), file)
}
