package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(app.Logger.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/ping", PingHandler)
	r.Get("/images/*", app.ImageHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/taxonomy", TaxonomyHandler)

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", app.ListProjectsHandler)
			r.Post("/", app.CreateProjectHandler)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", app.GetProjectHandler)
				r.Patch("/", app.UpdateProjectHandler)
				r.Delete("/", app.DeleteProjectHandler)
				r.Get("/pipelines", app.ListPipelinesHandler)
				r.Post("/pipelines", app.CreatePipelineHandler)
			})
		})

		r.Route("/pipelines/{id}", func(r chi.Router) {
			r.Get("/", app.GetPipelineHandler)
			r.Patch("/", app.UpdatePipelineHandler)
			r.Delete("/", app.DeletePipelineHandler)
			r.Get("/sequences", app.ListSequencesHandler)
			r.Post("/sequences", app.CreateSequenceHandler)
		})

		r.Route("/sequences/{id}", func(r chi.Router) {
			r.Get("/", app.GetSequenceHandler)
			r.Delete("/", app.DeleteSequenceHandler)
			r.Get("/frames", app.ListFramesHandler)
			r.Post("/frames", app.UploadFramesHandler)
			r.Get("/frames/{number}", app.GetFrameByNumberHandler)
			r.Post("/video", app.UploadVideoHandler)
			r.Post("/attributes", app.ImportAttributesHandler)
			r.Post("/analyze", app.AnalyzeHandler)
		})

		r.Route("/frames/{id}", func(r chi.Router) {
			r.Get("/", app.GetFrameHandler)
			r.Delete("/", app.DeleteFrameHandler)
			r.Put("/attributes", app.UpdateAttributesHandler)
			r.Delete("/attributes", app.ClearAttributesHandler)
			r.Put("/notes", app.UpdateNotesHandler)
		})
	})

	return r
}
