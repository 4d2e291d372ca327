package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/attributes"
	"github.com/aieou/sceneqc/internal/database"
	"github.com/aieou/sceneqc/internal/ingest"
	"github.com/aieou/sceneqc/internal/models"
	"github.com/aieou/sceneqc/internal/processing"
	"github.com/aieou/sceneqc/internal/storage"
)

type testServer struct {
	*httptest.Server
	app *App
	db  *database.DB
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := database.OpenTestDB(t)
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	sequences := database.NewSequenceRepo(db)
	frames := database.NewFrameRepo(db)
	app := &App{
		Projects:      database.NewProjectRepo(db),
		Pipelines:     database.NewPipelineRepo(db),
		Sequences:     sequences,
		Frames:        frames,
		Storage:       store,
		Ingest:        ingest.NewService(sequences, frames, store, nil, ingest.Config{}, logger),
		Importer:      attributes.NewImporter(sequences, frames, logger),
		Analyzer:      processing.NewOrchestrator(sequences, frames, processing.NewFrameClassifier(ai.NewStubClient(), nil, store), logger),
		MaxUploadSize: 10 << 20,
		Logger:        logger,
	}
	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, app: app, db: db}
}

func (ts *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) doJSON(t *testing.T, method, path string, payload any) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return ts.do(t, method, path, body, "application/json")
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (ts *testServer) createSequence(t *testing.T) models.Sequence {
	t.Helper()
	resp := ts.doJSON(t, http.MethodPost, "/api/projects", map[string]string{"name": "Drive Set A"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	project := decode[models.Project](t, resp)

	resp = ts.doJSON(t, http.MethodPost, "/api/projects/"+project.ID+"/pipelines", map[string]string{"name": "Labelling"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	pipeline := decode[models.Pipeline](t, resp)

	resp = ts.doJSON(t, http.MethodPost, "/api/pipelines/"+pipeline.ID+"/sequences", map[string]any{"name": "Highway-01", "fps": 2})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[models.Sequence](t, resp)
}

func (ts *testServer) uploadImages(t *testing.T, sequenceID string, names ...string) []models.Frame {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, name := range names {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		_, err = part.Write([]byte("image " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp := ts.do(t, http.MethodPost, "/api/sequences/"+sequenceID+"/frames", &buf, mw.FormDataContentType())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[[]models.Frame](t, resp)
}

func TestPing(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/ping", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
}

func TestTaxonomyHandler(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/api/taxonomy", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	dims := decode[[]taxonomyDimension](t, resp)
	require.Len(t, dims, 4)
	assert.Equal(t, "weather", string(dims[0].Dimension))
	assert.Equal(t, "sunny", dims[0].Default)
	assert.Equal(t, "a photo of sunny weather", dims[0].Candidates[0].Prompt)
	assert.Equal(t, "more-than-two-lanes", dims[3].Candidates[2].Value)
}

func TestHierarchyCRUD(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.doJSON(t, http.MethodPost, "/api/projects", map[string]string{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	seq := ts.createSequence(t)
	assert.Equal(t, models.SequencePending, seq.Status)
	require.NotNil(t, seq.FPS)

	resp = ts.doJSON(t, http.MethodPatch, "/api/pipelines/"+seq.PipelineID, map[string]string{"status": "active"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, models.PipelineActive, decode[models.Pipeline](t, resp).Status)

	resp = ts.doJSON(t, http.MethodPatch, "/api/pipelines/"+seq.PipelineID, map[string]string{"status": "done"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(t, http.MethodGet, "/api/pipelines/"+seq.PipelineID+"/sequences", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Sequence](t, resp), 1)

	resp = ts.doJSON(t, http.MethodPost, "/api/projects/"+uuid.NewString()+"/pipelines", map[string]string{"name": "x"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodDelete, "/api/pipelines/"+seq.PipelineID, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/sequences/"+seq.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadListAndFilterFrames(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)

	frames := ts.uploadImages(t, seq.ID, "0002.jpg", "0001.jpg", "0003.jpg")
	require.Len(t, frames, 3)
	assert.Equal(t, int64(500), frames[1].TimestampMS)

	resp := ts.doJSON(t, http.MethodPut, "/api/frames/"+frames[1].ID+"/attributes", map[string]string{
		"weather": "rain", "time_of_day": "night", "road_type": "urban", "lanes": "two lanes",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Frame](t, resp)
	require.NotNil(t, updated.Attributes)
	assert.Equal(t, "rainfall", updated.Attributes.Weather)
	assert.Equal(t, models.ClassifierManual, updated.Attributes.Classifier)

	resp = ts.doJSON(t, http.MethodPut, "/api/frames/"+frames[0].ID+"/attributes", map[string]string{
		"weather": "hail", "time_of_day": "day", "road_type": "city", "lanes": "two-way",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	tests := []struct {
		name   string
		query  string
		status int
		want   int
	}{
		{"all", "", http.StatusOK, 3},
		{"by synonym", "?weather=rainy", http.StatusOK, 1},
		{"unclassified", "?classified=false", http.StatusOK, 2},
		{"unknown value", "?road_type=ocean", http.StatusBadRequest, 0},
		{"bad confidence", "?min_confidence=2", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/sequences/"+seq.ID+"/frames"+tt.query, nil, "")
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.Len(t, decode[[]models.Frame](t, resp), tt.want)
			}
		})
	}

	resp = ts.do(t, http.MethodDelete, "/api/frames/"+frames[1].ID+"/attributes", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, decode[models.Frame](t, resp).Attributes)

	resp = ts.doJSON(t, http.MethodPut, "/api/frames/"+frames[1].ID+"/notes", map[string]string{"notes": "wiper in view"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "wiper in view", decode[models.Frame](t, resp).Notes)

	resp = ts.do(t, http.MethodDelete, "/api/frames/"+frames[2].ID, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = ts.do(t, http.MethodGet, "/api/sequences/"+seq.ID, nil, "")
	assert.Equal(t, 2, decode[models.Sequence](t, resp).TotalFrames)
}

func TestUploadStoresEachFileContent(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)

	frames := ts.uploadImages(t, seq.ID, "b.jpg", "a.jpg", "c.jpg")
	require.Len(t, frames, 3)
	for i, name := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		resp := ts.do(t, http.MethodGet, "/api/sequences/"+seq.ID+"/frames/"+strconv.Itoa(i+1), nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		frame := decode[models.Frame](t, resp)

		resp = ts.do(t, http.MethodGet, "/images/"+frame.ImageURL, nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "image "+name, string(body))
	}
}

func TestGetFrameByNumber(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)
	frames := ts.uploadImages(t, seq.ID, "0001.jpg", "0002.jpg")

	tests := []struct {
		name   string
		path   string
		status int
		wantID string
	}{
		{"second frame", "/api/sequences/" + seq.ID + "/frames/2", http.StatusOK, frames[1].ID},
		{"past the end", "/api/sequences/" + seq.ID + "/frames/3", http.StatusNotFound, ""},
		{"zero", "/api/sequences/" + seq.ID + "/frames/0", http.StatusBadRequest, ""},
		{"not a number", "/api/sequences/" + seq.ID + "/frames/two", http.StatusBadRequest, ""},
		{"unknown sequence", "/api/sequences/" + uuid.NewString() + "/frames/1", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, tt.path, nil, "")
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, decode[models.Frame](t, resp).ID)
			}
		})
	}
}

func TestUploadRejectsNonImages(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("images", "notes.txt")
	require.NoError(t, err)
	part.Write([]byte("hello"))
	require.NoError(t, mw.Close())

	resp := ts.do(t, http.MethodPost, "/api/sequences/"+seq.ID+"/frames", &buf, mw.FormDataContentType())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestImageHandlerServesRanges(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)
	frames := ts.uploadImages(t, seq.ID, "0001.jpg")

	resp := ts.do(t, http.MethodGet, "/images/"+frames[0].ImageURL, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "image 0001.jpg", string(body))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/images/"+frames[0].ImageURL, nil)
	require.NoError(t, err)
	req.Header.Set("Range", "bytes=0-4")
	ranged, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer ranged.Body.Close()
	assert.Equal(t, http.StatusPartialContent, ranged.StatusCode)
	part, _ := io.ReadAll(ranged.Body)
	assert.Equal(t, "image", string(part))

	resp = ts.do(t, http.MethodGet, "/images/sequences/missing.jpg", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestImportAttributesCSV(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)
	ts.uploadImages(t, seq.ID, "0001.jpg", "0002.jpg")

	csvData := "frame_number,weather,time_of_day,road_type,lanes\n1,snow,night,motorway,many lanes\n2,sunny,day,city,hovercraft\n7,sunny,day,city,two-way\n"
	resp := ts.do(t, http.MethodPost, "/api/sequences/"+seq.ID+"/attributes", strings.NewReader(csvData), "text/csv")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	report := decode[attributes.Report](t, resp)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, report.Errors, 1)

	resp = ts.do(t, http.MethodPost, "/api/sequences/"+seq.ID+"/attributes", strings.NewReader("weather\nsunny\n"), "text/csv")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAnalyzeHandler(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)

	resp := ts.do(t, http.MethodPost, "/api/sequences/"+seq.ID+"/analyze", nil, "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/sequences/"+uuid.NewString()+"/analyze", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(t, http.MethodPost, "/api/sequences/not-an-id/analyze", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	ts.uploadImages(t, seq.ID, "0001.jpg", "0002.jpg")
	resp = ts.do(t, http.MethodPost, "/api/sequences/"+seq.ID+"/analyze", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	summary := decode[processing.Summary](t, resp)
	assert.True(t, summary.Success)
	assert.Equal(t, processing.StateCompleted, summary.State)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, ai.BackendStub, summary.Backend)

	frames, err := database.NewFrameRepo(ts.db).ListBySequence(context.Background(), seq.ID, models.FrameFilter{})
	require.NoError(t, err)
	for _, f := range frames {
		require.NotNil(t, f.Attributes)
		assert.Equal(t, ai.BackendStub, f.Attributes.Classifier)
	}

	resp = ts.do(t, http.MethodGet, "/api/sequences/"+seq.ID, nil, "")
	assert.Equal(t, models.SequenceProcessed, decode[models.Sequence](t, resp).Status)
}

func TestVideoUploadWithoutFFmpeg(t *testing.T) {
	ts := newTestServer(t)
	seq := ts.createSequence(t)

	resp := ts.do(t, http.MethodPost, "/api/sequences/"+seq.ID+"/video", strings.NewReader(""), "multipart/form-data")
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
