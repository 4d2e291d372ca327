package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aieou/sceneqc/internal/ai"
	"github.com/aieou/sceneqc/internal/config"
)

func TestNew_WiresStubStack(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.UploadDir = filepath.Join(dir, "uploads")
	cfg.Database.Path = filepath.Join(dir, "sceneqc.db")
	cfg.Processing.LockDir = filepath.Join(dir, "locks")
	cfg.Classifier.Backend = ai.BackendStub

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := New(&cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.Equal(t, ai.BackendStub, a.Classifier.Backend())
	version, dirty, err := a.DB.MigrateVersion()
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.NotZero(t, version)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_RejectsInferenceWithoutToken(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Server.UploadDir = filepath.Join(dir, "uploads")
	cfg.Database.Path = filepath.Join(dir, "sceneqc.db")
	cfg.Classifier.Backend = ai.BackendInference
	cfg.Classifier.APIToken = ""

	_, err := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, err, ai.ErrInvalidCredentials)
}
