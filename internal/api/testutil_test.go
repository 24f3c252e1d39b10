package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/studiokit/render-agent/internal/db"
	"github.com/studiokit/render-agent/internal/logging"
	"github.com/studiokit/render-agent/internal/storage"
	"github.com/studiokit/render-agent/internal/studio"
)

const testToken = "test-token-0123456789"

type testEnv struct {
	cfg    ServerConfig
	router *chi.Mux
	svc    *studio.Service
	repo   studio.Repository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	database, err := db.New(filepath.Join(dir, "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := studio.NewRepository(database.Conn())
	require.NoError(t, repo.SetConfig(context.Background(), ConfigKeyAuthToken, testToken))

	logger := logging.Discard()
	exports, err := storage.NewLocalStore(filepath.Join(dir, "exports"), "http://127.0.0.1:8787", logger)
	require.NoError(t, err)

	svc := studio.NewService(repo, logger)
	cfg := ServerConfig{
		Service:          svc,
		Repository:       repo,
		Exports:          exports,
		DefaultFrameRate: 30,
		Logger:           logger,
		StartTime:        time.Now(),
		DeviceID:         "test-device",
		Version:          "test",
	}
	return &testEnv{cfg: cfg, router: NewRouter(cfg), svc: svc, repo: repo}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "decode response %q", rr.Body.String())
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rr.Code, "body = %s", rr.Body.String())
}
