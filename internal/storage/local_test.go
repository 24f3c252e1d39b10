package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateKey(t *testing.T) {
	valid := []string{"p1/j1/teaser.edl", "a.fcpxml", "p/j/My Cut.edl"}
	for _, k := range valid {
		assert.NoError(t, ValidateKey(k), k)
	}

	invalid := []string{"", "/abs/key.edl", "../escape.edl", "p/../../x", "p//x", "p/./x", "p\\x", "p/x/"}
	for _, k := range invalid {
		assert.ErrorIs(t, ValidateKey(k), ErrInvalidKey, k)
	}
}

func TestLocalStore_Put(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root, "http://127.0.0.1:8787/", nil)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "p1/j1/My Cut.edl", "text/plain", []byte("TITLE: x\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8787/exports/p1/j1/My%20Cut.edl", url)

	data, err := os.ReadFile(filepath.Join(root, "p1", "j1", "My Cut.edl"))
	require.NoError(t, err)
	assert.Equal(t, "TITLE: x\n", string(data))

	_, err = os.Stat(filepath.Join(root, "p1", "j1", "My Cut.edl.tmp"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "temp file should be renamed away")
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost", nil)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../../etc/passwd", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStore_CanceledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Put(ctx, "a.edl", "text/plain", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestServeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cut.edl")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	t.Run("full", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/exports/cut.edl", nil)
		require.NoError(t, ServeFile(rec, req, path))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "0123456789", rec.Body.String())
		assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Equal(t, "bytes", rec.Header().Get("Accept-Ranges"))
	})

	t.Run("partial", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/exports/cut.edl", nil)
		req.Header.Set("Range", "bytes=2-5")
		require.NoError(t, ServeFile(rec, req, path))

		assert.Equal(t, http.StatusPartialContent, rec.Code)
		assert.Equal(t, "2345", rec.Body.String())
		assert.Equal(t, "bytes 2-5/10", rec.Header().Get("Content-Range"))
	})

	t.Run("unsatisfiable", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/exports/cut.edl", nil)
		req.Header.Set("Range", "bytes=50-")
		require.NoError(t, ServeFile(rec, req, path))

		assert.Equal(t, http.StatusRequestedRangeNotSatisfiable, rec.Code)
		assert.Equal(t, "bytes */10", rec.Header().Get("Content-Range"))
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/exports/none.edl", nil)
		require.NoError(t, ServeFile(rec, req, filepath.Join(dir, "none.edl")))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
