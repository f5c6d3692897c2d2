package dataopsclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostArchivePreviewSendsPayload(t *testing.T) {
	var received ArchivePreview
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/archive", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.PostArchivePreview(t.Context(), ArchivePreview{
		FileID:         "file-1",
		ArchivePreview: map[string]any{"a": map[string]any{"is_dir": true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "file-1", received.FileID)
}

func TestPostArchivePreviewNonOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL)
	err := c.PostArchivePreview(t.Context(), ArchivePreview{FileID: "x"})
	assert.Error(t, err)
}
