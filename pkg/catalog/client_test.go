package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSendsExpectedQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/search/", r.URL.Path)
		assert.Equal(t, "myproject", r.URL.Query().Get("container_code"))
		assert.Equal(t, "false", r.URL.Query().Get("recursive"))
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []Item{{ID: "1", Name: "a.txt"}}})
	}))
	defer srv.Close()

	client := New(srv.URL)
	items, err := client.Search(t.Context(), SearchParams{ParentPath: "/p", Name: "a.txt", ContainerCode: "myproject"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a.txt", items[0].Name)
}

func TestSearchEmptyResultMeansNoConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []Item{}})
	}))
	defer srv.Close()

	client := New(srv.URL)
	items, err := client.Search(t.Context(), SearchParams{Name: "a.txt"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestBatchCreatePostsAllItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/batch/", r.URL.Path)
		var body struct {
			Items         []Item `json:"items"`
			Zone          int    `json:"zone"`
			LinkContainer bool   `json:"link_container"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Items, 2)
		assert.Equal(t, 1, body.Zone)
		assert.False(t, body.LinkContainer)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.BatchCreate(t.Context(), []Item{{Name: "a"}, {Name: "b"}}, 1)
	assert.NoError(t, err)
}

func TestBatchCreateNonOKReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(srv.URL)
	err := client.BatchCreate(t.Context(), []Item{{Name: "a"}}, 0)
	assert.Error(t, err)
}

func TestCreateFileUnwrapsResultEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/filedata/", r.URL.Path)
		var record FileRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&record))
		assert.Equal(t, "a.txt", record.FileName)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": Item{ID: "geid-123", Name: "a.txt", ParentPath: "admin/p", Type: "file"},
		})
	}))
	defer srv.Close()

	client := New(srv.URL)
	created, err := client.CreateFile(t.Context(), FileRecord{FileName: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "geid-123", created.ID)
	assert.Equal(t, "admin/p", created.ParentPath)
}
