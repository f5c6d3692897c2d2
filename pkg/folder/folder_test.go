package folder

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilotfs/uploadgateway/pkg/catalog"
	"github.com/pilotfs/uploadgateway/pkg/foldercache"
	"github.com/pilotfs/uploadgateway/pkg/lockclient"
)

func jsonDecode(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func newLockServer(t *testing.T) *lockclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return lockclient.New(srv.URL)
}

func TestMaterializeCreatesMissingLevelsUnderExistingRoot(t *testing.T) {
	var batched []catalog.Item
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/items/batch/" {
			var body struct {
				Items []catalog.Item `json:"items"`
			}
			_ = jsonDecode(r, &body)
			batched = body.Items
			w.WriteHeader(http.StatusOK)
			return
		}
		// only the root-level folder "a" pre-exists in the catalog
		if r.URL.Query().Get("name") == "a" {
			_, _ = w.Write([]byte(`{"result":[{"id":"root-geid","name":"a"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	m := New(catalog.New(srv.URL), newLockServer(t), foldercache.New(), 1)
	leaf, err := m.Materialize(t.Context(), "core-demo", "demo", "a/b/c", "alice", nil)
	require.NoError(t, err)
	require.NotNil(t, leaf)

	assert.Equal(t, "c", leaf.Name)
	require.Len(t, batched, 2)
	assert.Equal(t, "b", batched[0].Name)
	assert.Equal(t, "root-geid", batched[0].Parent)
	assert.Equal(t, batched[0].ID, batched[1].Parent)
}

func TestMaterializeRejectsNewRootLevelFolder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[]}`))
	}))
	defer srv.Close()

	m := New(catalog.New(srv.URL), newLockServer(t), foldercache.New(), 1)
	_, err := m.Materialize(t.Context(), "core-demo", "demo", "a/b", "alice", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directly under project node")
}

func TestMaterializeReusesExistingNode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[{"id":"existing-geid","name":"a"}]}`))
	}))
	defer srv.Close()

	m := New(catalog.New(srv.URL), newLockServer(t), foldercache.New(), 1)
	leaf, err := m.Materialize(t.Context(), "core-demo", "demo", "a", "alice", nil)
	require.NoError(t, err)
	require.NotNil(t, leaf)
	assert.Equal(t, "existing-geid", leaf.GEID)
	assert.False(t, leaf.IsNew)
}

func TestMaterializeUsesCacheOnSecondCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/items/search/" {
			calls++
		}
		_, _ = w.Write([]byte(`{"result":[{"id":"a-geid","name":"a"}]}`))
	}))
	defer srv.Close()

	cache := foldercache.New()
	m := New(catalog.New(srv.URL), newLockServer(t), cache, 1)

	_, err := m.Materialize(t.Context(), "core-demo", "demo", "a", "alice", nil)
	require.NoError(t, err)
	firstCalls := calls

	_, err = m.Materialize(t.Context(), "core-demo", "demo", "a", "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, firstCalls, calls, "second materialize should hit the cache, not the catalog")
}

func TestNewItemPayloadMatchesFolderShape(t *testing.T) {
	node := Node{GEID: "g1", Name: "a", ParentGEID: "parent", RelativePath: "x/y"}
	item := NewItemPayload(node, "demo", "alice", 1)

	assert.Equal(t, "folder", item.Type)
	assert.Equal(t, "project", item.ContainerType)
	assert.Equal(t, int64(0), item.Size)
	assert.Equal(t, []string{}, item.Tags)
}
