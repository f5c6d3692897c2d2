package finalizer

import (
	"archive/zip"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alicebob/miniredis/v2"

	"github.com/pilotfs/uploadgateway/pkg/apierrors"
	"github.com/pilotfs/uploadgateway/pkg/job"
	"github.com/pilotfs/uploadgateway/pkg/jobstore"
	"github.com/pilotfs/uploadgateway/pkg/lockclient"
)

func writeTestZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func TestWalkZipBuildsNestedStructure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")
	writeTestZip(t, path, map[string]string{
		"readme.txt":          "hello",
		"data/sample.csv":     "a,b,c",
		"data/nested/run.log": "log",
	})

	preview, err := walkZip(path)
	require.NoError(t, err)

	readme, ok := preview["readme.txt"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "readme.txt", readme["filename"])
	assert.Equal(t, false, readme["is_dir"])

	data, ok := preview["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["is_dir"])

	sample, ok := data["sample.csv"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, uint64(5), sample["size"])

	nested, ok := data["nested"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, nested["is_dir"])
	_, ok = nested["run.log"].(map[string]any)
	require.True(t, ok)
}

func TestWalkZipRejectsMissingFile(t *testing.T) {
	_, err := walkZip(filepath.Join(t.TempDir(), "missing.zip"))
	assert.Error(t, err)
}

func newTestJobStore(t *testing.T) *jobstore.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := jobstore.Open(context.Background(), mr.Addr(), "", "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestProcessReleasesLockWhenJobMissing(t *testing.T) {
	var mu sync.Mutex
	var released []string
	lockSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			var body struct {
				ResourceKey string `json:"resource_key"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			released = append(released, body.ResourceKey)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer lockSrv.Close()

	fz := New(Deps{
		Jobs:     newTestJobStore(t),
		Locks:    lockclient.New(lockSrv.URL),
		TempRoot: t.TempDir(),
	}, Config{})

	// no job record exists for this identifier; the write lock taken at
	// pre-upload time must be released anyway
	fz.process(context.Background(), Job{
		SessionID: "session-1", ProjectCode: "demo", Operator: "alice",
		ResumableIdentifier: "ghost", ResumableFilename: "a.txt",
		ResumableRelativePath: "admin", Bucket: "gr-demo",
	})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, released, 1)
	assert.Equal(t, "gr-demo/admin/a.txt", released[0])
}

func TestTerminatePrefixesFileNotFoundMessage(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	f := job.New(store, "session-1", "demo", "alice")
	f.SetJobID("job-1")
	f.SetSource("/a/b.txt")
	require.NoError(t, f.SetStatus(ctx, job.StatePreUploaded))
	require.NoError(t, f.SetStatus(ctx, job.StateChunkUploaded))

	fz := &Finalizer{}
	fz.terminate(ctx, f, apierrors.NotFound("combined object not found: %s", "/a/b.txt"))

	assert.Equal(t, job.StateTerminated, f.Status)
	msg, _ := f.Payload["error_msg"].(string)
	assert.Contains(t, msg, "[File Not Found]")
}

func TestTerminateKeepsPlainMessageForOtherErrors(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	f := job.New(store, "session-1", "demo", "alice")
	f.SetJobID("job-2")
	f.SetSource("/a/c.txt")
	require.NoError(t, f.SetStatus(ctx, job.StatePreUploaded))
	require.NoError(t, f.SetStatus(ctx, job.StateChunkUploaded))

	fz := &Finalizer{}
	fz.terminate(ctx, f, assertError{"combine parts: boom"})

	assert.Equal(t, job.StateTerminated, f.Status)
	msg, _ := f.Payload["error_msg"].(string)
	assert.Equal(t, "combine parts: boom", msg)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }

func TestSourceKeyJoinsRelativePathAndFilename(t *testing.T) {
	assert.Equal(t, "/a.txt", sourceKey("", "a.txt"))
	assert.Equal(t, "dir/sub/a.txt", sourceKey("dir/sub", "a.txt"))
}
