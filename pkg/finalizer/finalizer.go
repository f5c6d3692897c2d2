package finalizer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pilotfs/uploadgateway/internal/logger"
	"github.com/pilotfs/uploadgateway/internal/telemetry"
	"github.com/pilotfs/uploadgateway/pkg/activity"
	"github.com/pilotfs/uploadgateway/pkg/apierrors"
	"github.com/pilotfs/uploadgateway/pkg/catalog"
	"github.com/pilotfs/uploadgateway/pkg/dataopsclient"
	"github.com/pilotfs/uploadgateway/pkg/folder"
	"github.com/pilotfs/uploadgateway/pkg/job"
	"github.com/pilotfs/uploadgateway/pkg/jobstore"
	"github.com/pilotfs/uploadgateway/pkg/lockclient"
	"github.com/pilotfs/uploadgateway/pkg/metrics"
	"github.com/pilotfs/uploadgateway/pkg/objectstore"
	"github.com/pilotfs/uploadgateway/pkg/partledger"
)

// Deps are every collaborator a single finalize run touches.
type Deps struct {
	Jobs      *jobstore.Store
	Parts     *partledger.Ledger
	Locks     *lockclient.Client
	Objects   *objectstore.Store
	Catalog   *catalog.Client
	Folders   *folder.Materializer
	DataOps   *dataopsclient.Client
	Activity  *activity.Publisher
	Metrics   *metrics.Metrics
	TempRoot  string
	Namespace string
}

// Finalizer runs the combine/register/publish pipeline for one job and
// owns the worker pool dispatching it.
type Finalizer struct {
	deps Deps
	pool *Pool
}

// New builds a Finalizer and its backing Pool, ready for Run.
func New(deps Deps, cfg Config) *Finalizer {
	fz := &Finalizer{deps: deps}
	fz.pool = NewPool(cfg, fz.process)
	return fz
}

// Run starts the worker pool.
func (fz *Finalizer) Run(ctx context.Context) { fz.pool.Run(ctx) }

// Stop drains the worker pool.
func (fz *Finalizer) Stop(timeout time.Duration) { fz.pool.Stop(timeout) }

// Pending reports the number of jobs queued but not yet started, bound to
// the finalizer_pending gauge at service start.
func (fz *Finalizer) Pending() int { return fz.pool.Pending() }

// Submit enqueues a job for background finalization, matching Coordinator's
// expectation that Combine never blocks on it.
func (fz *Finalizer) Submit(j Job) bool { return fz.pool.Submit(j) }

// process runs the full pipeline for one job: materialize folders, combine
// parts, register the file, optionally preview a zip's contents, publish
// the activity log, and carry the job to its terminal state, always
// releasing the write lock and temp directory it used.
func (fz *Finalizer) process(ctx context.Context, j Job) {
	ctx, span := telemetry.StartSpan(ctx, "finalizer.Run")
	defer span.End()
	start := time.Now()
	source := sourceKey(j.ResumableRelativePath, j.ResumableFilename)
	lockKey := fmt.Sprintf("%s/%s", j.Bucket, source)
	tempDir := filepath.Join(fz.deps.TempRoot, "upload", j.ResumableIdentifier)

	// The lock was taken at pre-upload time, so it must be released on
	// every exit path, including a job record that vanished before this
	// worker dequeued it.
	defer func() {
		if err := fz.deps.Locks.Release(context.Background(), lockKey, "write"); err != nil {
			logger.WarnCtx(ctx, "finalizer: release lock failed", logger.KeyLockKey, lockKey, logger.KeyErrorMessage, err.Error())
		}
		if err := os.RemoveAll(tempDir); err != nil {
			logger.WarnCtx(ctx, "finalizer: remove temp dir failed", logger.KeyPath, tempDir, logger.KeyErrorMessage, err.Error())
		}
	}()

	f := job.New(fz.deps.Jobs, j.SessionID, j.ProjectCode, j.Operator)
	f.SetJobID(j.ResumableIdentifier)
	f.SetSource(source)
	if err := f.Read(ctx); err != nil {
		logger.ErrorCtx(ctx, "finalizer: job not found", logger.KeyResumableIdentifier, j.ResumableIdentifier, logger.KeyErrorMessage, err.Error())
		return
	}

	if err := fz.run(ctx, j, f, source, tempDir); err != nil {
		telemetry.RecordError(ctx, err)
		fz.terminate(ctx, f, err)
		fz.deps.Metrics.ObserveFinalize("terminated", time.Since(start))
		return
	}
	fz.deps.Metrics.ObserveFinalize("succeed", time.Since(start))
}

func (fz *Finalizer) run(ctx context.Context, j Job, f *job.FSM, source, tempDir string) error {
	node, err := fz.deps.Folders.Materialize(ctx, j.Bucket, j.ProjectCode, j.ResumableRelativePath, j.Operator, j.FolderTags)
	if err != nil {
		return fmt.Errorf("materialize folders: %w", err)
	}
	var parentGEID string
	if node != nil {
		parentGEID = node.GEID
	}

	parts, err := fz.deps.Parts.List(ctx, j.ResumableIdentifier)
	if err != nil {
		return fmt.Errorf("list parts: %w", err)
	}
	if len(parts) == 0 {
		return fmt.Errorf("no parts recorded for %s", j.ResumableIdentifier)
	}

	uploaded := make([]objectstore.UploadedPart, len(parts))
	for i, p := range parts {
		uploaded[i] = objectstore.UploadedPart{PartNumber: int32(p.PartNumber), ETag: p.ETag}
	}

	completed, err := fz.deps.Objects.CombineParts(ctx, j.Bucket, source, j.ResumableIdentifier, uploaded)
	if err != nil {
		return fmt.Errorf("combine parts: %w", err)
	}
	if err := fz.deps.Parts.Clear(ctx, j.ResumableIdentifier); err != nil {
		logger.WarnCtx(ctx, "finalizer: clear part ledger failed", logger.KeyErrorMessage, err.Error())
	}

	labels := j.Tags
	if labels == nil {
		labels = []string{}
	}
	created, err := fz.deps.Catalog.CreateFile(ctx, catalog.FileRecord{
		Uploader:         j.Operator,
		FileName:         j.ResumableFilename,
		Path:             j.ResumableRelativePath,
		FileSize:         j.TotalSize,
		Description:      fmt.Sprintf("Raw file in %s", fz.deps.Namespace),
		Namespace:        fz.deps.Namespace,
		ProjectCode:      j.ProjectCode,
		Labels:           labels,
		ParentFolderGEID: parentGEID,
		Bucket:           completed.Bucket,
		ObjectPath:       completed.ObjectPath,
		VersionID:        completed.VersionID,
		Operator:         j.Operator,
		ProcessPipeline:  j.ProcessPipeline,
		ParentQuery:      j.FromParents,
		DcmID:            j.DcmID,
	})
	if err != nil {
		return fmt.Errorf("register file: %w", err)
	}

	if strings.HasSuffix(strings.ToLower(j.ResumableFilename), ".zip") {
		if err := fz.previewArchive(ctx, j, source, tempDir, created.ID); err != nil {
			return fmt.Errorf("archive preview: %w", err)
		}
	}

	if fz.deps.Activity != nil {
		msg := activity.UploadMessage(activity.Source{
			ID:            created.ID,
			Type:          created.Type,
			Name:          created.Name,
			ParentPath:    created.ParentPath,
			ContainerCode: created.ContainerCode,
			ContainerType: created.ContainerType,
			Zone:          int32(created.Zone),
		}, j.Operator, time.Now().UTC().Format(time.RFC3339))
		if err := fz.deps.Activity.Publish(ctx, msg); err != nil {
			return fmt.Errorf("publish activity log: %w", err)
		}
	}

	if err := f.SetStatus(ctx, job.StateFinalized); err != nil {
		return fmt.Errorf("transition finalized: %w", err)
	}
	f.AddPayload("source_geid", created.ID)
	if err := f.SetStatus(ctx, job.StateSucceed); err != nil {
		return fmt.Errorf("transition succeed: %w", err)
	}

	logger.InfoCtx(ctx, "finalized upload", logger.KeyResumableIdentifier, j.ResumableIdentifier, "geid", created.ID)
	return nil
}

// previewArchive downloads the combined object, walks its zip directory
// structure into a nested map, and registers it against the finalized file.
func (fz *Finalizer) previewArchive(ctx context.Context, j Job, source, tempDir, fileID string) error {
	if err := os.MkdirAll(tempDir, 0o700); err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}

	body, err := fz.deps.Objects.DownloadObject(ctx, j.Bucket, source)
	if err != nil {
		if objectstore.IsNotFound(err) {
			return apierrors.NotFound("combined object not found: %s", source)
		}
		return err
	}
	defer func() { _ = body.Close() }()

	localPath := filepath.Join(tempDir, filepath.Base(j.ResumableFilename))
	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local copy: %w", err)
	}
	if _, err := io.Copy(out, body); err != nil {
		_ = out.Close()
		return fmt.Errorf("write local copy: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close local copy: %w", err)
	}

	preview, err := walkZip(localPath)
	if err != nil {
		return fmt.Errorf("walk archive: %w", err)
	}

	return fz.deps.DataOps.PostArchivePreview(ctx, dataopsclient.ArchivePreview{
		ArchivePreview: preview,
		FileID:         fileID,
	})
}

// walkZip builds a nested {name: {is_dir, filename, size}} structure from
// the archive's directory, one zip entry at a time.
func walkZip(path string) (map[string]any, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer func() { _ = reader.Close() }()

	results := make(map[string]any)
	for _, file := range reader.File {
		segments := strings.Split(file.Name, "/")
		filename := segments[len(segments)-1]
		dirSegments := segments[:len(segments)-1]
		if filename == "" {
			if len(dirSegments) == 0 {
				continue
			}
			filename = dirSegments[len(dirSegments)-1]
		}

		current := results
		for _, seg := range dirSegments {
			if seg == "" {
				continue
			}
			existing, ok := current[seg].(map[string]any)
			if !ok {
				existing = map[string]any{"is_dir": true}
				current[seg] = existing
			}
			current = existing
		}

		if !file.FileInfo().IsDir() {
			current[filename] = map[string]any{
				"filename": filename,
				"size":     file.UncompressedSize64,
				"is_dir":   false,
			}
		}
	}
	return results, nil
}

func (fz *Finalizer) terminate(ctx context.Context, f *job.FSM, cause error) {
	message := cause.Error()
	if apiErr, ok := apierrors.As(cause); ok && apiErr.Kind == apierrors.KindNotFound {
		message = "[File Not Found] " + message
	}
	f.AddPayload("error_msg", message)
	if err := f.SetStatus(ctx, job.StateTerminated); err != nil {
		logger.ErrorCtx(ctx, "finalizer: could not mark job terminated",
			logger.KeyResumableIdentifier, f.JobID, logger.KeyErrorMessage, err.Error())
		return
	}
	logger.WarnCtx(ctx, "finalize failed, job terminated",
		logger.KeyResumableIdentifier, f.JobID, logger.KeyErrorMessage, message)
}

func sourceKey(relativePath, filename string) string {
	if relativePath == "" {
		return "/" + filename
	}
	return relativePath + "/" + filename
}
