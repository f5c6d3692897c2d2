// Package upload implements the HTTP-framing-agnostic upload coordinator:
// pre-upload reservation, chunk forwarding, combine scheduling, and job
// status lookup.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/pilotfs/uploadgateway/internal/logger"
	"github.com/pilotfs/uploadgateway/internal/telemetry"
	"github.com/pilotfs/uploadgateway/pkg/apierrors"
	"github.com/pilotfs/uploadgateway/pkg/catalog"
	"github.com/pilotfs/uploadgateway/pkg/finalizer"
	"github.com/pilotfs/uploadgateway/pkg/job"
	"github.com/pilotfs/uploadgateway/pkg/jobstore"
	"github.com/pilotfs/uploadgateway/pkg/lockclient"
	"github.com/pilotfs/uploadgateway/pkg/metrics"
	"github.com/pilotfs/uploadgateway/pkg/objectstore"
	"github.com/pilotfs/uploadgateway/pkg/partledger"
	"github.com/pilotfs/uploadgateway/pkg/projectclient"
)

// JobType selects between a flat file upload and a folder-tree upload.
type JobType string

const (
	JobTypeFile   JobType = "AS_FILE"
	JobTypeFolder JobType = "AS_FOLDER"
)

// Zone controls bucket selection and the catalog's zone integer.
type Zone int

const (
	ZoneGreenroom Zone = 0
	ZoneCore      Zone = 1
)

// Coordinator wires together every collaborator C8 depends on.
type Coordinator struct {
	Jobs      *jobstore.Store
	Parts     *partledger.Ledger
	Locks     *lockclient.Client
	Objects   *objectstore.Store
	Catalog   *catalog.Client
	Projects  *projectclient.Client
	Finalizer *finalizer.Finalizer
	Metrics   *metrics.Metrics

	Zone Zone
}

// bucket derives the object-store bucket for a project: "gr-" or "core-"
// plus the project code, depending on which zone this process serves.
func (c *Coordinator) bucket(projectCode string) string {
	if c.Zone == ZoneCore {
		return "core-" + projectCode
	}
	return "gr-" + projectCode
}

func (c *Coordinator) zoneInt() int {
	return int(c.Zone)
}

// FileEntry is a single file slot within a pre-upload batch.
type FileEntry struct {
	Filename     string
	RelativePath string
	DcmID        string
}

// PreUploadRequest reserves upload slots for a batch of files.
type PreUploadRequest struct {
	SessionID        string
	ProjectCode      string
	Operator         string
	JobType          JobType
	FolderTags       []string
	Data             []FileEntry
	CurrentFolderNode string
}

// ConflictRecord names one file or folder whose target path is already
// taken in the catalog.
type ConflictRecord struct {
	Name         string `json:"name"`
	RelativePath string `json:"relative_path,omitempty"`
	DisplayPath  string `json:"display_path,omitempty"`
	Type         string `json:"type"`
}

// PreUpload validates the job type, verifies the project exists, detects
// name conflicts, NFC-normalizes filenames, reserves multipart upload ids,
// persists one job per file, and bulk-acquires write locks. The locks stay
// held until the finalizer releases them.
func (c *Coordinator) PreUpload(ctx context.Context, req PreUploadRequest) (_ []job.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "upload.PreUpload")
	defer span.End()
	start := time.Now()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		c.Metrics.ObserveRequest("pre_upload", time.Since(start), err)
	}()

	if req.JobType != JobTypeFile && req.JobType != JobTypeFolder {
		return nil, apierrors.BadRequest("Invalid job type: %s", req.JobType)
	}

	exists, err := c.Projects.Exists(ctx, req.ProjectCode)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierrors.NotFound("project %s does not exist", req.ProjectCode)
	}

	fileConflicts, folderConflicts, err := c.detectConflicts(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(fileConflicts) > 0 {
		return nil, apierrors.New(apierrors.KindConflictFile, apierrors.MsgInvalidFilename).
			WithResult(map[string]any{"failed": fileConflicts})
	}
	if len(folderConflicts) > 0 {
		return nil, apierrors.New(apierrors.KindConflictFolder, apierrors.MsgInvalidFoldername).
			WithResult(map[string]any{"failed": folderConflicts})
	}

	for i := range req.Data {
		req.Data[i].Filename = norm.NFC.String(req.Data[i].Filename)
	}

	sources := make([]string, len(req.Data))
	for i, entry := range req.Data {
		sources[i] = sourceKey(entry.RelativePath, entry.Filename)
	}

	uploadIDs, err := c.prepareMultipart(ctx, c.bucket(req.ProjectCode), sources)
	if err != nil {
		return nil, err
	}

	taskID := uuid.NewString()
	lockKeys := make([]string, len(sources))
	jobs := make([]*job.FSM, len(sources))
	records := make([]job.Record, len(sources))

	for i, source := range sources {
		f := job.New(c.Jobs, req.SessionID, req.ProjectCode, req.Operator)
		f.SetJobID(uploadIDs[i])
		f.SetSource(source)
		f.AddPayload("task_id", taskID)
		f.AddPayload("resumable_identifier", uploadIDs[i])
		if len(req.FolderTags) > 0 {
			f.AddPayload("folder_tags", req.FolderTags)
		}
		jobs[i] = f
		lockKeys[i] = fmt.Sprintf("%s/%s", c.bucket(req.ProjectCode), source)
	}

	if lockErr := c.Locks.AcquireBulk(ctx, lockKeys, "write"); lockErr != nil {
		c.Metrics.RecordLockContention("pre_upload")
		return nil, lockErr
	}

	pipe := c.Jobs.Pipeline()
	for i, f := range jobs {
		f.Status = job.StatePreUploaded
		rec, marshalErr := f.PipelineRecord()
		if marshalErr != nil {
			return nil, apierrors.Internal("pre_upload", marshalErr)
		}
		pipe.Set(ctx, f.Key(), rec)
		records[i] = f.ToRecord()
	}
	if err := pipe.Execute(ctx); err != nil {
		return nil, apierrors.Internal("pre_upload", err)
	}

	logger.InfoCtx(ctx, "pre-upload reserved jobs", logger.KeyProjectCode, req.ProjectCode, "count", len(jobs))
	return records, nil
}

func (c *Coordinator) detectConflicts(ctx context.Context, req PreUploadRequest) ([]ConflictRecord, []ConflictRecord, error) {
	var fileConflicts, folderConflicts []ConflictRecord

	switch req.JobType {
	case JobTypeFile:
		for _, entry := range req.Data {
			items, err := c.Catalog.Search(ctx, catalog.SearchParams{
				ParentPath:    entry.RelativePath,
				Name:          entry.Filename,
				ContainerCode: req.ProjectCode,
				Zone:          c.zoneInt(),
				Recursive:     false,
			})
			if err != nil {
				return nil, nil, apierrors.Internal("pre_upload", err)
			}
			if len(items) > 0 {
				fileConflicts = append(fileConflicts, ConflictRecord{
					Name: entry.Filename, RelativePath: entry.RelativePath, Type: "File",
				})
			}
		}
	case JobTypeFolder:
		parentPath, name := splitLast(req.CurrentFolderNode)
		items, err := c.Catalog.Search(ctx, catalog.SearchParams{
			ParentPath:    parentPath,
			Name:          name,
			ContainerCode: req.ProjectCode,
			Zone:          c.zoneInt(),
			Recursive:     false,
		})
		if err != nil {
			return nil, nil, apierrors.Internal("pre_upload", err)
		}
		if len(items) > 0 {
			folderConflicts = append(folderConflicts, ConflictRecord{DisplayPath: req.CurrentFolderNode, Type: "Folder"})
		}
	}
	return fileConflicts, folderConflicts, nil
}

func (c *Coordinator) prepareMultipart(ctx context.Context, bucket string, sources []string) ([]string, error) {
	ids := make([]string, len(sources))
	for i, source := range sources {
		prepared, err := c.Objects.PrepareMultipartUpload(ctx, bucket, source)
		if err != nil {
			return nil, apierrors.Internal("pre_upload", err)
		}
		ids[i] = prepared.UploadID
	}
	return ids, nil
}

// folderTagsFromPayload recovers the folder_tags slice PreUpload stamped
// onto the job payload. A job read back from Redis carries it as
// []any (JSON round-trip), one saved in-process still carries []string.
func folderTagsFromPayload(payload map[string]any) []string {
	raw, ok := payload["folder_tags"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}

func sourceKey(relativePath, filename string) string {
	if relativePath == "" {
		return "/" + filename
	}
	return relativePath + "/" + filename
}

func splitLast(path string) (parent, name string) {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i], path[i+1:]
		}
	}
	return "", path
}

// ChunkUploadRequest carries one chunk of an in-flight upload.
type ChunkUploadRequest struct {
	SessionID             string
	ProjectCode           string
	Operator              string
	ResumableIdentifier   string
	ResumableFilename     string
	ResumableRelativePath string
	ResumableChunkNumber  int32
	ResumableTotalChunks  int32
	ChunkData             io.Reader
}

// ChunkUpload reads the chunk into memory, forwards it to the object store
// as a multipart part, and records its part number and ETag in the ledger,
// tearing the job down to TERMINATED on failure. Chunks for the same
// upload may arrive concurrently and in any order; ordering is restored at
// combine time.
func (c *Coordinator) ChunkUpload(ctx context.Context, req ChunkUploadRequest) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "upload.ChunkUpload")
	defer span.End()
	start := time.Now()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		c.Metrics.ObserveRequest("upload_chunks", time.Since(start), err)
	}()

	filename := norm.NFC.String(req.ResumableFilename)
	source := sourceKey(req.ResumableRelativePath, filename)

	data, readErr := io.ReadAll(req.ChunkData)
	if readErr != nil {
		c.terminateOnChunkFailure(ctx, req, readErr)
		err = apierrors.Internal("upload_chunks", readErr)
		return err
	}
	c.Metrics.RecordChunkBytes(int64(len(data)))

	uploaded, uploadErr := c.Objects.UploadPart(ctx, c.bucket(req.ProjectCode), source, req.ResumableIdentifier, req.ResumableChunkNumber, bytes.NewReader(data))
	if uploadErr != nil {
		c.terminateOnChunkFailure(ctx, req, uploadErr)
		err = apierrors.Internal("upload_chunks", uploadErr)
		return err
	}

	part := partledger.Part{PartNumber: int(uploaded.PartNumber), ETag: uploaded.ETag, Size: int64(len(data))}
	if putErr := c.Parts.Put(ctx, req.ResumableIdentifier, part); putErr != nil {
		c.terminateOnChunkFailure(ctx, req, putErr)
		err = apierrors.Internal("upload_chunks", putErr)
		return err
	}
	return nil
}

func (c *Coordinator) terminateOnChunkFailure(ctx context.Context, req ChunkUploadRequest, cause error) {
	f := job.New(c.Jobs, req.SessionID, req.ProjectCode, req.Operator)
	f.SetJobID(req.ResumableIdentifier)
	f.SetSource(sourceKey(req.ResumableRelativePath, norm.NFC.String(req.ResumableFilename)))
	if readErr := f.Read(ctx); readErr != nil {
		logger.ErrorCtx(ctx, "chunk failure: job not found for termination", logger.KeyErrorMessage, readErr.Error())
		return
	}
	f.AddPayload("error_msg", cause.Error())
	if err := f.SetStatus(ctx, job.StateTerminated); err != nil {
		logger.ErrorCtx(ctx, "chunk failure: could not mark job terminated", logger.KeyErrorMessage, err.Error())
	}
}

// CombineRequest asks for an upload's parts to be assembled into the final
// object.
type CombineRequest struct {
	SessionID             string
	ProjectCode           string
	Operator              string
	ResumableIdentifier   string
	ResumableFilename     string
	ResumableRelativePath string
	ResumableTotalChunks  int32
	ResumableTotalSize    int64
	Tags                  []string
	DcmID                 string
	ProcessPipeline       string
	FromParents           []string
	UploadMessage         string
}

// Combine NFC-normalizes the filename, rejects a job that is not in
// PRE_UPLOADED or CHUNK_UPLOADED (a repeated combine must not restart
// finalization), schedules the finalizer, and returns immediately without
// waiting on it.
func (c *Coordinator) Combine(ctx context.Context, req CombineRequest) (_ *job.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "upload.Combine")
	defer span.End()
	start := time.Now()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		c.Metrics.ObserveRequest("on_success", time.Since(start), err)
	}()

	filename := norm.NFC.String(req.ResumableFilename)
	source := sourceKey(req.ResumableRelativePath, filename)

	f := job.New(c.Jobs, req.SessionID, req.ProjectCode, req.Operator)
	f.SetJobID(req.ResumableIdentifier)
	f.SetSource(source)
	if readErr := f.Read(ctx); readErr != nil {
		return nil, apierrors.BadRequest("job not found: %s", req.ResumableIdentifier)
	}

	if f.Status != job.StatePreUploaded && f.Status != job.StateChunkUploaded {
		return nil, apierrors.BadRequest("job %s is not eligible for combine (status=%s)", req.ResumableIdentifier, f.Status)
	}

	if transitionErr := f.SetStatus(ctx, job.StateChunkUploaded); transitionErr != nil {
		return nil, apierrors.Internal("on_success", transitionErr)
	}

	c.Finalizer.Submit(finalizer.Job{
		SessionID:             req.SessionID,
		ProjectCode:           req.ProjectCode,
		Operator:              req.Operator,
		ResumableIdentifier:   req.ResumableIdentifier,
		ResumableFilename:     filename,
		ResumableRelativePath: req.ResumableRelativePath,
		Tags:                  req.Tags,
		FolderTags:            folderTagsFromPayload(f.Payload),
		DcmID:                 req.DcmID,
		ProcessPipeline:       req.ProcessPipeline,
		FromParents:           req.FromParents,
		UploadMessage:         req.UploadMessage,
		TotalSize:             req.ResumableTotalSize,
		Bucket:                c.bucket(req.ProjectCode),
		Zone:                  int(c.Zone),
	})

	rec := f.ToRecord()
	return &rec, nil
}

// GetStatus looks a job up by id across all operators and projects of the
// session, returning the first hit.
func (c *Coordinator) GetStatus(ctx context.Context, sessionID, jobID string) (_ *job.Record, err error) {
	ctx, span := telemetry.StartSpan(ctx, "upload.GetStatus")
	defer span.End()
	start := time.Now()
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		c.Metrics.ObserveRequest("get_status", time.Since(start), err)
	}()

	records, listErr := job.ListByJob(ctx, c.Jobs, sessionID, jobID)
	if listErr != nil {
		return nil, apierrors.Internal("get_status", listErr)
	}
	if len(records) == 0 {
		return nil, apierrors.BadRequest("job not found: %s", jobID)
	}
	return &records[0], nil
}
