package logger

// Standard field keys for structured logging. Keep call sites consistent
// so log aggregation/querying works across the upload coordinator and the
// finalizer without ad-hoc key strings.
const (
	// Tracing
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Request / job identity
	KeySessionID           = "session_id"
	KeyJobID               = "job_id"
	KeyProjectCode         = "project_code"
	KeyOperator            = "operator"
	KeyResumableIdentifier = "resumable_identifier"
	KeyStatus              = "status"
	KeyAction              = "action"

	// File/folder operations
	KeySource       = "source"
	KeyPath         = "path"
	KeyFilename     = "filename"
	KeyParentPath   = "parent_path"
	KeyPartNumber   = "part_number"
	KeyTotalChunks  = "total_chunks"
	KeyBucket       = "bucket"
	KeyObjectPath   = "object_path"
	KeyVersionID    = "version_id"
	KeyLockKey      = "lock_key"
	KeyDurationMs   = "duration_ms"
	KeyErrorMessage = "error"
)
