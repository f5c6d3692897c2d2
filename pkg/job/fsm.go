// Package job implements the per-upload session job and its finite-state
// machine, persisted write-through to the job store on every transition.
package job

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pilotfs/uploadgateway/pkg/jobstore"
)

// State is a job's position in the upload lifecycle.
type State string

const (
	StateInit           State = "INIT"
	StatePreUploaded    State = "PRE_UPLOADED"
	StateChunkUploaded  State = "CHUNK_UPLOADED"
	StateFinalized      State = "FINALIZED"
	StateSucceed        State = "SUCCEED"
	StateTerminated     State = "TERMINATED"
)

// Action names the job kind recorded in the composite key; the upload
// gateway only ever deals in one action family.
const Action = "data_upload"

// transitions enumerates the legal forward moves; TERMINATED is reachable
// from any non-terminal state and is checked separately in CanTransition.
var transitions = map[State][]State{
	StateInit:          {StatePreUploaded},
	StatePreUploaded:   {StateChunkUploaded},
	StateChunkUploaded: {StateFinalized},
	StateFinalized:     {StateSucceed},
}

// CanTransition reports whether moving from 'from' to 'to' is legal. A
// same-state move is a no-op re-save, legal outside the terminal states:
// a client may retry combine while the job is still CHUNK_UPLOADED, and
// that retry must not be an illegal transition.
func CanTransition(from, to State) bool {
	if from == to {
		return from != StateSucceed && from != StateTerminated
	}
	if to == StateTerminated {
		return from != StateSucceed
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Record is the job's persisted JSON shape.
type Record struct {
	SessionID       string         `json:"session_id"`
	JobID           string         `json:"job_id"`
	Source          string         `json:"source"`
	Action          string         `json:"action"`
	Status          State          `json:"status"`
	ProjectCode     string         `json:"project_code"`
	Operator        string         `json:"operator"`
	Progress        int            `json:"progress"`
	Payload         map[string]any `json:"payload"`
	UpdateTimestamp string         `json:"update_timestamp"`
}

// FSM is a single upload job bound to a jobstore-backed persistence layer.
type FSM struct {
	store *jobstore.Store

	SessionID   string
	JobID       string
	ProjectCode string
	Operator    string
	Source      string
	Status      State
	Progress    int
	Payload     map[string]any
}

// New creates a fresh job in StateInit. Callers must call SetJobID and
// SetSource before the first SetStatus.
func New(store *jobstore.Store, sessionID, projectCode, operator string) *FSM {
	return &FSM{
		store:       store,
		SessionID:   sessionID,
		ProjectCode: projectCode,
		Operator:    operator,
		Status:      StateInit,
		Payload:     make(map[string]any),
	}
}

// SetJobID assigns the job's identifier.
func (f *FSM) SetJobID(jobID string) { f.JobID = jobID }

// SetSource assigns the job's source path/identifier.
func (f *FSM) SetSource(source string) { f.Source = source }

// AddPayload sets a payload key, overwriting any existing value.
func (f *FSM) AddPayload(key string, value any) {
	if f.Payload == nil {
		f.Payload = make(map[string]any)
	}
	f.Payload[key] = value
}

// SetProgress records a 0-100 progress value.
func (f *FSM) SetProgress(progress int) { f.Progress = progress }

// Key builds the composite redis key, matching
// "dataaction:{session_id}:Container:{job_id}:{action}:{project_code}:{operator}:{source}".
func (f *FSM) Key() string {
	return fmt.Sprintf("dataaction:%s:Container:%s:%s:%s:%s:%s",
		f.SessionID, f.JobID, Action, f.ProjectCode, f.Operator, f.Source)
}

// ToRecord snapshots the FSM's current in-memory state into a Record,
// without touching the store.
func (f *FSM) ToRecord() Record {
	return Record{
		SessionID:   f.SessionID,
		JobID:       f.JobID,
		Source:      f.Source,
		Action:      Action,
		Status:      f.Status,
		ProjectCode: f.ProjectCode,
		Operator:    f.Operator,
		Progress:    f.Progress,
		Payload:     f.Payload,
	}
}

// PipelineRecord marshals the FSM's current state for a pipelined Set,
// requiring job_id and source exactly as Save does.
func (f *FSM) PipelineRecord() (string, error) {
	if f.JobID == "" {
		return "", fmt.Errorf("job: job_id not set")
	}
	if f.Source == "" {
		return "", fmt.Errorf("job: source not set")
	}
	record := f.ToRecord()
	record.UpdateTimestamp = strconv.FormatInt(time.Now().Unix(), 10)
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("job: marshal record: %w", err)
	}
	return string(data), nil
}

// SetStatus transitions the job to status, rejecting illegal transitions,
// then persists the record.
func (f *FSM) SetStatus(ctx context.Context, status State) error {
	if !CanTransition(f.Status, status) {
		return fmt.Errorf("job: illegal transition %s -> %s", f.Status, status)
	}
	f.Status = status
	return f.Save(ctx)
}

// Save persists the job's current state unconditionally.
func (f *FSM) Save(ctx context.Context) error {
	if f.JobID == "" {
		return fmt.Errorf("job: job_id not set")
	}
	if f.Source == "" {
		return fmt.Errorf("job: source not set")
	}
	record := Record{
		SessionID:       f.SessionID,
		JobID:           f.JobID,
		Source:          f.Source,
		Action:          Action,
		Status:          f.Status,
		ProjectCode:     f.ProjectCode,
		Operator:        f.Operator,
		Progress:        f.Progress,
		Payload:         f.Payload,
		UpdateTimestamp: strconv.FormatInt(time.Now().Unix(), 10),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("job: marshal record: %w", err)
	}
	return f.store.Set(ctx, f.Key(), string(data))
}

// Read loads the job's persisted record into f.
func (f *FSM) Read(ctx context.Context) error {
	val, ok, err := f.store.Get(ctx, f.Key())
	if err != nil {
		return fmt.Errorf("job: read %s: %w", f.JobID, err)
	}
	if !ok {
		return fmt.Errorf("job: not found: %s", f.JobID)
	}
	var record Record
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return fmt.Errorf("job: decode record: %w", err)
	}
	f.Source = record.Source
	f.Status = record.Status
	f.Progress = record.Progress
	f.Payload = record.Payload
	return nil
}

// ListBySession returns every job record under session_id/project_code,
// optionally narrowed to operator.
func ListBySession(ctx context.Context, store *jobstore.Store, sessionID, projectCode, operator string) ([]Record, error) {
	prefix := fmt.Sprintf("dataaction:%s:Container:", sessionID)
	if operator != "" {
		// The scan cannot be narrowed past the session segment: job_id
		// precedes project and operator in the composite key, so both are
		// filtered client-side below.
		_ = projectCode
	}

	raws, err := store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("job: list session %s: %w", sessionID, err)
	}

	var records []Record
	for _, raw := range raws {
		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		if record.ProjectCode != projectCode {
			continue
		}
		if operator != "" && record.Operator != operator {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// ListByJob returns every record whose key carries job_id under session_id,
// regardless of operator or project code. The job_id segment is embedded
// directly in the composite key, so no client-side filtering is needed
// beyond the prefix match itself.
func ListByJob(ctx context.Context, store *jobstore.Store, sessionID, jobID string) ([]Record, error) {
	prefix := fmt.Sprintf("dataaction:%s:Container:%s:", sessionID, jobID)
	raws, err := store.ScanPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("job: list job %s: %w", jobID, err)
	}

	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			continue
		}
		records = append(records, record)
	}
	return records, nil
}
