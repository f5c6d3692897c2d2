package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pilotfs/uploadgateway/pkg/apierrors"
	"github.com/pilotfs/uploadgateway/pkg/upload"
)

// Handler wires the upload coordinator to chi's http.HandlerFunc shape.
type Handler struct {
	coordinator *upload.Coordinator
}

// New builds a Handler bound to coordinator.
func New(coordinator *upload.Coordinator) *Handler {
	return &Handler{coordinator: coordinator}
}

type fileEntryBody struct {
	ResumableFilename     string `json:"resumable_filename"`
	ResumableRelativePath string `json:"resumable_relative_path"`
	DcmID                 string `json:"dcm_id"`
}

type preUploadBody struct {
	ProjectCode       string          `json:"project_code"`
	Operator          string          `json:"operator"`
	JobType           string          `json:"job_type"`
	FolderTags        []string        `json:"folder_tags"`
	Data              []fileEntryBody `json:"data"`
	CurrentFolderNode string          `json:"current_folder_node"`
}

// PreUpload handles POST /v1/files/jobs.
func (h *Handler) PreUpload(w http.ResponseWriter, r *http.Request) {
	var body preUploadBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierrors.BadRequest("invalid request body: %s", err.Error()))
		return
	}

	entries := make([]upload.FileEntry, len(body.Data))
	for i, d := range body.Data {
		entries[i] = upload.FileEntry{
			Filename:     d.ResumableFilename,
			RelativePath: d.ResumableRelativePath,
			DcmID:        d.DcmID,
		}
	}

	records, err := h.coordinator.PreUpload(r.Context(), upload.PreUploadRequest{
		SessionID:         r.Header.Get("Session-Id"),
		ProjectCode:       body.ProjectCode,
		Operator:          body.Operator,
		JobType:           upload.JobType(body.JobType),
		FolderTags:        body.FolderTags,
		Data:              entries,
		CurrentFolderNode: body.CurrentFolderNode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, records)
}

type chunkUploadBody struct {
	ProjectCode           string
	Operator              string
	ResumableIdentifier   string
	ResumableFilename     string
	ResumableRelativePath string
	ResumableChunkNumber  int32
	ResumableTotalChunks  int32
}

// ChunkUpload handles POST /v1/files/chunks. The request is
// multipart/form-data with the chunk bytes in the "chunk_data" part.
func (h *Handler) ChunkUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, apierrors.BadRequest("invalid multipart form: %s", err.Error()))
		return
	}

	body, err := parseChunkUploadForm(r)
	if err != nil {
		writeError(w, err)
		return
	}

	file, _, err := r.FormFile("chunk_data")
	if err != nil {
		writeError(w, apierrors.BadRequest("missing chunk_data part: %s", err.Error()))
		return
	}
	defer func() { _ = file.Close() }()

	if uploadErr := h.coordinator.ChunkUpload(r.Context(), upload.ChunkUploadRequest{
		SessionID:             r.Header.Get("Session-Id"),
		ProjectCode:           body.ProjectCode,
		Operator:              body.Operator,
		ResumableIdentifier:   body.ResumableIdentifier,
		ResumableFilename:     body.ResumableFilename,
		ResumableRelativePath: body.ResumableRelativePath,
		ResumableChunkNumber:  body.ResumableChunkNumber,
		ResumableTotalChunks:  body.ResumableTotalChunks,
		ChunkData:             file,
	}); uploadErr != nil {
		writeError(w, uploadErr)
		return
	}
	writeOK(w, map[string]string{"msg": "Succeed"})
}

func parseChunkUploadForm(r *http.Request) (chunkUploadBody, error) {
	chunkNumber, err := strconv.Atoi(r.FormValue("resumable_chunk_number"))
	if err != nil {
		return chunkUploadBody{}, apierrors.BadRequest("resumable_chunk_number must be an integer")
	}
	totalChunks, err := strconv.Atoi(r.FormValue("resumable_total_chunks"))
	if err != nil {
		return chunkUploadBody{}, apierrors.BadRequest("resumable_total_chunks must be an integer")
	}
	return chunkUploadBody{
		ProjectCode:           r.FormValue("project_code"),
		Operator:              r.FormValue("operator"),
		ResumableIdentifier:   r.FormValue("resumable_identifier"),
		ResumableFilename:     r.FormValue("resumable_filename"),
		ResumableRelativePath: r.FormValue("resumable_relative_path"),
		ResumableChunkNumber:  int32(chunkNumber),
		ResumableTotalChunks:  int32(totalChunks),
	}, nil
}

type combineBody struct {
	ProjectCode           string   `json:"project_code"`
	Operator              string   `json:"operator"`
	ResumableIdentifier   string   `json:"resumable_identifier"`
	ResumableFilename     string   `json:"resumable_filename"`
	ResumableRelativePath string   `json:"resumable_relative_path"`
	ResumableTotalChunks  int32    `json:"resumable_total_chunks"`
	ResumableTotalSize    int64    `json:"resumable_total_size"`
	Tags                  []string `json:"tags"`
	DcmID                 string   `json:"dcm_id"`
	ProcessPipeline       string   `json:"process_pipeline"`
	FromParents           []string `json:"from_parents"`
	UploadMessage         string   `json:"upload_message"`
}

// Combine handles POST /v1/files.
func (h *Handler) Combine(w http.ResponseWriter, r *http.Request) {
	var body combineBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apierrors.BadRequest("invalid request body: %s", err.Error()))
		return
	}

	record, err := h.coordinator.Combine(r.Context(), upload.CombineRequest{
		SessionID:             r.Header.Get("Session-Id"),
		ProjectCode:           body.ProjectCode,
		Operator:              body.Operator,
		ResumableIdentifier:   body.ResumableIdentifier,
		ResumableFilename:     body.ResumableFilename,
		ResumableRelativePath: body.ResumableRelativePath,
		ResumableTotalChunks:  body.ResumableTotalChunks,
		ResumableTotalSize:    body.ResumableTotalSize,
		Tags:                  body.Tags,
		DcmID:                 body.DcmID,
		ProcessPipeline:       body.ProcessPipeline,
		FromParents:           body.FromParents,
		UploadMessage:         body.UploadMessage,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, record)
}

// GetStatus handles GET /v1/upload/status/{job_id}.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	record, err := h.coordinator.GetStatus(r.Context(), r.Header.Get("Session-Id"), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, record)
}
