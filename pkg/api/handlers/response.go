package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pilotfs/uploadgateway/pkg/apierrors"
)

// Envelope is the response shape every endpoint returns.
type Envelope struct {
	Code       int    `json:"code"`
	ErrorMsg   string `json:"error_msg"`
	Page       int    `json:"page"`
	Total      int    `json:"total"`
	NumOfPages int    `json:"num_of_pages"`
	Result     any    `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

// writeOK writes a successful single-page envelope around result.
func writeOK(w http.ResponseWriter, result any) {
	writeJSON(w, http.StatusOK, Envelope{Code: http.StatusOK, Total: 1, NumOfPages: 1, Result: result})
}

// writeError maps err onto the envelope, folding anything that is not an
// *apierrors.Error into a namespace-prefixed Internal response.
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := apierrors.As(err)
	if !ok {
		apiErr = apierrors.Internal("api_data_upload", err)
	}
	writeJSON(w, apiErr.HTTPStatus(), Envelope{
		Code:       apiErr.HTTPStatus(),
		ErrorMsg:   apiErr.Message,
		Total:      1,
		NumOfPages: 1,
		Result:     apiErr.Result,
	})
}
