package handlers

import (
	"encoding/json"
	"net/http"
)

type livenessBody struct {
	Status  string `json:"status"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Liveness serves the unauthenticated "/" probe: {status:"OK", name,
// version}.
func Liveness(name, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(livenessBody{Status: "OK", Name: name, Version: version})
	}
}
