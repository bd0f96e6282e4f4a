package httpapi

import (
	"encoding/json"
	"net/http"
)

// errorBody is the uniform error envelope: {"detail": "<string>"} (§6).
type errorBody struct {
	Detail string `json:"detail"`
}

// respond writes v as a JSON response with the given status code.
func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// respondError writes the uniform {"detail": "..."} error body.
func respondError(w http.ResponseWriter, status int, detail string) {
	respond(w, status, errorBody{Detail: detail})
}
