package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/profitlens/profitlens/internal/ledger"
)

// ErrBadRequest marks client-side validation failures.
var ErrBadRequest = errors.New("bad request")

// ProblemDetail is an RFC7807-style error body.
type ProblemDetail struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func problem(w http.ResponseWriter, status int, title, detail string) {
	writeJSON(w, status, ProblemDetail{Title: title, Status: status, Detail: detail})
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrBadRequest):
		problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
