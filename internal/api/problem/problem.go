package problem

import (
	"encoding/json"
	"net/http"
)

const contentType = "application/problem+json"
const baseTypeURL = "https://errors.ledger-engine.dev/"

// Details represents RFC 7807 Problem Details. Code, Retryable and Errors are
// extension members.
type Details struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail"`
	Instance  string            `json:"instance"`
	RequestID string            `json:"request_id"`
	Code      string            `json:"code,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends RFC 7807-compliant errors.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	WriteDetails(w, r, Details{Type: problemType, Title: title, Status: status, Detail: detail})
}

// WriteDetails fills the request-derived members of d and sends it.
func WriteDetails(w http.ResponseWriter, r *http.Request, d Details) {
	if d.Title == "" {
		d.Title = http.StatusText(d.Status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
		d.RequestID = r.Header.Get("X-Trace-ID")
	}
	if d.RequestID == "" {
		d.RequestID = w.Header().Get("X-Trace-ID")
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(d.Status)
	_ = json.NewEncoder(w).Encode(d)
}
