// Package spec embeds the ledger's OpenAPI document.
package spec

import (
	"embed"
	"net/http"
)

//go:embed openapi.yaml
var openapiFS embed.FS

// Document returns the raw OpenAPI document.
func Document() ([]byte, error) {
	return openapiFS.ReadFile("openapi.yaml")
}

// OpenAPIHandler serves the embedded OpenAPI document for the Swagger UI.
func OpenAPIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := Document()
		if err != nil {
			http.Error(w, "openapi document not available", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}
