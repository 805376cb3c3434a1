// Package llm holds the wire types shared between dialogue's HTTP surface and
// the Ollama-compatible generation backend.
package llm

// ErrorResponse is the JSON error body used by both the backend API and the
// dialogue server.
type ErrorResponse struct {
	Error string `json:"error"`
}
