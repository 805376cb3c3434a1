package llm

// GenerateRequest is a single-prompt completion request (Ollama /api/generate).
type GenerateRequest struct {
	Model  string `json:"model"`            // Model name (e.g., "llama3.2")
	Prompt string `json:"prompt"`           // Fully templated prompt text
	Raw    bool   `json:"raw,omitempty"`    // Skip the model's own prompt template
	Stream *bool  `json:"stream,omitempty"` // Defaults to true in Ollama

	// Generation options
	Options *Options `json:"options,omitempty"`

	// Keep model loaded
	KeepAlive string `json:"keep_alive,omitempty"`
}

// ShowRequest asks the backend to describe a model (Ollama /api/show). The
// gateway uses it as its load probe.
type ShowRequest struct {
	Model string `json:"model"`
}
