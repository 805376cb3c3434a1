package server

// Config is the dialogue server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	ListenAddr string

	// Model is the backend model every domain gateway loads.
	Model string

	// Domains to serve. Empty means every built-in domain.
	Domains []string

	// SubmitRate limits submissions per second for each domain. Zero
	// disables the limit.
	SubmitRate float64

	// SubmitBurst is the number of submissions allowed at once before the
	// rate applies. Defaults to 1.
	SubmitBurst int
}
