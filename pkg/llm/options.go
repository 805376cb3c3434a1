package llm

// Params are the generation parameters a domain passes to the backend.
// They are fixed per domain and never come from the end user.
type Params struct {
	MaxNewTokens      int     `json:"max_new_tokens" toml:"max_new_tokens"`
	Temperature       float64 `json:"temperature" toml:"temperature"`
	TopP              float64 `json:"top_p" toml:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty" toml:"repetition_penalty"`
}

// Options contains model inference parameters as the Ollama API expects them.
type Options struct {
	// Sampling parameters
	Temperature *float64 `json:"temperature,omitempty"` // Creativity (0.0-2.0)
	TopP        *float64 `json:"top_p,omitempty"`       // Nucleus sampling threshold

	// Length parameters
	NumPredict *int `json:"num_predict,omitempty"` // Max tokens to generate

	// Repetition control
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"` // Penalty for repeating tokens
}

// Options converts p to backend options. Zero values are left unset so the
// backend applies its own defaults.
func (p Params) Options() *Options {
	o := &Options{}
	if p.MaxNewTokens > 0 {
		n := p.MaxNewTokens
		o.NumPredict = &n
	}
	if p.Temperature > 0 {
		t := p.Temperature
		o.Temperature = &t
	}
	if p.TopP > 0 {
		tp := p.TopP
		o.TopP = &tp
	}
	if p.RepetitionPenalty > 0 {
		rp := p.RepetitionPenalty
		o.RepeatPenalty = &rp
	}
	return o
}
