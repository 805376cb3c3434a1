// Package ollama implements the gateway backend contract over an
// Ollama-compatible HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/dialogue/pkg/gateway"
	"github.com/papercomputeco/dialogue/pkg/llm"
)

// DefaultBaseURL is where a local Ollama listens.
const DefaultBaseURL = "http://localhost:11434"

// Config is the backend client configuration.
type Config struct {
	// BaseURL of the API, without the /api suffix.
	BaseURL string

	// Timeout bounds each HTTP call. Generation on CPU can be slow.
	Timeout time.Duration

	// KeepAlive is forwarded to the backend to keep the model resident.
	KeepAlive string
}

// Client talks to the backend. It satisfies gateway.Loader.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     *zap.Logger
}

var _ gateway.Loader = (*Client)(nil)

// New creates a Client.
func New(config Config, logger *zap.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// Load checks that model is available on the backend and returns a handle
// that generates with it.
func (c *Client) Load(ctx context.Context, model string) (gateway.Generator, error) {
	var show llm.ShowResponse
	if err := c.post(ctx, "/api/show", llm.ShowRequest{Model: model}, &show); err != nil {
		return nil, fmt.Errorf("model %s unavailable: %w", model, err)
	}

	c.logger.Info("backend model available",
		zap.String("model", model),
		zap.String("family", show.Details.Family),
		zap.String("parameter_size", show.Details.ParameterSize),
		zap.String("quantization", show.Details.QuantizationLevel),
	)
	return &generator{client: c, model: model}, nil
}

type generator struct {
	client *Client
	model  string
}

// Generate sends the already-templated prompt in raw mode so the backend does
// not wrap it in its own chat template. The response does not echo the prompt.
func (g *generator) Generate(ctx context.Context, prompt string, params llm.Params) (string, error) {
	stream := false
	req := llm.GenerateRequest{
		Model:     g.model,
		Prompt:    prompt,
		Raw:       true,
		Stream:    &stream,
		Options:   params.Options(),
		KeepAlive: g.client.config.KeepAlive,
	}

	start := time.Now()
	var resp llm.GenerateResponse
	if err := g.client.post(ctx, "/api/generate", req, &resp); err != nil {
		return "", err
	}

	g.client.logger.Debug("generation complete",
		zap.String("model", resp.Model),
		zap.Int("eval_count", resp.EvalCount),
		zap.String("done_reason", resp.DoneReason),
		zap.Duration("duration", time.Since(start)),
	)
	return resp.Response, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := c.config.BaseURL + path
	c.logger.Debug("calling backend", zap.String("url", url), zap.Int("body_size", len(reqBody)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var apiErr llm.ErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("backend returned %d: %s", httpResp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("backend returned %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
