// Package embedding is the HTTP client of the external embedding service.
// Failures surface as external-service errors, which the similarity analyzer
// treats as its cue to fall back to the lexical index.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/turtacn/EquityLens/internal/analysis/similarity"
	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
)

const defaultTimeout = 10 * time.Second

// Client implements similarity.Embedder against an OpenAI-compatible
// embeddings endpoint.
type Client struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	http      *http.Client
	log       logging.Logger
}

// NewClient validates the configuration and builds the client.
func NewClient(cfg config.EmbeddingConfig, log logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "embedding base_url must not be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New(errors.ErrCodeValidation, "embedding model must not be empty")
	}
	if cfg.Dimension <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "embedding dimension must be positive")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		http:      &http.Client{Timeout: timeout},
		log:       log,
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns the dense vector of a text.
func (c *Client) Embed(ctx context.Context, text string) (similarity.Vector, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: []string{text}})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "embedding service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.New(errors.ErrCodeExternalService,
			fmt.Sprintf("embedding service returned %d: %s", resp.StatusCode, snippet))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "malformed embedding response")
	}
	if len(parsed.Data) == 0 {
		return nil, errors.New(errors.ErrCodeExternalService, "embedding response carried no vectors")
	}
	vec := similarity.Vector(parsed.Data[0].Embedding)
	if len(vec) != c.dimension {
		return nil, errors.New(errors.ErrCodeDimensionMismatch,
			fmt.Sprintf("expected dimension %d, got %d", c.dimension, len(vec)))
	}
	return vec.Normalize(), nil
}

// Dimension returns the configured vector width.
func (c *Client) Dimension() int { return c.dimension }

// ModelID names the vector namespace.
func (c *Client) ModelID() string { return c.model }
