// Package llm generates the human-readable assessment narrative through an
// OpenAI-compatible chat-completions endpoint.  The application service falls
// back to a templated narrative whenever this client fails, so errors here
// never block an assessment.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/turtacn/EquityLens/internal/config"
	"github.com/turtacn/EquityLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/EquityLens/pkg/errors"
	rtypes "github.com/turtacn/EquityLens/pkg/types/report"
)

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxTokens = 300

	systemPrompt = "You are an equity-research quality reviewer. Summarise the " +
		"assessment below for a compliance officer in at most four sentences. " +
		"State the overall quality, any plagiarism candidates, the authorship " +
		"verdict and the compliance risk. Mention degraded dimensions only if " +
		"there are any. Do not invent facts beyond the given numbers."
)

// Client implements the application layer's Narrator port.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	http        *http.Client
	log         logging.Logger
}

// NewClient validates the configuration and builds the client.
func NewClient(cfg config.LLMConfig, log logging.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.ErrCodeValidation, "llm base_url must not be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New(errors.ErrCodeValidation, "llm model must not be empty")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		http:        &http.Client{Timeout: timeout},
		log:         log,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Narrate produces the narrative for one assessment.
func (c *Client) Narrate(ctx context.Context, a rtypes.AssessmentDTO) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: assessmentFacts(a)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to encode narration request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInternal, "failed to build narration request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "llm service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", errors.New(errors.ErrCodeExternalService,
			fmt.Sprintf("llm service returned %d: %s", resp.StatusCode, snippet))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "malformed llm response")
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New(errors.ErrCodeExternalService, "llm response carried no choices")
	}
	narrative := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if narrative == "" {
		return "", errors.New(errors.ErrCodeExternalService, "llm returned an empty narrative")
	}
	return narrative, nil
}

// assessmentFacts flattens the assessment into the prompt.  Only numbers and
// labels go in; the report text itself never leaves the engine.
func assessmentFacts(a rtypes.AssessmentDTO) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assessment version: %d\n", a.Version)
	fmt.Fprintf(&b, "Overall quality score: %.1f/100\n", a.OverallScore)

	for _, d := range a.Dimensions {
		if d.Available {
			fmt.Fprintf(&b, "Dimension %s: %.1f (weight %.2f)\n", d.Name, d.Score, d.Weight)
		} else {
			fmt.Fprintf(&b, "Dimension %s: unavailable (%s)\n", d.Name, d.Reason)
		}
	}

	if a.Similarity.PlagiarismSuspected {
		fmt.Fprintf(&b, "Plagiarism candidates: %d, strongest similarity %.2f\n",
			len(a.Similarity.Matches), a.Similarity.MaxScore)
	} else {
		b.WriteString("Plagiarism candidates: none\n")
	}

	fmt.Fprintf(&b, "Authorship: %s (probability %.2f, confidence %.2f)\n",
		a.AIDetection.Label, a.AIDetection.Probability, a.AIDetection.Confidence)
	fmt.Fprintf(&b, "Compliance risk: %s, findings: %d\n",
		a.Compliance.OverallRisk, len(a.Compliance.Findings))

	if a.DegradedCount > 0 {
		fmt.Fprintf(&b, "Degraded dimensions this run: %d\n", a.DegradedCount)
	}
	return b.String()
}
