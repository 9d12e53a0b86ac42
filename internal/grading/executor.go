package grading

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Output is the result of one sandbox execution.
type Output struct {
	Stdout string
	Stderr string
}

// Executor runs a single piece of source code against the external sandbox.
// Narrow on purpose so the provider is swappable and mockable in tests.
type Executor interface {
	Execute(ctx context.Context, language, source, stdin string) (*Output, error)
}

// SandboxClient calls a Piston-compatible execution API.
type SandboxClient struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewSandboxClient creates an Executor for the given base URL.
func NewSandboxClient(baseURL string, timeout time.Duration, log zerolog.Logger) *SandboxClient {
	return &SandboxClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "sandbox_client").Logger(),
	}
}

type executeFile struct {
	Content string `json:"content"`
}

type executeRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []executeFile `json:"files"`
	Stdin    string        `json:"stdin"`
}

type executeResponse struct {
	Run struct {
		Output string `json:"output"`
		Stderr string `json:"stderr"`
	} `json:"run"`
}

// Execute posts one run to the sandbox. A non-2xx response becomes an error
// composed from the status text and body; the caller decides how to surface it.
func (s *SandboxClient) Execute(ctx context.Context, language, source, stdin string) (*Output, error) {
	payload := executeRequest{
		Language: language,
		Version:  "*",
		Files:    []executeFile{{Content: source}},
		Stdin:    stdin,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sandbox request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("sandbox returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var parsed executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode sandbox response: %w", err)
	}

	return &Output{
		Stdout: parsed.Run.Output,
		Stderr: parsed.Run.Stderr,
	}, nil
}
