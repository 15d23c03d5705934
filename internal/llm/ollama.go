package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// OllamaConfig configures the Ollama client.
type OllamaConfig struct {
	// BaseURL is the Ollama API endpoint.
	BaseURL string

	// Model is the model name to use.
	Model string

	// RequestTimeout bounds metadata requests (version, tags).
	RequestTimeout time.Duration

	// InferenceTimeout bounds a single generation.
	InferenceTimeout time.Duration

	// Temperature for classification prompts. Low values keep output terse.
	Temperature float64

	// AutoPullModel pulls the model when it is not installed.
	AutoPullModel bool
}

// DefaultOllamaConfig returns the local-server defaults.
func DefaultOllamaConfig() *OllamaConfig {
	return &OllamaConfig{
		BaseURL:          "http://localhost:11434",
		Model:            "qwen3:8b",
		RequestTimeout:   30 * time.Second,
		InferenceTimeout: 120 * time.Second,
		Temperature:      0.2,
		AutoPullModel:    false,
	}
}

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	config     *OllamaConfig
	httpClient *http.Client
	available  bool
	modelReady bool
	lastCheck  time.Time
	mu         sync.RWMutex
}

// OllamaStatus reports server and model readiness.
type OllamaStatus struct {
	Available    bool     `json:"available"`
	Version      string   `json:"version,omitempty"`
	ModelReady   bool     `json:"model_ready"`
	ModelName    string   `json:"model_name"`
	ModelsLoaded []string `json:"models_loaded,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type generateRequest struct {
	Model   string           `json:"model"`
	Prompt  string           `json:"prompt"`
	Stream  bool             `json:"stream"`
	Options *generateOptions `json:"options,omitempty"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type listModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// availabilityTTL is how long a successful readiness check is trusted.
const availabilityTTL = time.Minute

// NewOllamaClient creates a new Ollama client.
func NewOllamaClient(config *OllamaConfig) *OllamaClient {
	if config == nil {
		config = DefaultOllamaConfig()
	}
	return &OllamaClient{
		config:     config,
		httpClient: &http.Client{Timeout: config.RequestTimeout},
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string {
	return c.config.Model
}

// CheckAvailability probes the server and the configured model.
func (c *OllamaClient) CheckAvailability(ctx context.Context) *OllamaStatus {
	status := &OllamaStatus{ModelName: c.config.Model}

	version, err := c.getVersion(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("ollama not available: %v", err)
		c.setAvailability(false, false)
		return status
	}
	status.Available = true
	status.Version = version

	models, err := c.listModels(ctx)
	if err != nil {
		status.Error = fmt.Sprintf("failed to list models: %v", err)
		c.setAvailability(true, false)
		return status
	}

	family, _, _ := strings.Cut(c.config.Model, ":")
	for _, name := range models {
		status.ModelsLoaded = append(status.ModelsLoaded, name)
		if name == c.config.Model || strings.HasPrefix(name, family+":") {
			status.ModelReady = true
		}
	}

	if !status.ModelReady && c.config.AutoPullModel {
		log.Info().Str("model", c.config.Model).Msg("Pulling Ollama model")
		if err := c.PullModel(ctx); err != nil {
			status.Error = fmt.Sprintf("failed to pull model: %v", err)
		} else {
			status.ModelReady = true
		}
	}

	c.setAvailability(status.Available, status.ModelReady)
	return status
}

// IsAvailable reports the result of the last readiness check while it is fresh.
func (c *OllamaClient) IsAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available && c.modelReady && time.Since(c.lastCheck) < availabilityTTL
}

func (c *OllamaClient) setAvailability(available, modelReady bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = available
	c.modelReady = modelReady
	c.lastCheck = time.Now()
}

// Generate runs a non-streaming completion and returns the answer with any
// reasoning block removed.
func (c *OllamaClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.IsAvailable() {
		if status := c.CheckAvailability(ctx); !status.Available || !status.ModelReady {
			return "", fmt.Errorf("%w: %s", ErrUnavailable, status.Error)
		}
	}

	resp, err := c.doGenerate(ctx, &generateRequest{
		Model:   c.config.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: &generateOptions{Temperature: c.config.Temperature},
	})
	if err != nil {
		return "", err
	}
	return StripThinking(resp.Response), nil
}

// PullModel pulls the configured model.
func (c *OllamaClient) PullModel(ctx context.Context) error {
	body, err := json.Marshal(map[string]any{
		"name":   c.config.Model,
		"stream": false,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	// Pulls download gigabytes; only ctx bounds them.
	resp, err := (&http.Client{}).Do(req)
	if err != nil {
		return fmt.Errorf("pull request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("pull failed with status %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

func (c *OllamaClient) doGenerate(ctx context.Context, req *generateRequest) (*generateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: c.config.InferenceTimeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generate request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("generate failed with status %d: %s", resp.StatusCode, string(b))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}

func (c *OllamaClient) getVersion(ctx context.Context) (string, error) {
	var v versionResponse
	if err := c.getJSON(ctx, "/api/version", &v); err != nil {
		return "", err
	}
	return v.Version, nil
}

func (c *OllamaClient) listModels(ctx context.Context) ([]string, error) {
	var list listModelsResponse
	if err := c.getJSON(ctx, "/api/tags", &list); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *OllamaClient) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
