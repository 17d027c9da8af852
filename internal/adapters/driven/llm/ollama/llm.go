// Package ollama provides a generative service adapter using Ollama.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

// Ensure Service implements the interface.
var _ driven.GenerativeService = (*Service)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 300 * time.Second
)

// visionModels lists model prefixes known to accept image inputs.
var visionModels = []string{
	"llava",
	"llama3.2-vision",
	"bakllava",
	"moondream",
	"minicpm-v",
	"gemma3",
	"qwen2.5vl",
}

// Config holds configuration for the Ollama generative service.
type Config struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the model to use (default: llama3.2).
	Model string

	// Timeout is the request timeout (default: 300s).
	Timeout time.Duration

	// Vision overrides the model-name-based vision capability check.
	Vision *bool
}

// Service produces completions using a local Ollama instance.
type Service struct {
	client  *http.Client
	baseURL string
	model   string
	vision  bool
}

// chatMessage is the Ollama chat message format. Images are base64
// payloads; Ollama has no separate attachment channel for PDFs, so
// non-image attachments are dropped by this adapter.
type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

// chatRequest is the Ollama /api/chat request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

// chatResponse is one Ollama /api/chat response object. Streaming
// responses are a sequence of these, newline-delimited.
type chatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done  bool   `json:"done"`
	Error string `json:"error,omitempty"`
}

// NewService creates a new Ollama generative service.
func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	vision := modelSupportsVision(cfg.Model)
	if cfg.Vision != nil {
		vision = *cfg.Vision
	}

	return &Service{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		vision:  vision,
	}
}

// Complete sends the messages and returns the full text result.
func (s *Service) Complete(ctx context.Context, messages []driven.Message) (string, error) {
	resp, err := s.send(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama status %d: %s", domain.ErrLLMUnavailable, resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != "" {
		return "", fmt.Errorf("%w: ollama: %s", domain.ErrLLMUnavailable, chatResp.Error)
	}
	if strings.TrimSpace(chatResp.Message.Content) == "" {
		return "", fmt.Errorf("%w: ollama returned no content", domain.ErrEmptyResponse)
	}

	return chatResp.Message.Content, nil
}

// CompleteStream sends the messages and forwards incremental chunks to
// onChunk, returning the accumulated text. Ollama streams one JSON
// object per line.
func (s *Service) CompleteStream(ctx context.Context, messages []driven.Message, onChunk func(string)) (string, error) {
	resp, err := s.send(ctx, messages, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: ollama status %d: %s", domain.ErrLLMUnavailable, resp.StatusCode, string(body))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("%w: ollama: %s", domain.ErrLLMUnavailable, chunk.Error)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if onChunk != nil {
				onChunk(chunk.Message.Content)
			}
		}
		if chunk.Done {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: reading stream: %v", domain.ErrLLMUnavailable, err)
	}

	if strings.TrimSpace(full.String()) == "" {
		return "", fmt.Errorf("%w: ollama stream yielded no content", domain.ErrEmptyResponse)
	}
	return full.String(), nil
}

// send marshals and posts a chat request.
func (s *Service) send(ctx context.Context, messages []driven.Message, stream bool) (*http.Response, error) {
	reqBody := chatRequest{
		Model:    s.model,
		Messages: encodeMessages(messages),
		Stream:   stream,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/api/chat",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrLLMUnavailable, err)
	}
	return resp, nil
}

// encodeMessages converts port messages to the wire format.
func encodeMessages(messages []driven.Message) []chatMessage {
	encoded := make([]chatMessage, len(messages))
	for i, msg := range messages {
		m := chatMessage{Role: msg.Role, Content: msg.Text}
		for _, att := range msg.Attachments {
			if strings.HasPrefix(att.MIMEType, "image/") {
				m.Images = append(m.Images, base64.StdEncoding.EncodeToString(att.Data))
			}
		}
		encoded[i] = m
	}
	return encoded
}

// modelSupportsVision checks the model name against the known vision
// model families.
func modelSupportsVision(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range visionModels {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// SupportsVision reports whether the configured model accepts images.
func (s *Service) SupportsVision() bool {
	return s.vision
}

// ModelName returns the name of the model being used.
func (s *Service) ModelName() string {
	return s.model
}

// Close releases resources.
func (s *Service) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
