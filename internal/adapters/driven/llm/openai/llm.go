// Package openai provides a generative service adapter using the
// OpenAI chat completions API.
package openai

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
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 300 * time.Second
)

// visionModels lists model prefixes known to accept image inputs.
var visionModels = []string{
	"gpt-4o",
	"gpt-4.1",
	"gpt-5",
	"o3",
	"o4",
}

// Config holds configuration for the OpenAI generative service.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for compatible APIs.
	BaseURL string

	// Model is the model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 300s).
	Timeout time.Duration

	// Vision overrides the model-name-based vision capability check.
	// Useful for compatible APIs serving models the table doesn't know.
	Vision *bool
}

// Service produces completions using the OpenAI API.
type Service struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	vision  bool
}

// contentPart is one element of a multimodal message content array.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	File     *filePart `json:"file,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

// chatMessage is the OpenAI chat message format. Content is a plain
// string for text-only messages and a part array otherwise.
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// chatRequest is the /chat/completions request format.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
}

// chatResponse is the non-streaming /chat/completions response format.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// streamChunk is one SSE data event of a streaming response.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// NewService creates a new OpenAI generative service.
func NewService(cfg Config) (*Service, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
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
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		vision:  vision,
	}, nil
}

// Complete sends the messages and returns the full text result.
func (s *Service) Complete(ctx context.Context, messages []driven.Message) (string, error) {
	resp, err := s.send(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: openai: %s", domain.ErrLLMUnavailable, chatResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: openai status %d: %s", domain.ErrLLMUnavailable, resp.StatusCode, string(body))
	}
	if len(chatResp.Choices) == 0 || strings.TrimSpace(chatResp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%w: openai returned no content", domain.ErrEmptyResponse)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// CompleteStream sends the messages and forwards incremental chunks to
// onChunk, returning the accumulated text.
func (s *Service) CompleteStream(ctx context.Context, messages []driven.Message, onChunk func(string)) (string, error) {
	resp, err := s.send(ctx, messages, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: openai status %d: %s", domain.ErrLLMUnavailable, resp.StatusCode, string(body))
	}

	var full strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			full.WriteString(delta)
			if onChunk != nil {
				onChunk(delta)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("%w: reading stream: %v", domain.ErrLLMUnavailable, err)
	}

	if strings.TrimSpace(full.String()) == "" {
		return "", fmt.Errorf("%w: openai stream yielded no content", domain.ErrEmptyResponse)
	}
	return full.String(), nil
}

// send marshals and posts a chat completion request.
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
		s.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", domain.ErrLLMUnavailable, err)
	}
	return resp, nil
}

// encodeMessages converts port messages to the wire format. Messages
// without attachments stay plain strings; attachments become data-URL
// image parts or inline file parts.
func encodeMessages(messages []driven.Message) []chatMessage {
	encoded := make([]chatMessage, len(messages))
	for i, msg := range messages {
		if len(msg.Attachments) == 0 {
			encoded[i] = chatMessage{Role: msg.Role, Content: msg.Text}
			continue
		}

		parts := []contentPart{{Type: "text", Text: msg.Text}}
		for _, att := range msg.Attachments {
			parts = append(parts, encodeAttachment(att))
		}
		encoded[i] = chatMessage{Role: msg.Role, Content: parts}
	}
	return encoded
}

func encodeAttachment(att driven.Attachment) contentPart {
	dataURL := fmt.Sprintf("data:%s;base64,%s",
		att.MIMEType, base64.StdEncoding.EncodeToString(att.Data))

	if strings.HasPrefix(att.MIMEType, "image/") {
		return contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: dataURL},
		}
	}
	return contentPart{
		Type: "file",
		File: &filePart{
			Filename: "attachment.pdf",
			FileData: dataURL,
		},
	}
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
