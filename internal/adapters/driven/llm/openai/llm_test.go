package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docstash-cli/internal/core/domain"
	"github.com/custodia-labs/docstash-cli/internal/core/ports/driven"
)

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewService(Config{
		APIKey:  "test-key",
		BaseURL: server.URL,
		Model:   "gpt-4o-mini",
	})
	require.NoError(t, err)
	return svc, server
}

func TestNewService_RequiresAPIKey(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)
}

func TestComplete_ReturnsContent(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"choices":[{"message":{"content":"a pump manual"}}]}`)
	})

	got, err := svc.Complete(context.Background(), []driven.Message{
		{Role: "user", Text: "describe this"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a pump manual", got)
}

func TestComplete_EmptyContentIsError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"  "}}]}`)
	})

	_, err := svc.Complete(context.Background(), []driven.Message{{Role: "user", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestComplete_APIErrorSurfaces(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit"}}`)
	})

	_, err := svc.Complete(context.Background(), []driven.Message{{Role: "user", Text: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestCompleteStream_AccumulatesChunks(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"The \"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"manual\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})

	var chunks []string
	got, err := svc.CompleteStream(context.Background(), []driven.Message{
		{Role: "user", Text: "summarise"},
	}, func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)
	assert.Equal(t, "The manual", got)
	assert.Equal(t, []string{"The ", "manual"}, chunks)
}

func TestCompleteStream_EmptyStreamIsError(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: [DONE]\n\n")
	})

	_, err := svc.CompleteStream(context.Background(), nil, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyResponse)
}

func TestEncodeMessages_AttachmentsBecomeParts(t *testing.T) {
	messages := []driven.Message{
		{Role: "system", Text: "you describe figures"},
		{
			Role: "user",
			Text: "what is this?",
			Attachments: []driven.Attachment{
				{MIMEType: "image/png", Data: []byte{1, 2, 3}},
				{MIMEType: "application/pdf", Data: []byte("%PDF")},
			},
		},
	}

	encoded := encodeMessages(messages)
	require.Len(t, encoded, 2)

	// Text-only messages stay plain strings.
	assert.Equal(t, "you describe figures", encoded[0].Content)

	parts, ok := encoded[1].Content.([]contentPart)
	require.True(t, ok)
	require.Len(t, parts, 3)
	assert.Equal(t, "text", parts[0].Type)
	assert.Equal(t, "image_url", parts[1].Type)
	assert.Contains(t, parts[1].ImageURL.URL, "data:image/png;base64,")
	assert.Equal(t, "file", parts[2].Type)
	assert.Contains(t, parts[2].File.FileData, "data:application/pdf;base64,")
}

func TestModelSupportsVision(t *testing.T) {
	assert.True(t, modelSupportsVision("gpt-4o"))
	assert.True(t, modelSupportsVision("GPT-4o-mini"))
	assert.True(t, modelSupportsVision("o3-mini"))
	assert.False(t, modelSupportsVision("gpt-3.5-turbo"))
	assert.False(t, modelSupportsVision("davinci"))
}

func TestVisionOverride(t *testing.T) {
	off := false
	svc, err := NewService(Config{APIKey: "k", Model: "gpt-4o", Vision: &off})
	require.NoError(t, err)
	assert.False(t, svc.SupportsVision())

	on := true
	svc, err = NewService(Config{APIKey: "k", Model: "unknown-model", Vision: &on})
	require.NoError(t, err)
	assert.True(t, svc.SupportsVision())
}
