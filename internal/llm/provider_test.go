package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func drainText(t *testing.T, stream Stream) (string, error) {
	t.Helper()
	var b strings.Builder
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		switch ev.Type {
		case EventTextDelta:
			b.WriteString(ev.Text)
		case EventError:
			return b.String(), ev.Err
		}
	}
}

func TestHuggingFaceProviderMissingKey(t *testing.T) {
	p := NewHuggingFaceProvider("", "")
	_, err := p.Stream(context.Background(), Request{Text: "hi"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cfgErr.Provider != "Hugging Face" {
		t.Errorf("unexpected provider in error: %q", cfgErr.Provider)
	}
}

func TestTogetherProviderMissingKey(t *testing.T) {
	p := NewTogetherProvider("", "")
	_, err := p.Stream(context.Background(), Request{Text: "hi"})
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestHuggingFaceProviderStreamsTokenText(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer hf-token" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"token\":{\"text\":\"Hel\"}}\n\n")
		io.WriteString(w, "data: {\"token\":{\"text\":\"lo\"}}\n\n")
	}))
	defer srv.Close()

	p := NewHuggingFaceProvider("hf-token", "test-model")
	p.baseURL = srv.URL + "/"

	stream, err := p.Stream(context.Background(), Request{Text: "say hello"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	got, err := drainText(t, stream)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != "Hello" {
		t.Errorf("got %q, want %q", got, "Hello")
	}
	if gotBody["inputs"] != "say hello" {
		t.Errorf("request inputs = %v", gotBody["inputs"])
	}
	if gotBody["stream"] != true {
		t.Errorf("request stream = %v", gotBody["stream"])
	}
}

func TestTogetherProviderStreamsDeltaContent(t *testing.T) {
	var gotBody struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Stream    bool `json:"stream"`
		MaxTokens int  `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewTogetherProvider("tg-token", "test-model")
	p.endpoint = srv.URL

	req := Request{
		Text: "continue",
		History: []Turn{
			{Role: RoleModel, Text: "Hi there"},
			{Role: RoleUser, Text: "hello"},
		},
	}
	stream, err := p.Stream(context.Background(), req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	got, err := drainText(t, stream)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if got != "Hello" {
		t.Errorf("got %q, want %q", got, "Hello")
	}

	if gotBody.Model != "test-model" {
		t.Errorf("model = %q", gotBody.Model)
	}
	if !gotBody.Stream || gotBody.MaxTokens != 1024 {
		t.Errorf("stream=%v max_tokens=%d", gotBody.Stream, gotBody.MaxTokens)
	}
	wantRoles := []string{"assistant", "user", "user"}
	if len(gotBody.Messages) != len(wantRoles) {
		t.Fatalf("got %d messages, want %d", len(gotBody.Messages), len(wantRoles))
	}
	for i, role := range wantRoles {
		if gotBody.Messages[i].Role != role {
			t.Errorf("message %d role = %q, want %q", i, gotBody.Messages[i].Role, role)
		}
	}
	if gotBody.Messages[2].Content != "continue" {
		t.Errorf("final message content = %q", gotBody.Messages[2].Content)
	}
}

func TestSSEProviderSurfacesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "invalid token")
	}))
	defer srv.Close()

	p := NewTogetherProvider("bad-token", "")
	p.endpoint = srv.URL

	stream, err := p.Stream(context.Background(), Request{Text: "hi"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	_, err = drainText(t, stream)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
	if apiErr.Body != "invalid token" {
		t.Errorf("body = %q", apiErr.Body)
	}
	if !strings.Contains(apiErr.Error(), "401") || !strings.Contains(apiErr.Error(), "invalid token") {
		t.Errorf("error text must carry status and body: %q", apiErr.Error())
	}
}

func TestSSEProviderCancelKeepsPartialOutput(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-release // hold the stream open until the client aborts
	}))
	defer srv.Close()
	defer close(release)

	p := NewTogetherProvider("tg-token", "")
	p.endpoint = srv.URL

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := p.Stream(ctx, Request{Text: "hi"})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer stream.Close()

	ev, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if ev.Text != "partial" {
		t.Fatalf("first delta = %q", ev.Text)
	}

	cancel()

	// After cancellation the stream must end without surfacing an error
	// event; context.Canceled from Recv is the silent termination signal.
	for {
		ev, err := stream.Recv()
		if err == io.EOF || errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			t.Fatalf("unexpected recv error: %v", err)
		}
		if ev.Type == EventError {
			t.Fatalf("cancellation must not surface an error event: %v", ev.Err)
		}
	}
}
