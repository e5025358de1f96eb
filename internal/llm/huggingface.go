package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const huggingFaceBaseURL = "https://api-inference.huggingface.co/models/"

const huggingFaceDefaultModel = "mistralai/Mistral-7B-Instruct-v0.2"

// sseHTTPTimeout bounds a single streaming request end to end.
const sseHTTPTimeout = 10 * time.Minute

// sseHTTPClient is shared by the SSE-backed providers.
var sseHTTPClient = &http.Client{
	Timeout: sseHTTPTimeout,
}

// HuggingFaceProvider streams from the Hugging Face inference API.
// The endpoint is model-scoped and the body is a single "inputs" string;
// deltas arrive as SSE frames carrying token.text.
type HuggingFaceProvider struct {
	apiKey  string
	model   string
	baseURL string // overridden in tests
}

func NewHuggingFaceProvider(apiKey, model string) *HuggingFaceProvider {
	if model == "" {
		model = huggingFaceDefaultModel
	}
	return &HuggingFaceProvider{apiKey: apiKey, model: model, baseURL: huggingFaceBaseURL}
}

func (p *HuggingFaceProvider) Name() string {
	return fmt.Sprintf("Hugging Face (%s)", p.model)
}

func (p *HuggingFaceProvider) Capabilities() Capabilities {
	return Capabilities{}
}

func (p *HuggingFaceProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{
			Provider: "Hugging Face",
			Message:  "API key not set. Please set the HUGGING_FACE_TOKEN environment variable.",
		}
	}

	model := chooseModel(req.Model, p.model)

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		body, err := json.Marshal(map[string]any{
			"inputs": req.Text,
			"stream": true,
			"parameters": map[string]any{
				"max_new_tokens": 1024,
			},
		})
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		resp, err := postSSE(ctx, p.baseURL+model, p.apiKey, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return &APIError{Provider: "Hugging Face", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if err := streamFrames(ctx, resp.Body, sseDelimiter, parseHuggingFaceFrame, events); err != nil {
			return err
		}
		select {
		case events <- Event{Type: EventDone}:
		case <-ctx.Done():
		}
		return nil
	}), nil
}

// parseHuggingFaceFrame extracts token.text from one event payload.
func parseHuggingFaceFrame(data []byte) (string, error) {
	var chunk struct {
		Token struct {
			Text string `json:"text"`
		} `json:"token"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", err
	}
	return chunk.Token.Text, nil
}

// postSSE issues the one POST all SSE providers share.
func postSSE(ctx context.Context, url, apiKey string, body []byte) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")
	return sseHTTPClient.Do(httpReq)
}
