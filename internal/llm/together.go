package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const togetherChatURL = "https://api.together.xyz/v1/chat/completions"

const togetherDefaultModel = "mistralai/Mixtral-8x7B-Instruct-v0.1"

// TogetherProvider streams from the Together chat completions API.
// The body is an OpenAI-style message list; deltas arrive as SSE frames
// carrying choices[0].delta.content, terminated by a [DONE] sentinel.
type TogetherProvider struct {
	apiKey   string
	model    string
	endpoint string // overridden in tests
}

func NewTogetherProvider(apiKey, model string) *TogetherProvider {
	if model == "" {
		model = togetherDefaultModel
	}
	return &TogetherProvider{apiKey: apiKey, model: model, endpoint: togetherChatURL}
}

func (p *TogetherProvider) Name() string {
	return fmt.Sprintf("Together.AI (%s)", p.model)
}

func (p *TogetherProvider) Capabilities() Capabilities {
	return Capabilities{}
}

func (p *TogetherProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	if p.apiKey == "" {
		return nil, &ConfigError{
			Provider: "Together.AI",
			Message:  "API key not set. Please set the TOGETHER_API_KEY environment variable.",
		}
	}

	model := chooseModel(req.Model, p.model)

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		messages := make([]map[string]string, 0, len(req.History)+1)
		for _, turn := range req.History {
			role := "assistant"
			if turn.Role == RoleUser {
				role = "user"
			}
			messages = append(messages, map[string]string{"role": role, "content": turn.Text})
		}
		messages = append(messages, map[string]string{"role": "user", "content": req.Text})

		body, err := json.Marshal(map[string]any{
			"model":      model,
			"messages":   messages,
			"stream":     true,
			"max_tokens": 1024,
		})
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}

		resp, err := postSSE(ctx, p.endpoint, p.apiKey, body)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return &APIError{Provider: "Together.AI", StatusCode: resp.StatusCode, Body: string(respBody)}
		}

		if err := streamFrames(ctx, resp.Body, sseDelimiter, parseTogetherFrame, events); err != nil {
			return err
		}
		select {
		case events <- Event{Type: EventDone}:
		case <-ctx.Done():
		}
		return nil
	}), nil
}

// parseTogetherFrame extracts choices[0].delta.content from one event payload.
func parseTogetherFrame(data []byte) (string, error) {
	var chunk struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", err
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
