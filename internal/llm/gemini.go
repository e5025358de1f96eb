package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const geminiDefaultModel = "gemini-2.5-flash"

// geminiImageModel is the one-shot image generation model.
const geminiImageModel = "imagen-3.0-generate-002"

// GeminiProvider is the stateful conversational backend. Chat handles are
// cached per session id so conversational context is preserved across turns
// without resending full history; the cache is invalidated per id on session
// deletion and wholesale on provider switch.
type GeminiProvider struct {
	client *genai.Client
	model  string

	mu    sync.Mutex
	chats map[string]*genai.Chat
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, &ConfigError{
			Provider: "Gemini",
			Message:  "API key not set. Please set the GEMINI_API_KEY environment variable.",
		}
	}
	if model == "" {
		model = geminiDefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  model,
		chats:  make(map[string]*genai.Chat),
	}, nil
}

func (p *GeminiProvider) Name() string {
	return fmt.Sprintf("Gemini (%s)", p.model)
}

func (p *GeminiProvider) Capabilities() Capabilities {
	return Capabilities{MultiAgent: true, Images: true, Titles: true}
}

// getOrCreateChat returns the cached chat handle for a session, creating one
// seeded with the persona instruction and prior history on first use.
func (p *GeminiProvider) getOrCreateChat(ctx context.Context, req Request) (*genai.Chat, error) {
	p.mu.Lock()
	chat, ok := p.chats[req.SessionID]
	p.mu.Unlock()
	if ok {
		return chat, nil
	}

	var history []*genai.Content
	for _, turn := range req.History {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		var role genai.Role = genai.RoleModel
		if turn.Role == RoleUser {
			role = genai.RoleUser
		}
		history = append(history, genai.NewContentFromText(turn.Text, role))
	}

	var cfg *genai.GenerateContentConfig
	if req.System != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		}
	}

	model := chooseModel(req.Model, p.model)
	chat, err := p.client.Chats.Create(ctx, model, cfg, history)
	if err != nil {
		return nil, fmt.Errorf("create chat session: %w", err)
	}

	p.mu.Lock()
	p.chats[req.SessionID] = chat
	p.mu.Unlock()
	return chat, nil
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	chat, err := p.getOrCreateChat(ctx, req)
	if err != nil {
		return nil, err
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		for resp, err := range chat.SendMessageStream(ctx, genai.Part{Text: req.Text}) {
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("send message: %w", err)
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return nil
			case events <- Event{Type: EventTextDelta, Text: text}:
			}
		}
		select {
		case events <- Event{Type: EventDone}:
		case <-ctx.Done():
		}
		return nil
	}), nil
}

// InvalidateSession drops the cached chat handle for one session.
func (p *GeminiProvider) InvalidateSession(sessionID string) {
	p.mu.Lock()
	delete(p.chats, sessionID)
	p.mu.Unlock()
}

// InvalidateAll drops every cached chat handle.
func (p *GeminiProvider) InvalidateAll() {
	p.mu.Lock()
	p.chats = make(map[string]*genai.Chat)
	p.mu.Unlock()
}

// SummarizeTitle asks for a short conversation title based on the first user
// message. Any failure falls back to DefaultTitle.
func (p *GeminiProvider) SummarizeTitle(ctx context.Context, firstMessage string) string {
	prompt := fmt.Sprintf("Generate a concise, 4-word or less title for a conversation that starts with this user message: %q\n\nDo not include any quotation marks in the title.", firstMessage)
	temp := float32(0.2)
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: &temp,
	})
	if err != nil {
		slog.Warn("title generation failed", "error", err)
		return DefaultTitle
	}
	title := strings.TrimSpace(strings.NewReplacer(`"`, "", "*", "").Replace(resp.Text()))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// GenerateImages runs a one-shot image generation and returns the images as
// data URIs ready for embedding in a message.
func (p *GeminiProvider) GenerateImages(ctx context.Context, prompt string) ([]ImagePayload, error) {
	resp, err := p.client.Models.GenerateImages(ctx, geminiImageModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: "image/jpeg",
		AspectRatio:    "1:1",
	})
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}

	payloads := make([]ImagePayload, 0, len(resp.GeneratedImages))
	for _, img := range resp.GeneratedImages {
		if img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		mime := img.Image.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		payloads = append(payloads, ImagePayload{
			DataURI:  "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Image.ImageBytes),
			MIMEType: mime,
		})
	}
	if len(payloads) == 0 {
		return nil, fmt.Errorf("no images returned")
	}
	return payloads, nil
}
