package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn represents a single response turn from the mock provider.
type MockTurn struct {
	Text   string        // Text to emit (chunked for realistic streaming)
	Chunks []string      // Exact chunks to emit, overrides Text when set
	Delay  time.Duration // Optional delay before responding
	Error  error         // Return this error instead of responding
}

// MockProvider is a configurable provider for testing.
// It returns scripted responses and records all requests for verification.
type MockProvider struct {
	name         string
	capabilities Capabilities
	turns        []MockTurn
	turnIndex    int
	Requests     []Request // Recorded requests for verification
	mu           sync.Mutex

	Title       string // SummarizeTitle result; DefaultTitle when empty
	Images      []ImagePayload
	ImageErr    error
	Invalidated []string // Session ids passed to InvalidateSession
	Cleared     int      // InvalidateAll call count
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Capabilities() Capabilities {
	return m.capabilities
}

// WithCapabilities sets the provider capabilities and returns the provider for chaining.
func (m *MockProvider) WithCapabilities(c Capabilities) *MockProvider {
	m.capabilities = c
	return m
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text response.
func (m *MockProvider) AddTextResponse(text string) *MockProvider {
	return m.AddTurn(MockTurn{Text: text})
}

// AddError adds a turn that returns an error.
func (m *MockProvider) AddError(err error) *MockProvider {
	return m.AddTurn(MockTurn{Error: err})
}

// Reset clears recorded requests and resets the turn index.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnIndex = 0
	m.Requests = nil
}

// Stream implements the Provider interface.
func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)

	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}

	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	return newEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
		if turn.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(turn.Delay):
			}
		}

		if turn.Error != nil {
			return turn.Error
		}

		chunks := turn.Chunks
		if chunks == nil && turn.Text != "" {
			chunks = chunkText(turn.Text, 10)
		}
		for _, chunk := range chunks {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ch <- Event{Type: EventTextDelta, Text: chunk}:
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ch <- Event{Type: EventDone}:
		}
		return nil
	}), nil
}

// SummarizeTitle implements TitleSummarizer.
func (m *MockProvider) SummarizeTitle(ctx context.Context, firstMessage string) string {
	if m.Title == "" {
		return DefaultTitle
	}
	return m.Title
}

// GenerateImages implements ImageGenerator.
func (m *MockProvider) GenerateImages(ctx context.Context, prompt string) ([]ImagePayload, error) {
	if m.ImageErr != nil {
		return nil, m.ImageErr
	}
	return m.Images, nil
}

// InvalidateSession implements SessionAware.
func (m *MockProvider) InvalidateSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invalidated = append(m.Invalidated, sessionID)
}

// InvalidateAll implements SessionAware.
func (m *MockProvider) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Cleared++
}

// chunkText splits text into chunks of approximately the given size.
// It tries to break at word boundaries when possible.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			chunks = append(chunks, text)
			break
		}

		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1 // include the space in current chunk
				break
			}
		}

		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return chunks
}
