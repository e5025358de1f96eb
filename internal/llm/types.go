package llm

import (
	"context"
	"fmt"
)

// Role identifies who produced a turn in a conversation.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleError Role = "error"
)

// Turn is one prior exchange handed to a provider as conversation history.
type Turn struct {
	Role Role
	Text string
}

// Request carries everything a provider needs to produce one streamed reply.
type Request struct {
	// SessionID lets stateful providers reuse a server-side chat handle.
	SessionID string
	// Model overrides the provider's configured model when non-empty.
	Model string
	// System is the system instruction for the conversation, if any.
	System string
	// History holds the prior turns, oldest first, excluding Text.
	History []Turn
	// Text is the new user message.
	Text string
}

// EventType discriminates the events a Stream yields.
type EventType int

const (
	// EventTextDelta carries an incremental chunk of model output.
	EventTextDelta EventType = iota
	// EventDone marks the successful end of a reply.
	EventDone
	// EventError carries a mid-stream failure. No further events follow.
	EventError
)

// Event is a single streamed occurrence from a provider.
type Event struct {
	Type EventType
	Text string
	Err  error
}

// Stream yields events for one in-flight reply. Recv blocks until the next
// event is available or the stream is finished, returning io.EOF once all
// events have been delivered. Close releases resources and may be called
// concurrently with Recv.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Capabilities declares which optional features a provider supports.
type Capabilities struct {
	// MultiAgent means the provider honors system instructions per persona.
	MultiAgent bool
	// Images means the provider can generate images.
	Images bool
	// Titles means the provider can summarize a session title.
	Titles bool
}

// Provider is a chat backend that streams replies token by token.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Stream(ctx context.Context, req Request) (Stream, error)
}

// TitleSummarizer produces a short session title from the first user message.
// Implementations return DefaultTitle when summarization fails.
type TitleSummarizer interface {
	SummarizeTitle(ctx context.Context, firstMessage string) string
}

// ImagePayload is one generated image, encoded as a self-contained data URI.
type ImagePayload struct {
	DataURI  string
	MIMEType string
}

// ImageGenerator produces images from a text prompt.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string) ([]ImagePayload, error)
}

// SessionAware providers hold per-session server-side state that must be
// dropped when a session is deleted or the whole snapshot is swapped out.
type SessionAware interface {
	InvalidateSession(sessionID string)
	InvalidateAll()
}

// DefaultTitle is the placeholder title for sessions that have not been
// summarized yet.
const DefaultTitle = "New Chat"

// ConfigError reports a provider that cannot run because of missing or
// invalid local configuration, typically an unset API key.
type ConfigError struct {
	Provider string
	Message  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// APIError reports a non-success HTTP response from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Body)
}
