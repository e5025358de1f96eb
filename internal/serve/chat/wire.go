package chat

import (
	"github.com/agenthub/agenthub/internal/session"
)

// WireEvent is the JSON envelope sent server->client.
// Every event has a monotonic Seq per connection.
type WireEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// session_ready / title / sessions
	SessionID string        `json:"session_id,omitempty"`
	Provider  string        `json:"provider,omitempty"`
	Agent     string        `json:"agent,omitempty"`
	History   []HistoryItem `json:"history,omitempty"`

	// state_change
	State string `json:"state,omitempty"`

	// text_delta / error / banner
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`

	// message_done (echoes the turn id from the triggering message)
	TurnID string `json:"turn_id,omitempty"`

	// title
	Title string `json:"title,omitempty"`

	// images
	ImageURLs []string `json:"image_urls,omitempty"`

	// sessions
	Sessions []SessionItem `json:"sessions,omitempty"`

	// export
	Filename string `json:"filename,omitempty"`
	Document string `json:"document,omitempty"`
}

type HistoryItem struct {
	Role      string   `json:"role"`
	Text      string   `json:"text"`
	Agent     string   `json:"agent,omitempty"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

type SessionItem struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// ClientEvent is the JSON envelope sent client->server.
type ClientEvent struct {
	Type string `json:"type"`

	// message
	Text string `json:"text,omitempty"`

	// select_session / delete_session / rename_session
	SessionID string `json:"session_id,omitempty"`
	Title     string `json:"title,omitempty"`

	// switch_provider / switch_agent
	Provider string `json:"provider,omitempty"`
	Agent    string `json:"agent,omitempty"`
}

func historyItems(msgs []session.Message) []HistoryItem {
	items := make([]HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, HistoryItem{
			Role:      string(m.Role),
			Text:      m.Content,
			Agent:     string(m.Agent),
			ImageURLs: m.ImageURLs,
		})
	}
	return items
}
