// Package session holds conversation state: an in-memory store of per-persona
// chat sessions, the persisted per-provider snapshot shape, and markdown
// export of a session's message log.
package session

import (
	"sync"

	"github.com/agenthub/agenthub/internal/agents"
	"github.com/agenthub/agenthub/internal/llm"
)

// Message is one entry in a session's message log. Content is mutable while
// a response is streaming; user messages never change after creation.
type Message struct {
	Role      llm.Role  `json:"role"`
	Content   string    `json:"content"`
	ImageURLs []string  `json:"imageUrls,omitempty"`
	Agent     agents.ID `json:"agent,omitempty"`
}

// ChatSession is one conversation thread. Messages is never empty: every
// session starts with its persona's introductory model message.
type ChatSession struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Messages []Message `json:"messages"`
}

// Snapshot is the persisted shape of a store, one record per provider.
type Snapshot struct {
	Sessions         map[agents.ID][]*ChatSession `json:"sessions"`
	ActiveSessionIDs map[agents.ID]string         `json:"activeSessionIds"`
}

// Store keeps per-persona session lists and the active session id for each
// persona. A mutex guards access because the serve surface reads from
// connection goroutines, but only one turn mutates messages at a time.
type Store struct {
	mu       sync.Mutex
	sessions map[agents.ID][]*ChatSession
	active   map[agents.ID]string
	onChange func()
}

// NewStore builds a store with one fresh introductory session per persona.
func NewStore(personas []agents.ID) *Store {
	return FromSnapshot(DefaultSnapshot(personas))
}

// DefaultSnapshot builds the initial state for a provider: one session per
// applicable persona, each holding only the persona's intro message.
func DefaultSnapshot(personas []agents.ID) Snapshot {
	snap := Snapshot{
		Sessions:         make(map[agents.ID][]*ChatSession, len(personas)),
		ActiveSessionIDs: make(map[agents.ID]string, len(personas)),
	}
	for _, persona := range personas {
		sess := newIntroSession(persona)
		snap.Sessions[persona] = []*ChatSession{sess}
		snap.ActiveSessionIDs[persona] = sess.ID
	}
	return snap
}

func newIntroSession(persona agents.ID) *ChatSession {
	return &ChatSession{
		ID:    NewID(),
		Title: llm.DefaultTitle,
		Messages: []Message{{
			Role:    llm.RoleModel,
			Content: agents.Intro(persona),
			Agent:   persona,
		}},
	}
}

// FromSnapshot builds a store from persisted state, healing any invariant
// violations: sessions without messages get their intro back, personas whose
// active id points nowhere fall back to the first session, and personas with
// an empty session list get a fresh default session.
func FromSnapshot(snap Snapshot) *Store {
	s := &Store{
		sessions: make(map[agents.ID][]*ChatSession),
		active:   make(map[agents.ID]string),
	}
	for persona, list := range snap.Sessions {
		kept := make([]*ChatSession, 0, len(list))
		for _, sess := range list {
			if sess == nil {
				continue
			}
			if sess.ID == "" {
				sess.ID = NewID()
			}
			if sess.Title == "" {
				sess.Title = llm.DefaultTitle
			}
			if len(sess.Messages) == 0 {
				sess.Messages = []Message{{
					Role:    llm.RoleModel,
					Content: agents.Intro(persona),
					Agent:   persona,
				}}
			}
			kept = append(kept, sess)
		}
		if len(kept) == 0 {
			kept = []*ChatSession{newIntroSession(persona)}
		}
		s.sessions[persona] = kept

		active := snap.ActiveSessionIDs[persona]
		if s.findLocked(persona, active) == nil {
			active = kept[0].ID
		}
		s.active[persona] = active
	}
	return s
}

// SetOnChange installs a hook invoked after every mutation. The persistence
// bridge uses it for save-on-mutation.
func (s *Store) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// changed invokes the mutation hook. It must be called after s.mu is
// released: the hook snapshots the store and would deadlock under the lock.
func (s *Store) changed() {
	s.mu.Lock()
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (s *Store) findLocked(persona agents.ID, id string) *ChatSession {
	for _, sess := range s.sessions[persona] {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// AppendMessages applies fn to the session's message log atomically.
// It is a no-op returning false if the session does not exist.
func (s *Store) AppendMessages(persona agents.ID, sessionID string, fn func([]Message) []Message) bool {
	s.mu.Lock()
	sess := s.findLocked(persona, sessionID)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Messages = fn(sess.Messages)
	s.mu.Unlock()
	s.changed()
	return true
}

// CreateSession prepends a fresh session for the persona and makes it active.
func (s *Store) CreateSession(persona agents.ID) string {
	s.mu.Lock()
	sess := newIntroSession(persona)
	s.sessions[persona] = append([]*ChatSession{sess}, s.sessions[persona]...)
	s.active[persona] = sess.ID
	s.mu.Unlock()
	s.changed()
	return sess.ID
}

// DeleteSession removes the session. If it was active, the first remaining
// session becomes active; deleting the persona's last session synthesizes a
// fresh default session so a persona never has zero sessions.
func (s *Store) DeleteSession(persona agents.ID, sessionID string) {
	s.mu.Lock()
	list := s.sessions[persona]
	kept := make([]*ChatSession, 0, len(list))
	for _, sess := range list {
		if sess.ID != sessionID {
			kept = append(kept, sess)
		}
	}
	if len(kept) == len(list) {
		s.mu.Unlock()
		return
	}
	if len(kept) == 0 {
		kept = []*ChatSession{newIntroSession(persona)}
	}
	s.sessions[persona] = kept
	if s.active[persona] == sessionID {
		s.active[persona] = kept[0].ID
	}
	s.mu.Unlock()
	s.changed()
}

// SelectSession makes the session active for its persona.
func (s *Store) SelectSession(persona agents.ID, sessionID string) bool {
	s.mu.Lock()
	if s.findLocked(persona, sessionID) == nil {
		s.mu.Unlock()
		return false
	}
	s.active[persona] = sessionID
	s.mu.Unlock()
	s.changed()
	return true
}

// RenameSession sets a new title on the session.
func (s *Store) RenameSession(persona agents.ID, sessionID, title string) bool {
	s.mu.Lock()
	sess := s.findLocked(persona, sessionID)
	if sess == nil {
		s.mu.Unlock()
		return false
	}
	sess.Title = title
	s.mu.Unlock()
	s.changed()
	return true
}

// ActiveID returns the active session id for the persona.
func (s *Store) ActiveID(persona agents.ID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[persona]
}

// ActiveSession returns a deep copy of the persona's active session.
func (s *Store) ActiveSession(persona agents.ID) (ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(persona, s.active[persona])
	if sess == nil {
		return ChatSession{}, false
	}
	return copySession(sess), true
}

// Session returns a deep copy of one session.
func (s *Store) Session(persona agents.ID, sessionID string) (ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.findLocked(persona, sessionID)
	if sess == nil {
		return ChatSession{}, false
	}
	return copySession(sess), true
}

// Sessions returns deep copies of the persona's sessions in display order.
func (s *Store) Sessions(persona agents.ID) []ChatSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatSession, 0, len(s.sessions[persona]))
	for _, sess := range s.sessions[persona] {
		out = append(out, copySession(sess))
	}
	return out
}

// Personas returns every persona present in the store.
func (s *Store) Personas() []agents.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]agents.ID, 0, len(s.sessions))
	for _, persona := range agents.All() {
		if _, ok := s.sessions[persona]; ok {
			out = append(out, persona)
		}
	}
	return out
}

// Snapshot returns a deep copy of the store's state for persistence.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Sessions:         make(map[agents.ID][]*ChatSession, len(s.sessions)),
		ActiveSessionIDs: make(map[agents.ID]string, len(s.active)),
	}
	for persona, list := range s.sessions {
		copied := make([]*ChatSession, len(list))
		for i, sess := range list {
			c := copySession(sess)
			copied[i] = &c
		}
		snap.Sessions[persona] = copied
	}
	for persona, id := range s.active {
		snap.ActiveSessionIDs[persona] = id
	}
	return snap
}

func copySession(sess *ChatSession) ChatSession {
	c := ChatSession{ID: sess.ID, Title: sess.Title}
	c.Messages = make([]Message, len(sess.Messages))
	copy(c.Messages, sess.Messages)
	for i, msg := range sess.Messages {
		if len(msg.ImageURLs) > 0 {
			urls := make([]string, len(msg.ImageURLs))
			copy(urls, msg.ImageURLs)
			c.Messages[i].ImageURLs = urls
		}
	}
	return c
}
