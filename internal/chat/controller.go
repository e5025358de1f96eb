// Package chat orchestrates conversation turns: it routes user input to the
// active provider, streams the reply into the session store, and keeps the
// per-provider snapshots persisted through the sqlite bridge.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/agenthub/agenthub/internal/agents"
	"github.com/agenthub/agenthub/internal/llm"
	"github.com/agenthub/agenthub/internal/session"
)

// ProviderID names a chat backend. The values double as display names and
// as keys for persisted snapshots.
type ProviderID string

const (
	ProviderGemini      ProviderID = "Gemini"
	ProviderHuggingFace ProviderID = "Hugging Face"
	ProviderTogether    ProviderID = "Together.AI"
)

// Providers lists the selectable backends in display order.
func Providers() []ProviderID {
	return []ProviderID{ProviderGemini, ProviderHuggingFace, ProviderTogether}
}

// ValidProvider reports whether id names a known backend.
func ValidProvider(id ProviderID) bool {
	switch id {
	case ProviderGemini, ProviderHuggingFace, ProviderTogether:
		return true
	}
	return false
}

// State is the controller's turn phase. Only one turn is in flight at a
// time; any state other than StateIdle rejects new sends.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
	StateImaging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	case StateImaging:
		return "imaging"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	// ErrBusy is returned when a turn is already in flight.
	ErrBusy = errors.New("a turn is already in progress")
	// ErrEmptyInput is returned for empty or whitespace-only input.
	ErrEmptyInput = errors.New("empty input")
)

const imaginePrefix = "/imagine "

// Listener receives progress callbacks for the surfaces rendering a
// conversation. All callbacks fire synchronously from the turn's goroutine;
// a nil field is skipped.
type Listener struct {
	OnState  func(State)
	OnDelta  func(text string)
	OnBanner func(message string)
	OnTitle  func(sessionID, title string)
	OnImages func(sessionID string, urls []string)
}

// ProviderFactory builds the provider for an id. The controller constructs
// providers lazily, on first use, and caches them until a switch away.
type ProviderFactory func(ctx context.Context, id ProviderID) (llm.Provider, error)

// Options configures a Controller.
type Options struct {
	// Provider is the initially active backend. Defaults to Gemini.
	Provider ProviderID
	// Factory builds providers on demand. Required.
	Factory ProviderFactory
	// Bridge persists per-provider snapshots. Optional; nil disables
	// persistence (state is memory-only).
	Bridge *session.Bridge
	// Listener receives progress callbacks. Optional.
	Listener Listener
}

// Controller is the turn orchestrator. It owns the active provider, the
// active persona, the session store for the current provider, and the
// single-flight turn state.
type Controller struct {
	mu         sync.Mutex
	state      State
	providerID ProviderID
	agent      agents.ID
	store      *session.Store
	banner     string
	cancel     context.CancelFunc

	providers map[ProviderID]llm.Provider
	factory   ProviderFactory
	bridge    *session.Bridge
	listener  Listener

	titleWG sync.WaitGroup
}

// NewController loads the initial provider's snapshot and wires
// save-on-mutation persistence.
func NewController(opts Options) *Controller {
	if opts.Provider == "" {
		opts.Provider = ProviderGemini
	}
	c := &Controller{
		providerID: opts.Provider,
		agent:      agents.Default,
		providers:  make(map[ProviderID]llm.Provider),
		factory:    opts.Factory,
		bridge:     opts.Bridge,
		listener:   opts.Listener,
	}
	c.store = c.loadStore(opts.Provider)
	return c
}

// PersonasFor returns the personas a provider's snapshot covers. Only the
// multi-agent provider carries the full roster.
func PersonasFor(id ProviderID) []agents.ID {
	if id == ProviderGemini {
		return agents.All()
	}
	return []agents.ID{agents.Default}
}

func (c *Controller) loadStore(id ProviderID) *session.Store {
	var store *session.Store
	if c.bridge != nil {
		store = session.FromSnapshot(c.bridge.Load(string(id), PersonasFor(id)))
	} else {
		store = session.NewStore(PersonasFor(id))
	}
	store.SetOnChange(func() { c.persist(id, store) })
	return store
}

func (c *Controller) persist(id ProviderID, store *session.Store) {
	if c.bridge == nil {
		return
	}
	if err := c.bridge.Save(string(id), store.Snapshot()); err != nil {
		slog.Warn("snapshot save failed", "provider", id, "error", err)
	}
}

// SetListener replaces the progress callbacks. It must not be called while
// a turn is in flight.
func (c *Controller) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

// State returns the current turn phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Provider returns the active backend id.
func (c *Controller) Provider() ProviderID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.providerID
}

// Agent returns the active persona.
func (c *Controller) Agent() agents.ID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agent
}

// Banner returns the standing error banner, empty when clear.
func (c *Controller) Banner() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.banner
}

// Store exposes the session store for the active provider. Rendering
// surfaces read it; only the controller mutates it.
func (c *Controller) Store() *session.Store {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store
}

func (c *Controller) setBanner(msg string) {
	c.mu.Lock()
	c.banner = msg
	c.mu.Unlock()
	if msg != "" && c.listener.OnBanner != nil {
		c.listener.OnBanner(msg)
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	if c.listener.OnState != nil {
		c.listener.OnState(s)
	}
}

// ensureProvider builds and caches the provider for the active backend.
// A missing credential surfaces as a standing banner and an error.
func (c *Controller) ensureProvider(ctx context.Context) (llm.Provider, error) {
	c.mu.Lock()
	id := c.providerID
	if p, ok := c.providers[id]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	p, err := c.factory(ctx, id)
	if err != nil {
		c.setBanner(err.Error())
		return nil, err
	}

	c.mu.Lock()
	c.providers[id] = p
	c.mu.Unlock()
	return p, nil
}

// Send runs one turn to completion: it appends the user message and a
// placeholder reply, streams deltas into the placeholder, and kicks off
// title generation after the first exchange of a fresh session. It returns
// ErrBusy while another turn is in flight and ErrEmptyInput for blank text.
func (c *Controller) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	persona := c.agent
	providerID := c.providerID
	store := c.store
	// A missing active session rejects the turn before any state change.
	active, ok := store.ActiveSession(persona)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("no active session for %s", persona)
	}
	c.state = StateSending
	c.banner = ""
	turnCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	if c.listener.OnState != nil {
		c.listener.OnState(StateSending)
	}

	defer func() {
		cancel()
		c.mu.Lock()
		c.cancel = nil
		c.mu.Unlock()
		c.setState(StateIdle)
	}()

	isNewChat := len(active.Messages) == 1

	var err error
	if strings.HasPrefix(strings.ToLower(text), imaginePrefix) {
		err = c.runImageTurn(turnCtx, providerID, persona, store, active.ID, text)
	} else {
		err = c.runTextTurn(turnCtx, providerID, persona, store, active.ID, text)
	}
	if err != nil {
		return err
	}

	if isNewChat {
		c.maybeGenerateTitle(persona, store, active.ID, text)
	}
	return nil
}

// Stop cancels the in-flight turn, if any. The stream loop observes the
// cancellation at the next delta boundary and keeps whatever streamed.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (c *Controller) runTextTurn(ctx context.Context, providerID ProviderID, persona agents.ID, store *session.Store, sessionID, text string) error {
	provider, err := c.ensureProvider(ctx)
	if err != nil {
		return err
	}

	// History is captured before the user message lands so the provider
	// does not see the new text twice.
	active, ok := store.Session(persona, sessionID)
	if !ok {
		return fmt.Errorf("session %s vanished", sessionID)
	}
	history := historyTurns(active.Messages)

	store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
		return append(msgs,
			session.Message{Role: llm.RoleUser, Content: text},
			session.Message{Role: llm.RoleModel, Agent: persona},
		)
	})

	c.setState(StateStreaming)

	req := llm.Request{
		SessionID: sessionID,
		System:    agents.SystemInstruction(persona),
		History:   history,
		Text:      text,
	}
	stream, err := provider.Stream(ctx, req)
	if err != nil {
		c.failTurn(providerID, persona, store, sessionID, err)
		return nil
	}
	defer stream.Close()

	for {
		ev, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.failTurn(providerID, persona, store, sessionID, err)
			return nil
		}
		switch ev.Type {
		case llm.EventTextDelta:
			c.appendDelta(persona, store, sessionID, ev.Text)
		case llm.EventDone:
			return nil
		case llm.EventError:
			if errors.Is(ev.Err, context.Canceled) {
				return nil
			}
			c.failTurn(providerID, persona, store, sessionID, ev.Err)
			return nil
		}
	}
}

// appendDelta grows the trailing placeholder message. Deltas apply strictly
// in arrival order because this is the only writer during a turn.
func (c *Controller) appendDelta(persona agents.ID, store *session.Store, sessionID, delta string) {
	store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
		last := len(msgs) - 1
		if last >= 0 && msgs[last].Role == llm.RoleModel {
			msgs[last].Content += delta
		}
		return msgs
	})
	if c.listener.OnDelta != nil {
		c.listener.OnDelta(delta)
	}
}

// failTurn replaces the placeholder reply with an error-role message and
// raises the banner. Partial content is not preserved past a hard failure;
// only cancellation keeps it.
func (c *Controller) failTurn(providerID ProviderID, persona agents.ID, store *session.Store, sessionID string, cause error) {
	msg := fmt.Sprintf("Sorry, something went wrong with %s: %v", providerID, cause)
	store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
		last := len(msgs) - 1
		if last >= 0 && msgs[last].Role == llm.RoleModel {
			msgs = msgs[:last]
		}
		return append(msgs, session.Message{Role: llm.RoleError, Content: msg})
	})
	c.setBanner(msg)
}

func (c *Controller) runImageTurn(ctx context.Context, providerID ProviderID, persona agents.ID, store *session.Store, sessionID, text string) error {
	prompt := strings.TrimSpace(text[len(imaginePrefix):])

	if providerID != ProviderGemini {
		store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
			return append(msgs,
				session.Message{Role: llm.RoleUser, Content: text},
				session.Message{Role: llm.RoleError, Content: "Image generation is only available with the Gemini provider."},
			)
		})
		return nil
	}
	if prompt == "" {
		c.setBanner("Please provide a prompt for the image.")
		return nil
	}

	provider, err := c.ensureProvider(ctx)
	if err != nil {
		return err
	}
	gen, ok := provider.(llm.ImageGenerator)
	if !ok {
		return fmt.Errorf("%s cannot generate images", providerID)
	}

	c.setState(StateImaging)

	store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
		return append(msgs, session.Message{Role: llm.RoleUser, Content: imaginePrefix + prompt})
	})

	images, err := gen.GenerateImages(ctx, prompt)
	if err != nil {
		msg := fmt.Sprintf("Sorry, something went wrong while generating the image: %v", err)
		store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
			return append(msgs, session.Message{Role: llm.RoleError, Content: msg})
		})
		c.setBanner(msg)
		return nil
	}

	urls := make([]string, len(images))
	for i, img := range images {
		urls[i] = img.DataURI
	}
	store.AppendMessages(persona, sessionID, func(msgs []session.Message) []session.Message {
		return append(msgs, session.Message{
			Role:      llm.RoleModel,
			ImageURLs: urls,
			Agent:     agents.Default,
		})
	})
	if c.listener.OnImages != nil {
		c.listener.OnImages(sessionID, urls)
	}
	return nil
}

// maybeGenerateTitle renames a fresh session off the first user message.
// It runs in the background and never fails the turn; an unsupportive
// provider or a summarizer failure leaves the default title in place.
func (c *Controller) maybeGenerateTitle(persona agents.ID, store *session.Store, sessionID, firstMessage string) {
	c.mu.Lock()
	provider := c.providers[c.providerID]
	c.mu.Unlock()
	if provider == nil || !provider.Capabilities().Titles {
		return
	}
	summ, ok := provider.(llm.TitleSummarizer)
	if !ok {
		return
	}

	c.titleWG.Add(1)
	go func() {
		defer c.titleWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		title := summ.SummarizeTitle(ctx, firstMessage)
		if title == "" || title == llm.DefaultTitle {
			return
		}
		if store.RenameSession(persona, sessionID, title) && c.listener.OnTitle != nil {
			c.listener.OnTitle(sessionID, title)
		}
	}()
}

// SwitchProvider saves the outgoing provider's snapshot, drops any cached
// per-session handles, and loads the incoming provider's snapshot. A missing
// credential for the incoming provider raises the banner but the switch
// still completes.
func (c *Controller) SwitchProvider(ctx context.Context, id ProviderID) error {
	if !ValidProvider(id) {
		return fmt.Errorf("unknown provider %q", id)
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	if id == c.providerID {
		c.mu.Unlock()
		return nil
	}
	outgoingID := c.providerID
	outgoing := c.store
	outgoing.SetOnChange(nil)
	aware, _ := c.providers[outgoingID].(llm.SessionAware)
	c.mu.Unlock()

	c.persist(outgoingID, outgoing)
	if aware != nil {
		aware.InvalidateAll()
	}

	store := c.loadStore(id)

	c.mu.Lock()
	c.providerID = id
	c.store = store
	c.banner = ""
	if id != ProviderGemini {
		c.agent = agents.Default
	}
	c.mu.Unlock()

	// Surface a missing credential immediately rather than on first send.
	if _, err := c.ensureProvider(ctx); err != nil {
		slog.Warn("provider not ready", "provider", id, "error", err)
	}
	return nil
}

// SwitchAgent changes the active persona. Personas other than the default
// are only meaningful under the multi-agent provider.
func (c *Controller) SwitchAgent(id agents.ID) error {
	if !agents.Valid(id) {
		return fmt.Errorf("unknown agent %q", id)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle {
		return ErrBusy
	}
	if c.providerID != ProviderGemini && id != agents.Default {
		return fmt.Errorf("agents are only available with the %s provider", ProviderGemini)
	}
	c.agent = id
	return nil
}

// NewChat starts a fresh session for the active persona and activates it.
func (c *Controller) NewChat() string {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	c.mu.Unlock()
	return store.CreateSession(persona)
}

// SelectSession activates a session of the active persona.
func (c *Controller) SelectSession(sessionID string) error {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	c.mu.Unlock()
	if !store.SelectSession(persona, sessionID) {
		return fmt.Errorf("no session %s", sessionID)
	}
	return nil
}

// DeleteSession removes a session and drops any cached provider handle
// tied to it.
func (c *Controller) DeleteSession(sessionID string) {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	aware, _ := c.providers[c.providerID].(llm.SessionAware)
	c.mu.Unlock()

	store.DeleteSession(persona, sessionID)
	if aware != nil {
		aware.InvalidateSession(sessionID)
	}
}

// RenameSession sets a session's title.
func (c *Controller) RenameSession(sessionID, title string) error {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	c.mu.Unlock()
	if !store.RenameSession(persona, sessionID, title) {
		return fmt.Errorf("no session %s", sessionID)
	}
	return nil
}

// ExportActive renders the active session as markdown and returns the
// document with a derived filename.
func (c *Controller) ExportActive() (doc, filename string, err error) {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	c.mu.Unlock()

	active, ok := store.ActiveSession(persona)
	if !ok {
		return "", "", fmt.Errorf("no active session for %s", persona)
	}
	return session.ExportToMarkdown(&active), session.ExportFilename(active.Title, time.Now()), nil
}

// Sessions lists the active persona's sessions, newest first.
func (c *Controller) Sessions() []session.ChatSession {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	c.mu.Unlock()
	return store.Sessions(persona)
}

// ActiveSession returns the active persona's current session.
func (c *Controller) ActiveSession() (session.ChatSession, bool) {
	c.mu.Lock()
	persona := c.agent
	store := c.store
	c.mu.Unlock()
	return store.ActiveSession(persona)
}

// Close flushes a final snapshot for the active provider.
func (c *Controller) Close() error {
	c.Stop()
	c.titleWG.Wait()

	c.mu.Lock()
	id := c.providerID
	store := c.store
	c.mu.Unlock()
	c.persist(id, store)
	return nil
}

// historyTurns maps a message log to provider history: error messages and
// image-only messages carry no conversational text and are skipped.
func historyTurns(msgs []session.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == llm.RoleError || m.Content == "" {
			continue
		}
		turns = append(turns, llm.Turn{Role: m.Role, Text: m.Content})
	}
	return turns
}
