// Package chat exposes a turn controller over a WebSocket so remote
// frontends can drive conversations.
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/agenthub/agenthub/internal/agents"
	appchat "github.com/agenthub/agenthub/internal/chat"
	"github.com/agenthub/agenthub/internal/config"
)

// ControllerFactory builds a fresh controller for each connection. Every
// connection behaves like an independent app instance; they share durable
// state only through the snapshot database.
type ControllerFactory func(ctx context.Context) (*appchat.Controller, error)

// Server accepts WebSocket chat connections.
type Server struct {
	cfg     config.ServeConfig
	factory ControllerFactory
}

func NewServer(cfg config.ServeConfig, factory ControllerFactory) *Server {
	return &Server{cfg: cfg, factory: factory}
}

// HTTPHandler returns the handler for the chat endpoints.
func (s *Server) HTTPHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.auth(s.handleChat))
	return mux
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	rawConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ctrl, err := s.factory(r.Context())
	if err != nil {
		_ = rawConn.Close()
		return
	}
	defer ctrl.Close()

	conn := &wsConn{conn: rawConn, nextSeq: 1}
	defer conn.close()

	wireListener(ctrl, conn)
	sendSessionReady(ctrl, conn)
	runConnLoop(ctrl, conn)
}

// wsConn serializes writes and stamps each event with a sequence number.
type wsConn struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	nextSeq int64
}

func (c *wsConn) write(ev WireEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev.Seq = c.nextSeq
	c.nextSeq++
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.Close()
}

func wireListener(ctrl *appchat.Controller, conn *wsConn) {
	ctrl.SetListener(appchat.Listener{
		OnState: func(st appchat.State) {
			conn.write(WireEvent{Type: "state_change", State: st.String()})
		},
		OnDelta: func(text string) {
			conn.write(WireEvent{Type: "text_delta", Text: text})
		},
		OnBanner: func(message string) {
			conn.write(WireEvent{Type: "error", Message: message})
		},
		OnTitle: func(sessionID, title string) {
			conn.write(WireEvent{Type: "title", SessionID: sessionID, Title: title})
		},
		OnImages: func(sessionID string, urls []string) {
			conn.write(WireEvent{Type: "images", SessionID: sessionID, ImageURLs: urls})
		},
	})
}

func sendSessionReady(ctrl *appchat.Controller, conn *wsConn) {
	active, ok := ctrl.ActiveSession()
	if !ok {
		return
	}
	conn.write(WireEvent{
		Type:      "session_ready",
		SessionID: active.ID,
		Provider:  string(ctrl.Provider()),
		Agent:     string(ctrl.Agent()),
		History:   historyItems(active.Messages),
	})
}

func runConnLoop(ctrl *appchat.Controller, conn *wsConn) {
	readCh := make(chan ClientEvent)
	go func() {
		defer close(readCh)
		for {
			var ev ClientEvent
			if err := conn.conn.ReadJSON(&ev); err != nil {
				return
			}
			readCh <- ev
		}
	}()

	for ev := range readCh {
		switch ev.Type {
		case "message":
			if strings.TrimSpace(ev.Text) == "" {
				continue
			}
			turnID := uuid.NewString()
			go func(text string) {
				if err := ctrl.Send(context.Background(), text); err != nil {
					conn.write(WireEvent{Type: "error", TurnID: turnID, Message: err.Error()})
					return
				}
				conn.write(WireEvent{Type: "message_done", TurnID: turnID})
			}(ev.Text)
		case "interrupt":
			ctrl.Stop()
		case "new_chat":
			ctrl.NewChat()
			sendSessionReady(ctrl, conn)
		case "select_session":
			if err := ctrl.SelectSession(ev.SessionID); err != nil {
				conn.write(WireEvent{Type: "error", Message: err.Error()})
				continue
			}
			sendSessionReady(ctrl, conn)
		case "delete_session":
			ctrl.DeleteSession(ev.SessionID)
			sendSessionReady(ctrl, conn)
		case "rename_session":
			if err := ctrl.RenameSession(ev.SessionID, ev.Title); err != nil {
				conn.write(WireEvent{Type: "error", Message: err.Error()})
			}
		case "switch_provider":
			if err := ctrl.SwitchProvider(context.Background(), appchat.ProviderID(ev.Provider)); err != nil {
				conn.write(WireEvent{Type: "error", Message: err.Error()})
				continue
			}
			sendSessionReady(ctrl, conn)
		case "switch_agent":
			if err := ctrl.SwitchAgent(agents.ID(ev.Agent)); err != nil {
				conn.write(WireEvent{Type: "error", Message: err.Error()})
				continue
			}
			sendSessionReady(ctrl, conn)
		case "list_sessions":
			conn.write(WireEvent{Type: "sessions", Sessions: sessionItems(ctrl)})
		case "export":
			doc, filename, err := ctrl.ExportActive()
			if err != nil {
				conn.write(WireEvent{Type: "error", Message: err.Error()})
				continue
			}
			conn.write(WireEvent{Type: "export", Filename: filename, Document: doc})
		}
	}
}

func sessionItems(ctrl *appchat.Controller) []SessionItem {
	var activeID string
	if active, ok := ctrl.ActiveSession(); ok {
		activeID = active.ID
	}
	list := ctrl.Sessions()
	items := make([]SessionItem, 0, len(list))
	for _, s := range list {
		items = append(items, SessionItem{ID: s.ID, Title: s.Title, Active: s.ID == activeID})
	}
	return items
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.HTTPHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) authorized(r *http.Request) bool {
	token := strings.TrimSpace(s.cfg.Token)
	if token == "" {
		return true
	}
	value := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return false
	}
	return strings.TrimSpace(strings.TrimPrefix(value, prefix)) == token
}
