package session

import (
	"testing"

	"github.com/agenthub/agenthub/internal/agents"
	"github.com/agenthub/agenthub/internal/llm"
)

func TestNewStoreSeedsIntroSessions(t *testing.T) {
	store := NewStore(agents.All())

	for _, persona := range agents.All() {
		sess, ok := store.ActiveSession(persona)
		if !ok {
			t.Fatalf("persona %s has no active session", persona)
		}
		if len(sess.Messages) != 1 {
			t.Fatalf("persona %s: expected 1 intro message, got %d", persona, len(sess.Messages))
		}
		if sess.Messages[0].Role != llm.RoleModel {
			t.Errorf("persona %s: intro role = %s", persona, sess.Messages[0].Role)
		}
		if sess.Messages[0].Content != agents.Intro(persona) {
			t.Errorf("persona %s: wrong intro message", persona)
		}
		if sess.Title != llm.DefaultTitle {
			t.Errorf("persona %s: title = %q", persona, sess.Title)
		}
	}
}

func TestCreateSessionPrependsAndActivates(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	first := store.ActiveID(agents.Default)

	id := store.CreateSession(agents.Default)
	if store.ActiveID(agents.Default) != id {
		t.Error("new session must become active")
	}

	list := store.Sessions(agents.Default)
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != id || list[1].ID != first {
		t.Error("new session must be prepended")
	}
}

func TestDeleteActiveSessionActivatesFirstRemaining(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	old := store.ActiveID(agents.Default)
	newer := store.CreateSession(agents.Default)

	store.DeleteSession(agents.Default, newer)

	if store.ActiveID(agents.Default) != old {
		t.Error("first remaining session must become active")
	}
	if len(store.Sessions(agents.Default)) != 1 {
		t.Errorf("expected 1 session, got %d", len(store.Sessions(agents.Default)))
	}
}

func TestDeleteLastSessionSynthesizesFreshOne(t *testing.T) {
	store := NewStore([]agents.ID{agents.Summarizer})
	only := store.ActiveID(agents.Summarizer)

	store.DeleteSession(agents.Summarizer, only)

	list := store.Sessions(agents.Summarizer)
	if len(list) != 1 {
		t.Fatalf("expected exactly 1 synthesized session, got %d", len(list))
	}
	if list[0].ID == only {
		t.Error("synthesized session must be fresh")
	}
	if store.ActiveID(agents.Summarizer) != list[0].ID {
		t.Error("synthesized session must be active")
	}
	if len(list[0].Messages) != 1 || list[0].Messages[0].Content != agents.Intro(agents.Summarizer) {
		t.Error("synthesized session must carry the persona intro message")
	}
}

func TestDeleteNonActiveSessionKeepsActive(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	old := store.ActiveID(agents.Default)
	newer := store.CreateSession(agents.Default)

	store.DeleteSession(agents.Default, old)

	if store.ActiveID(agents.Default) != newer {
		t.Error("deleting a non-active session must not change the active id")
	}
}

func TestAppendMessagesNoOpOnMissingSession(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	called := false
	ok := store.AppendMessages(agents.Default, "no-such-id", func(msgs []Message) []Message {
		called = true
		return msgs
	})
	if ok || called {
		t.Error("append to a missing session must be a no-op")
	}
}

func TestAppendMessagesMutatesLatestState(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	id := store.ActiveID(agents.Default)

	store.AppendMessages(agents.Default, id, func(msgs []Message) []Message {
		return append(msgs, Message{Role: llm.RoleUser, Content: "hi"}, Message{Role: llm.RoleModel})
	})
	for _, delta := range []string{"a", "b", "c"} {
		store.AppendMessages(agents.Default, id, func(msgs []Message) []Message {
			last := &msgs[len(msgs)-1]
			if last.Role == llm.RoleModel {
				last.Content += delta
			}
			return msgs
		})
	}

	sess, _ := store.ActiveSession(agents.Default)
	got := sess.Messages[len(sess.Messages)-1].Content
	if got != "abc" {
		t.Errorf("streamed content = %q, want %q", got, "abc")
	}
}

func TestSelectAndRenameSession(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	old := store.ActiveID(agents.Default)
	store.CreateSession(agents.Default)

	if !store.SelectSession(agents.Default, old) {
		t.Fatal("select existing session failed")
	}
	if store.ActiveID(agents.Default) != old {
		t.Error("select did not change active id")
	}
	if store.SelectSession(agents.Default, "no-such-id") {
		t.Error("select of a missing session must fail")
	}

	if !store.RenameSession(agents.Default, old, "Weather App Design") {
		t.Fatal("rename failed")
	}
	sess, _ := store.Session(agents.Default, old)
	if sess.Title != "Weather App Design" {
		t.Errorf("title = %q", sess.Title)
	}
}

func TestFromSnapshotHealsInvariants(t *testing.T) {
	snap := Snapshot{
		Sessions: map[agents.ID][]*ChatSession{
			agents.Default: {
				{ID: "s1", Title: "One", Messages: []Message{{Role: llm.RoleModel, Content: "hi"}}},
				{ID: "s2", Title: "Empty"}, // no messages: must be healed
			},
			agents.Summarizer: {}, // empty list: must be synthesized
		},
		ActiveSessionIDs: map[agents.ID]string{
			agents.Default: "gone", // dangling: must fall back to first
		},
	}

	store := FromSnapshot(snap)

	if store.ActiveID(agents.Default) != "s1" {
		t.Errorf("dangling active id must heal to first session, got %q", store.ActiveID(agents.Default))
	}
	s2, _ := store.Session(agents.Default, "s2")
	if len(s2.Messages) == 0 {
		t.Error("session without messages must get its intro back")
	}
	if _, ok := store.ActiveSession(agents.Summarizer); !ok {
		t.Error("persona with empty session list must get a synthesized session")
	}
}

func TestOnChangeFiresOnEveryMutation(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	var count int
	store.SetOnChange(func() {
		count++
		// The hook must be able to snapshot without deadlocking.
		_ = store.Snapshot()
	})

	id := store.CreateSession(agents.Default)
	store.AppendMessages(agents.Default, id, func(m []Message) []Message { return m })
	store.RenameSession(agents.Default, id, "t")
	store.SelectSession(agents.Default, id)
	store.DeleteSession(agents.Default, id)

	if count != 5 {
		t.Errorf("expected 5 change notifications, got %d", count)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	store := NewStore([]agents.ID{agents.Default})
	id := store.ActiveID(agents.Default)

	snap := store.Snapshot()
	snap.Sessions[agents.Default][0].Messages[0].Content = "mutated"

	sess, _ := store.Session(agents.Default, id)
	if sess.Messages[0].Content == "mutated" {
		t.Error("snapshot must not alias store state")
	}
}
