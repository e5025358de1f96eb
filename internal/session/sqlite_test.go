package session

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/agenthub/agenthub/internal/agents"
	"github.com/agenthub/agenthub/internal/llm"
)

func testBridge(t *testing.T) *Bridge {
	t.Helper()
	b, err := NewBridge(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatalf("NewBridge: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBridgeRoundTrip(t *testing.T) {
	b := testBridge(t)

	snap := DefaultSnapshot(agents.All())
	snap.Sessions[agents.Default][0].Title = "Weather App Design"
	snap.Sessions[agents.Default][0].Messages = append(snap.Sessions[agents.Default][0].Messages,
		Message{Role: llm.RoleUser, Content: "hi"},
		Message{Role: llm.RoleModel, Content: "hello", Agent: agents.Default},
	)

	if err := b.Save("Gemini", snap); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := b.Load("Gemini", agents.All())
	if !reflect.DeepEqual(got, snap) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, snap)
	}
}

func TestBridgeKeysByProvider(t *testing.T) {
	b := testBridge(t)

	gemini := DefaultSnapshot(agents.All())
	gemini.Sessions[agents.Default][0].Title = "gemini chat"
	together := DefaultSnapshot([]agents.ID{agents.Default})
	together.Sessions[agents.Default][0].Title = "together chat"

	if err := b.Save("Gemini", gemini); err != nil {
		t.Fatal(err)
	}
	if err := b.Save("Together.AI", together); err != nil {
		t.Fatal(err)
	}

	if got := b.Load("Gemini", agents.All()); got.Sessions[agents.Default][0].Title != "gemini chat" {
		t.Errorf("Gemini snapshot title = %q", got.Sessions[agents.Default][0].Title)
	}
	if got := b.Load("Together.AI", []agents.ID{agents.Default}); got.Sessions[agents.Default][0].Title != "together chat" {
		t.Errorf("Together snapshot title = %q", got.Sessions[agents.Default][0].Title)
	}

	providers, err := b.Providers()
	if err != nil {
		t.Fatal(err)
	}
	if len(providers) != 2 {
		t.Errorf("providers = %v", providers)
	}
}

func TestBridgeLoadMissingReturnsDefault(t *testing.T) {
	b := testBridge(t)

	got := b.Load("Hugging Face", []agents.ID{agents.Default})
	want := DefaultSnapshot([]agents.ID{agents.Default})
	if len(got.Sessions[agents.Default]) != 1 {
		t.Fatalf("expected 1 seeded session, got %d", len(got.Sessions[agents.Default]))
	}
	if got.Sessions[agents.Default][0].Messages[0].Content != want.Sessions[agents.Default][0].Messages[0].Content {
		t.Error("missing snapshot must seed the persona intro")
	}
}

func TestBridgeLoadCorruptRecordReturnsDefault(t *testing.T) {
	b := testBridge(t)

	_, err := b.db.Exec(
		`INSERT INTO snapshots (provider, data, updated_at) VALUES (?, ?, datetime('now'))`,
		"Gemini", "{not json",
	)
	if err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}

	got := b.Load("Gemini", []agents.ID{agents.Default})
	if len(got.Sessions[agents.Default]) != 1 {
		t.Error("corrupt snapshot must fall back to the default state")
	}
	if got.ActiveSessionIDs[agents.Default] == "" {
		t.Error("fallback snapshot must have an active session per persona")
	}
}

func TestBridgeSaveOverwrites(t *testing.T) {
	b := testBridge(t)

	snap := DefaultSnapshot([]agents.ID{agents.Default})
	if err := b.Save("Gemini", snap); err != nil {
		t.Fatal(err)
	}
	snap.Sessions[agents.Default][0].Title = "renamed"
	if err := b.Save("Gemini", snap); err != nil {
		t.Fatal(err)
	}

	got := b.Load("Gemini", []agents.ID{agents.Default})
	if got.Sessions[agents.Default][0].Title != "renamed" {
		t.Errorf("title = %q, want %q", got.Sessions[agents.Default][0].Title, "renamed")
	}
}

func TestBridgeDelete(t *testing.T) {
	b := testBridge(t)

	if err := b.Save("Gemini", DefaultSnapshot([]agents.ID{agents.Default})); err != nil {
		t.Fatal(err)
	}
	if err := b.Delete("Gemini"); err != nil {
		t.Fatal(err)
	}
	providers, err := b.Providers()
	if err != nil {
		t.Fatal(err)
	}
	if len(providers) != 0 {
		t.Errorf("providers after delete = %v", providers)
	}
}

func TestDefaultDBPathHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)

	path, err := DefaultDBPath()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "agenthub", "snapshots.db")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}
