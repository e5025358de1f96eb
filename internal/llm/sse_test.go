package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"testing"
)

// chunkedReader yields the body in fixed-size reads so tests can exercise
// frame splits at arbitrary byte boundaries.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(p) {
		n = len(p)
	}
	if r.pos+n > len(r.data) {
		n = len(r.data) - r.pos
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

func parseTestFrame(data []byte) (string, error) {
	var chunk struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return "", err
	}
	return chunk.Text, nil
}

func collectFrames(t *testing.T, r io.Reader, parse FrameParser) (string, error) {
	t.Helper()
	events := make(chan Event, 256)
	err := streamFrames(context.Background(), r, sseDelimiter, parse, events)
	close(events)
	var b strings.Builder
	for ev := range events {
		if ev.Type == EventTextDelta {
			b.WriteString(ev.Text)
		}
	}
	return b.String(), err
}

func TestStreamFramesChunkingInvariant(t *testing.T) {
	body := "data: {\"text\":\"Hel\"}\n\n" +
		"data: {\"text\":\"lo, \"}\n\n" +
		"data: {\"text\":\"world\"}\n\n" +
		"data: [DONE]\n\n"

	want := "Hello, world"
	for size := 1; size <= len(body); size++ {
		got, err := collectFrames(t, &chunkedReader{data: []byte(body), size: size}, parseTestFrame)
		if err != nil {
			t.Fatalf("chunk size %d: unexpected error: %v", size, err)
		}
		if got != want {
			t.Errorf("chunk size %d: got %q, want %q", size, got, want)
		}
	}
}

func TestStreamFramesSkipsMalformedFrames(t *testing.T) {
	body := "data: {\"text\":\"a\"}\n\n" +
		"data: {not valid json\n\n" +
		"data: {\"text\":\"b\"}\n\n"

	got, err := collectFrames(t, strings.NewReader(body), parseTestFrame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ab" {
		t.Errorf("got %q, want %q", got, "ab")
	}
}

func TestStreamFramesDoneSentinelProducesNoDelta(t *testing.T) {
	body := "data: [DONE]\n\n"
	got, err := collectFrames(t, strings.NewReader(body), parseTestFrame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "" {
		t.Errorf("expected no output for sentinel frame, got %q", got)
	}
}

func TestStreamFramesNeverEmitsIncompleteTrailingFrame(t *testing.T) {
	// The final frame has no terminating blank line; it must be buffered,
	// never emitted.
	body := "data: {\"text\":\"complete\"}\n\n" +
		"data: {\"text\":\"partial\"}"

	got, err := collectFrames(t, strings.NewReader(body), parseTestFrame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "complete" {
		t.Errorf("got %q, want %q", got, "complete")
	}
}

func TestStreamFramesIgnoresNonDataLines(t *testing.T) {
	body := "event: message\ndata: {\"text\":\"x\"}\n\n" +
		": heartbeat\n\n" +
		"data: {\"text\":\"y\"}\n\n"

	got, err := collectFrames(t, strings.NewReader(body), parseTestFrame)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "xy" {
		t.Errorf("got %q, want %q", got, "xy")
	}
}

func TestStreamFramesStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	body := "data: {\"text\":\"a\"}\n\ndata: {\"text\":\"b\"}\n\n"
	events := make(chan Event) // unbuffered so the loop blocks on the first delta

	done := make(chan error, 1)
	go func() {
		done <- streamFrames(ctx, strings.NewReader(body), sseDelimiter, parseTestFrame, events)
	}()

	first := <-events
	if first.Text != "a" {
		t.Fatalf("expected first delta %q, got %q", "a", first.Text)
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("cancellation must terminate silently, got %v", err)
	}
}

func TestStreamFramesPropagatesReadErrors(t *testing.T) {
	r := io.MultiReader(
		strings.NewReader("data: {\"text\":\"a\"}\n\n"),
		&errReader{err: fmt.Errorf("connection reset")},
	)
	got, err := collectFrames(t, r, parseTestFrame)
	if err == nil {
		t.Fatal("expected read error to propagate")
	}
	if got != "a" {
		t.Errorf("deltas before the failure must be kept, got %q", got)
	}
}

type errReader struct{ err error }

func (r *errReader) Read(p []byte) (int, error) { return 0, r.err }
