package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// FrameParser extracts a text delta from one frame's data payload.
// Returning an empty string means the frame carried no text.
type FrameParser func(data []byte) (string, error)

// sseDelimiter separates events in Server-Sent-Events framing.
const sseDelimiter = "\n\n"

// doneSentinel is the literal terminal frame some backends emit.
const doneSentinel = "[DONE]"

// streamFrames reads r, splits it into frames on delim, and forwards every
// extracted text delta to events in arrival order. Incomplete trailing frames
// are buffered across reads and never emitted. Frames that fail to parse are
// logged and skipped; they do not abort the stream. Cancellation of ctx stops
// the loop silently at the next delta or read boundary.
func streamFrames(ctx context.Context, r io.Reader, delim string, parse FrameParser, events chan<- Event) error {
	buf := make([]byte, 4096)
	var pending string
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			pending += string(buf[:n])
			for {
				idx := strings.Index(pending, delim)
				if idx < 0 {
					break
				}
				frame := pending[:idx]
				pending = pending[idx+len(delim):]
				delta := parseFrame(frame, parse)
				if delta == "" {
					continue
				}
				select {
				case <-ctx.Done():
					return nil
				case events <- Event{Type: EventTextDelta, Text: delta}:
				}
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				// Transport abort after cancellation is not an error.
				return nil
			}
			return fmt.Errorf("stream read: %w", err)
		}
	}
}

// parseFrame pulls the text delta out of one complete frame.
func parseFrame(frame string, parse FrameParser) string {
	var out strings.Builder
	for _, line := range strings.Split(frame, "\n") {
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == doneSentinel {
			continue
		}
		delta, err := parse([]byte(payload))
		if err != nil {
			slog.Debug("skipping malformed stream frame", "error", err, "payload", truncate(payload, 200))
			continue
		}
		out.WriteString(delta)
	}
	return out.String()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
