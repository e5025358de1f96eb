package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/agenthub/agenthub/internal/llm"
)

// ExportToMarkdown flattens a session's message log to a markdown document:
// one heading per message, sections separated by a horizontal rule, image
// messages rendered as embedded image references.
func ExportToMarkdown(sess *ChatSession) string {
	var b strings.Builder

	title := sess.Title
	if title == "" {
		title = ShortID(sess.ID)
	}
	b.WriteString(fmt.Sprintf("# %s\n\n", title))

	for i, msg := range sess.Messages {
		if i > 0 {
			b.WriteString("---\n\n")
		}
		b.WriteString(fmt.Sprintf("### %s\n\n", exportHeading(msg)))
		if msg.Content != "" {
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		}
		for j, url := range msg.ImageURLs {
			b.WriteString(fmt.Sprintf("![Generated image %d](%s)\n\n", j+1, url))
		}
	}

	return b.String()
}

func exportHeading(msg Message) string {
	switch msg.Role {
	case llm.RoleUser:
		return "User"
	case llm.RoleError:
		return "Error"
	default:
		if msg.Agent != "" {
			return string(msg.Agent)
		}
		return "Model"
	}
}

// ExportFilename derives a download filename from the session title and a
// timestamp, e.g. "weather-app-design-20240115-143052.md".
func ExportFilename(title string, now time.Time) string {
	slug := slugify(title)
	if slug == "" {
		slug = "chat"
	}
	return fmt.Sprintf("%s-%s.md", slug, now.Format("20060102-150405"))
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
