package notify

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// TelegramLimit is the maximum message length accepted by sendMessage, in UTF-16 code units.
const TelegramLimit = 4096

// Message is one run outcome to deliver.
type Message struct {
	MonitorName      string
	Summary          string
	HasOpportunities bool
	Link             string
}

// Markdown renders the message in Telegram's legacy Markdown.
func (m Message) Markdown() string {
	if m.HasOpportunities {
		return fmt.Sprintf("📊 *%s*\n🚀 *Oportunidades!*\n\n%s\n\n🔗 [Link](%s)", m.MonitorName, strings.TrimSpace(m.Summary), m.Link)
	}
	return fmt.Sprintf("📊 *%s*\nℹ️ Nenhuma oportunidade comercial hoje.\n🔗 [Link](%s)", m.MonitorName, m.Link)
}

// Subject is a one-line title for channels that have one.
func (m Message) Subject() string {
	if m.HasOpportunities {
		return m.MonitorName + ": Oportunidades!"
	}
	return m.MonitorName + ": nenhuma oportunidade comercial hoje"
}

// Split breaks the rendered message into parts of at most limit UTF-16 units,
// cutting on line boundaries where possible. The link footer is always in the last part.
func (m Message) Split(limit int) []string {
	return splitText(m.Markdown(), limit)
}

func splitText(text string, limit int) []string {
	if limit <= 0 || width(text) <= limit {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
		curW  int
	)
	flush := func() {
		if part := strings.TrimRight(cur.String(), "\n"); part != "" {
			parts = append(parts, part)
		}
		cur.Reset()
		curW = 0
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		lw := width(line)
		if curW+lw <= limit {
			cur.WriteString(line)
			curW += lw
			continue
		}
		flush()
		for width(line) > limit {
			head, rest := cutWidth(line, limit)
			parts = append(parts, head)
			line = rest
		}
		cur.WriteString(line)
		curW = width(line)
	}
	flush()
	return parts
}

func width(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// cutWidth returns the longest prefix of s that fits in limit UTF-16 units and the remainder.
func cutWidth(s string, limit int) (string, string) {
	n := 0
	for i, r := range s {
		w := utf16.RuneLen(r)
		// A rune wider than limit still goes out alone so the caller always progresses.
		if n+w > limit && i > 0 {
			return s[:i], s[i:]
		}
		n += w
	}
	return s, ""
}
