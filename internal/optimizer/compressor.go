package optimizer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	runsOfSpaces   = regexp.MustCompile(`[ \t]+`)
	runsOfNewlines = regexp.MustCompile(`\n{3,}`)
	base64Payload  = regexp.MustCompile(`data:[^;]+;base64,[A-Za-z0-9+/=]+`)
)

// CompressWhitespace collapses space runs, caps blank lines at one, and
// trims each line.
func CompressWhitespace(text string) string {
	text = runsOfSpaces.ReplaceAllString(text, " ")
	text = runsOfNewlines.ReplaceAllString(text, "\n\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// Truncate caps text at maxChars, marking the cut.
func Truncate(text string, maxChars int) string {
	const suffix = "...[truncated]"
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars - len(suffix)
	if cut < 0 {
		cut = 0
	}
	return text[:cut] + suffix
}

// RemoveBase64 strips inline base64 data URLs, returning the cleaned text
// and the number of bytes removed.
func RemoveBase64(text string) (string, int) {
	removed := 0
	cleaned := base64Payload.ReplaceAllStringFunc(text, func(m string) string {
		removed += len(m)
		return "<base64_data_removed>"
	})
	return cleaned, removed
}

// SummarizeToolResult shrinks a tool result, keeping key fields of known
// JSON shapes. Unparseable payloads fall back to plain truncation.
func SummarizeToolResult(result string, maxChars int) string {
	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(result), &data); err == nil {
		if summary, ok := summarizeKnownShape(data); ok && len(summary) < len(result) {
			return summary
		}
	}
	return Truncate(result, maxChars)
}

func summarizeKnownShape(data map[string]json.RawMessage) (string, bool) {
	var kind string
	if raw, ok := data["type"]; ok && json.Unmarshal(raw, &kind) == nil && kind == "screenshot" {
		var path string
		if raw, ok := data["path"]; ok {
			_ = json.Unmarshal(raw, &path)
		}
		width, height := "?", "?"
		var n json.Number
		if raw, ok := data["width"]; ok && json.Unmarshal(raw, &n) == nil {
			width = n.String()
		}
		if raw, ok := data["height"]; ok && json.Unmarshal(raw, &n) == nil {
			height = n.String()
		}
		out, err := json.Marshal(map[string]string{
			"type":       "screenshot",
			"path":       path,
			"dimensions": width + "x" + height,
		})
		if err != nil {
			return "", false
		}
		return string(out), true
	}

	if raw, ok := data["files"]; ok {
		var files []json.RawMessage
		if json.Unmarshal(raw, &files) == nil && len(files) > 10 {
			out, err := json.Marshal(map[string]any{
				"files": files[:10],
				"note":  fmt.Sprintf("...and %d more files", len(files)-10),
			})
			if err != nil {
				return "", false
			}
			return string(out), true
		}
	}

	return "", false
}

// compressMessage applies the configured text transforms to one message.
func compressMessage(m Message, cfg Config, stripBase64 bool) Message {
	if len(m.Parts) > 0 {
		changed := false
		parts := make([]Part, len(m.Parts))
		copy(parts, m.Parts)
		for i, p := range parts {
			if p.Type != PartText {
				continue
			}
			text := p.Text
			if cfg.CompressWhitespace {
				text = CompressWhitespace(text)
			}
			if text != p.Text {
				parts[i].Text = text
				changed = true
			}
		}
		if changed {
			m.Parts = parts
		}
		return m
	}

	content := m.Content
	if cfg.CompressWhitespace {
		content = CompressWhitespace(content)
	}
	if stripBase64 {
		content, _ = RemoveBase64(content)
	}
	if m.Role == RoleTool && cfg.MaxToolResultChars > 0 {
		if cfg.SummarizeTools {
			content = SummarizeToolResult(content, cfg.MaxToolResultChars)
		} else {
			content = Truncate(content, cfg.MaxToolResultChars)
		}
	}
	m.Content = content
	return m
}

// compressMessages applies compressMessage across a conversation.
func compressMessages(messages []Message, cfg Config, stripBase64 bool) []Message {
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = compressMessage(m, cfg, stripBase64)
	}
	return out
}
