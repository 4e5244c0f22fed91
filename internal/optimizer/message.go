// Package optimizer keeps a conversation under a token ceiling through
// staged compression, deduplication, image pruning, and oldest-message
// eviction.
package optimizer

import (
	"github.com/xiy/memtier/internal/tokens"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Part is one piece of multimodal message content.
type Part struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

const (
	PartText  = "text"
	PartImage = "image_url"
)

// ToolCall is a tool invocation issued by an assistant message.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is a single conversation entry. Parts takes precedence over
// Content when non-empty.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	Parts      []Part     `json:"parts,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// HasImage reports whether any part carries image content.
func (m Message) HasImage() bool {
	for _, p := range m.Parts {
		if p.Type == PartImage {
			return true
		}
	}
	return false
}

// messageOverhead accounts for per-message formatting the model sees.
const messageOverhead = 4

// imageTokenEstimate is a flat budget charged per image part.
const imageTokenEstimate = 1000

// EstimateMessage approximates the token cost of one message.
func EstimateMessage(m Message) int {
	total := messageOverhead
	if len(m.Parts) > 0 {
		for _, p := range m.Parts {
			switch p.Type {
			case PartImage:
				total += imageTokenEstimate
			default:
				total += tokens.EstimateText(p.Text)
			}
		}
	} else {
		total += tokens.EstimateText(m.Content)
	}
	for _, tc := range m.ToolCalls {
		total += tokens.EstimateText(tc.Name) + tokens.EstimateText(tc.Arguments)
	}
	return total
}

// EstimateMessages approximates the token cost of a conversation.
func EstimateMessages(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessage(m)
	}
	return total
}
