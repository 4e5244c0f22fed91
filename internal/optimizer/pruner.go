package optimizer

import "strings"

// essentialIndices marks messages that eviction must never remove: system
// messages, the last keepLast messages, and tool-call/tool-result pairs.
func essentialIndices(messages []Message, keepLast int) map[int]bool {
	essential := make(map[int]bool)
	n := len(messages)

	for i, m := range messages {
		if m.Role == RoleSystem {
			essential[i] = true
		}
		if i >= n-keepLast {
			essential[i] = true
		}
	}

	for i, m := range messages {
		if m.Role != RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		essential[i] = true
		end := i + len(m.ToolCalls) + 1
		if end > n {
			end = n
		}
		for j := i + 1; j < end; j++ {
			if messages[j].Role == RoleTool {
				essential[j] = true
			}
		}
	}

	return essential
}

// pruneOldest evicts the oldest non-essential messages down to targetCount.
func pruneOldest(messages []Message, targetCount, keepLast int) ([]Message, int) {
	if len(messages) <= targetCount {
		return messages, 0
	}

	essential := essentialIndices(messages, keepLast)

	toRemove := len(messages) - targetCount
	removing := make(map[int]bool)
	for i := range messages {
		if toRemove == 0 {
			break
		}
		if essential[i] {
			continue
		}
		removing[i] = true
		toRemove--
	}

	out := make([]Message, 0, len(messages)-len(removing))
	for i, m := range messages {
		if !removing[i] {
			out = append(out, m)
		}
	}
	return out, len(removing)
}

// pruneImages keeps images only in the newest maxImages image-bearing user
// messages, replacing older images with a text placeholder.
func pruneImages(messages []Message, maxImages int) ([]Message, int) {
	var imageIndices []int
	for i, m := range messages {
		if m.Role == RoleUser && m.HasImage() {
			imageIndices = append(imageIndices, i)
		}
	}
	if len(imageIndices) <= maxImages {
		return messages, 0
	}

	strip := make(map[int]bool)
	for _, i := range imageIndices[:len(imageIndices)-maxImages] {
		strip[i] = true
	}

	removed := 0
	out := make([]Message, len(messages))
	copy(out, messages)
	for i := range out {
		if !strip[i] {
			continue
		}
		parts := make([]Part, 0, len(out[i].Parts))
		for _, p := range out[i].Parts {
			if p.Type == PartImage {
				parts = append(parts, Part{Type: PartText, Text: "<image removed for token optimization>"})
				removed++
			} else {
				parts = append(parts, p)
			}
		}
		out[i].Parts = parts
	}
	return out, removed
}

// pruneDuplicates drops messages whose content repeats an earlier message.
// Equality is length plus matching 50-char prefix and suffix; short
// messages are never considered duplicates.
func pruneDuplicates(messages []Message) ([]Message, int) {
	type key struct {
		length         int
		prefix, suffix string
	}
	seen := make(map[key]bool)
	duplicates := make(map[int]bool)

	for i, m := range messages {
		if len(m.Parts) > 0 {
			continue
		}
		content := strings.TrimSpace(m.Content)
		if len(content) < 20 {
			continue
		}
		k := key{length: len(content), prefix: clip(content, 50), suffix: clipEnd(content, 50)}
		if seen[k] {
			duplicates[i] = true
		} else {
			seen[k] = true
		}
	}

	if len(duplicates) == 0 {
		return messages, 0
	}
	out := make([]Message, 0, len(messages)-len(duplicates))
	for i, m := range messages {
		if !duplicates[i] {
			out = append(out, m)
		}
	}
	return out, len(duplicates)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func clipEnd(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
