package domain

import (
	"encoding/json"
	"strings"
)

// ChatMessage is one turn of a conversation, kept as the JSON object it
// arrived as. Fields other than content are never interpreted, so tool calls,
// names and vendor extensions reach the completion service unchanged.
type ChatMessage map[string]json.RawMessage

// NewChatMessage builds a plain text message.
func NewChatMessage(role, content string) ChatMessage {
	r, _ := json.Marshal(role)
	c, _ := json.Marshal(content)
	return ChatMessage{"role": r, "content": c}
}

// Role returns the message role, or "" when it is absent or not a string.
func (m ChatMessage) Role() string {
	var role string
	if json.Unmarshal(m["role"], &role) != nil {
		return ""
	}
	return role
}

// Content returns the message text. Multipart content yields its text parts
// joined by newlines; anything else yields "".
func (m ChatMessage) Content() string {
	raw, ok := m["content"]
	if !ok {
		return ""
	}
	var text string
	if json.Unmarshal(raw, &text) == nil {
		return text
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &parts) != nil {
		return ""
	}
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Text != "" && (p.Type == "" || p.Type == "text") {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// WithContent returns a copy of m whose content is replaced by text.
func (m ChatMessage) WithContent(text string) ChatMessage {
	out := make(ChatMessage, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	c, _ := json.Marshal(text)
	out["content"] = c
	return out
}
