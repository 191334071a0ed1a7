package service

import (
	"fmt"

	"supportrag/internal/domain"
)

const groundingTemplate = `You are a helpful support assistant. Use the context below to answer the question when it is relevant.
If the context does not contain the answer, you may rely on your general knowledge.
Keep the answer concise and factual.

Context:
%s

Question:
%s`

// BuildMessages returns a copy of messages whose final message content is
// replaced by the grounded prompt. Earlier messages, and every other field of
// the final one, are passed through as is.
func BuildMessages(messages []domain.ChatMessage, context, query string) []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(messages))
	copy(out, messages)
	if len(out) == 0 {
		return out
	}
	last := len(out) - 1
	out[last] = out[last].WithContent(fmt.Sprintf(groundingTemplate, context, query))
	return out
}
