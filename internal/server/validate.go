package server

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"supportrag/internal/domain"
	"supportrag/internal/service"
)

var validate = validator.New()

// chatRequest is the subset of an OpenAI chat-completions body that is used.
// Unknown fields are ignored.
type chatRequest struct {
	Messages []domain.ChatMessage `validate:"required,min=1"`
	Stream   bool
	Options  domain.GenerationOptions
}

// decodeChatRequest parses and validates a chat-completions body. Only the
// message sequence and the last message content are checked. Message fields
// are kept as received and optional generation fields of the wrong type are
// ignored.
func decodeChatRequest(body []byte) (*chatRequest, error) {
	const op = "decode request"
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.Errorf(domain.KindValidation, op, "request body must be a JSON object")
	}

	var items []json.RawMessage
	if msgs, ok := raw["messages"]; ok {
		if err := json.Unmarshal(msgs, &items); err != nil {
			return nil, domain.Errorf(domain.KindValidation, op, "messages array is required and must not be empty")
		}
	}
	req := &chatRequest{Messages: make([]domain.ChatMessage, 0, len(items))}
	for i, item := range items {
		var m domain.ChatMessage
		if err := json.Unmarshal(item, &m); err != nil || m == nil {
			if i == len(items)-1 {
				return nil, domain.Errorf(domain.KindValidation, op, "last message must have content")
			}
			return nil, domain.Errorf(domain.KindValidation, op, "message %d must be a JSON object", i)
		}
		req.Messages = append(req.Messages, m)
	}
	if err := validate.Struct(req); err != nil {
		return nil, domain.Errorf(domain.KindValidation, op, "messages array is required and must not be empty")
	}
	if req.Messages[len(req.Messages)-1].Content() == "" {
		return nil, domain.Errorf(domain.KindValidation, op, "last message must have content")
	}

	if v, ok := raw["max_tokens"]; ok {
		var n int
		if json.Unmarshal(v, &n) == nil && n > 0 {
			req.Options.MaxTokens = &n
		}
	}
	if v, ok := raw["temperature"]; ok {
		var f float64
		if json.Unmarshal(v, &f) == nil {
			req.Options.Temperature = &f
		}
	}
	if v, ok := raw["stream"]; ok {
		_ = json.Unmarshal(v, &req.Stream)
	}
	return req, nil
}

func (r *chatRequest) serviceRequest() service.ChatRequest {
	return service.ChatRequest{Messages: r.Messages, Options: r.Options}
}
