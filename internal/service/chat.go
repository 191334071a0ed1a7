package service

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"

	"supportrag/internal/domain"
)

// ChatRequest is a validated conversation plus caller generation options.
type ChatRequest struct {
	Messages []domain.ChatMessage
	Options  domain.GenerationOptions
}

// ChatService runs the query pipeline: embed the last message, retrieve
// context, rewrite the prompt and forward it to the completion service.
type ChatService struct {
	embedder  domain.Embedder
	retriever *Retriever
	completer domain.Completer
	logger    arbor.ILogger
}

func NewChatService(embedder domain.Embedder, retriever *Retriever, completer domain.Completer, logger arbor.ILogger) *ChatService {
	return &ChatService{embedder: embedder, retriever: retriever, completer: completer, logger: logger}
}

// Ground returns messages with the final one rewritten around retrieved context.
func (s *ChatService) Ground(ctx context.Context, messages []domain.ChatMessage) ([]domain.ChatMessage, *Retrieval, error) {
	if len(messages) == 0 {
		return nil, nil, domain.Errorf(domain.KindValidation, "ground", "messages must not be empty")
	}
	query := messages[len(messages)-1].Content()
	if query == "" {
		return nil, nil, domain.Errorf(domain.KindValidation, "ground", "last message must have content")
	}

	start := time.Now()
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	retrieval, err := s.retriever.Retrieve(ctx, vec)
	if err != nil {
		return nil, nil, err
	}

	s.logger.Debug().
		Int("messages", len(messages)).
		Int("matches", len(retrieval.Matches)).
		Int("context_chars", len(retrieval.Context)).
		Dur("elapsed", time.Since(start)).
		Msg("Grounded query")

	return BuildMessages(messages, retrieval.Context, query), retrieval, nil
}

// Complete grounds the conversation and returns the completion object verbatim.
func (s *ChatService) Complete(ctx context.Context, req ChatRequest) ([]byte, *Retrieval, error) {
	messages, retrieval, err := s.Ground(ctx, req.Messages)
	if err != nil {
		return nil, nil, err
	}
	body, err := s.completer.Complete(ctx, messages, req.Options)
	if err != nil {
		return nil, retrieval, err
	}
	return body, retrieval, nil
}

// Stream grounds the conversation and opens a streaming completion.
func (s *ChatService) Stream(ctx context.Context, req ChatRequest) (domain.ChunkStream, error) {
	messages, _, err := s.Ground(ctx, req.Messages)
	if err != nil {
		return nil, err
	}
	return s.completer.Stream(ctx, messages, req.Options)
}
