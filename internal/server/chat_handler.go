package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"supportrag/internal/completion"
	"supportrag/internal/domain"
)

const maxRequestBody = 1 << 20

func (s *Server) chatCompletions(c echo.Context) error {
	logger := loggerFrom(c, s.logger)

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRequestBody))
	if err != nil {
		return s.writeError(c, domain.E(domain.KindValidation, "read request", err))
	}
	req, err := decodeChatRequest(body)
	if err != nil {
		return s.writeError(c, err)
	}

	logger.Info().
		Int("messages", len(req.Messages)).
		Bool("stream", req.Stream).
		Msg("Chat completion request")

	ctx := c.Request().Context()
	if !req.Stream {
		answer, _, err := s.chat.Complete(ctx, req.serviceRequest())
		if err != nil {
			return s.writeError(c, err)
		}
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, answer)
	}

	stream, err := s.chat.Stream(ctx, req.serviceRequest())
	if err != nil {
		return s.writeError(c, err)
	}
	defer stream.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	frames, answerChars := 0, 0
	for stream.Next() {
		chunk := stream.Chunk()
		if _, err := fmt.Fprintf(res, "data: %s\n\n", chunk); err != nil {
			logger.Warn().Err(err).Int("frames", frames).Msg("Client went away during stream")
			return nil
		}
		res.Flush()
		frames++
		answerChars += len([]rune(completion.DeltaContent(chunk)))
	}
	if err := stream.Err(); err != nil {
		// Abort the connection so the client sees a broken stream, not a clean end.
		logger.Error().Err(err).Int("frames", frames).Msg("Completion stream failed")
		panic(http.ErrAbortHandler)
	}

	if _, err := io.WriteString(res, "data: [DONE]\n\n"); err != nil {
		return nil
	}
	res.Flush()
	logger.Debug().Int("frames", frames).Int("answer_chars", answerChars).Msg("Completion stream finished")
	return nil
}

func (s *Server) writeError(c echo.Context, err error) error {
	status, msg := errorResponse(err)
	logger := loggerFrom(c, s.logger)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("Chat completion error")
	} else {
		logger.Warn().Err(err).Int("status", status).Msg("Chat completion rejected")
	}
	return c.JSON(status, map[string]string{"error": msg})
}

// errorResponse maps an error kind to a status code and client-facing message.
func errorResponse(err error) (int, string) {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		var de *domain.Error
		if errors.As(err, &de) {
			return http.StatusBadRequest, de.Err.Error()
		}
		return http.StatusBadRequest, err.Error()
	case domain.KindBadRequest:
		return http.StatusBadRequest, "Invalid request parameters. Please check your input."
	case domain.KindAuth:
		return http.StatusUnauthorized, "Upstream authentication failed. Please check the configured API keys."
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
