package completion

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"supportrag/internal/domain"
)

const maxEventSize = 1 << 20

// Stream reads server-sent events from a streaming chat-completions response
// and yields each data payload as a raw JSON chunk.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	chunk   []byte
	err     error
	done    bool
}

var _ domain.ChunkStream = (*Stream)(nil)

func newStream(body io.ReadCloser) *Stream {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), maxEventSize)
	return &Stream{body: body, scanner: sc}
}

// Next advances to the next chunk. It returns false at [DONE], at the end of
// the body or on error.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	var data [][]byte
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			if len(data) == 0 {
				continue
			}
			return s.emit(bytes.Join(data, []byte("\n")))
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		if string(field) != "data" {
			continue
		}
		value = bytes.TrimPrefix(value, []byte(" "))
		data = append(data, bytes.Clone(value))
	}
	if err := s.scanner.Err(); err != nil {
		s.fail(domain.E(domain.KindUpstream, "read completion stream", err))
		return false
	}
	if len(data) > 0 {
		return s.emit(bytes.Join(data, []byte("\n")))
	}
	s.done = true
	return false
}

func (s *Stream) emit(payload []byte) bool {
	if string(bytes.TrimSpace(payload)) == "[DONE]" {
		s.done = true
		return false
	}
	if !json.Valid(payload) {
		s.fail(domain.Errorf(domain.KindUpstream, "read completion stream", "chunk is not JSON: %.200s", payload))
		return false
	}
	// a chunk is re-sent as one data line, so multi-line payloads are compacted
	if bytes.ContainsAny(payload, "\r\n") {
		var compact bytes.Buffer
		if err := json.Compact(&compact, payload); err != nil {
			s.fail(domain.E(domain.KindUpstream, "read completion stream", err))
			return false
		}
		payload = compact.Bytes()
	}
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(payload, &envelope); err == nil && len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		s.fail(domain.E(domain.KindUpstream, "read completion stream", fmt.Errorf("upstream error: %s", envelope.Error)))
		return false
	}
	s.chunk = payload
	return true
}

func (s *Stream) fail(err error) {
	s.err = err
	s.chunk = nil
	s.done = true
}

// Chunk returns the current raw chunk object.
func (s *Stream) Chunk() []byte { return s.chunk }

// Err returns the first error encountered while reading the stream.
func (s *Stream) Err() error { return s.err }

func (s *Stream) Close() error { return s.body.Close() }

// DeltaContent extracts choices[0].delta.content from a streaming chunk.
func DeltaContent(chunk []byte) string {
	var out struct {
		Choices []struct {
			Delta struct {
				Content string `json:"content"`
			} `json:"delta"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(chunk, &out); err != nil || len(out.Choices) == 0 {
		return ""
	}
	return out.Choices[0].Delta.Content
}
