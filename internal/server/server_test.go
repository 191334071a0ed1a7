package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrag/internal/domain"
	"supportrag/internal/logging"
	"supportrag/internal/service"
)

type stubStream struct {
	chunks [][]byte
	pos    int
	err    error
	closed bool
}

func (s *stubStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *stubStream) Chunk() []byte { return s.chunks[s.pos-1] }
func (s *stubStream) Err() error {
	if s.pos < len(s.chunks) {
		return nil
	}
	return s.err
}
func (s *stubStream) Close() error { s.closed = true; return nil }

type stubChat struct {
	body   []byte
	stream *stubStream
	err    error
	calls  int
	last   service.ChatRequest
}

func (c *stubChat) Complete(_ context.Context, req service.ChatRequest) ([]byte, *service.Retrieval, error) {
	c.calls++
	c.last = req
	if c.err != nil {
		return nil, nil, c.err
	}
	return c.body, &service.Retrieval{}, nil
}

func (c *stubChat) Stream(_ context.Context, req service.ChatRequest) (domain.ChunkStream, error) {
	c.calls++
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out["error"]
}

func TestChatCompletions_ValidationFailures(t *testing.T) {
	cases := map[string]string{
		"not json":          `{"messages":`,
		"missing messages":  `{"stream":true}`,
		"empty messages":    `{"messages":[]}`,
		"messages not list": `{"messages":"hello"}`,
		"null messages":     `{"messages":null}`,
		"empty content":     `{"messages":[{"role":"user","content":"hi"},{"role":"user","content":""}]}`,
		"absent content":    `{"messages":[{"role":"user"}]}`,
		"last not object":   `{"messages":["hello"]}`,
		"image only":        `{"messages":[{"role":"user","content":[{"type":"image_url","image_url":{"url":"u"}}]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			chat := &stubChat{}
			rec := post(t, New(chat, logging.Quiet()), "/api/chat/completions", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, errorBody(t, rec))
			assert.Zero(t, chat.calls, "no pipeline call on invalid input")
		})
	}
}

func TestChatCompletions_MessageFieldsAreNotTypeChecked(t *testing.T) {
	cases := map[string]string{
		"numeric role":      `{"messages":[{"role":7,"content":"hi"}]}`,
		"multipart content": `{"messages":[{"role":"user","content":[{"type":"text","text":"hi"}]}]}`,
		"tool turns":        `{"messages":[{"role":"assistant","content":null,"tool_calls":[{"id":"c1","type":"function","function":{"name":"f","arguments":"{}"}}]},{"role":"tool","content":"ok","tool_call_id":"c1"},{"role":"user","content":"hi"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			chat := &stubChat{body: []byte(`{"id":"x"}`)}
			rec := post(t, New(chat, logging.Quiet()), "/api/chat/completions", body)
			assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, 1, chat.calls)
			assert.Equal(t, "hi", chat.last.Messages[len(chat.last.Messages)-1].Content())
		})
	}
}

func TestChatCompletions_ForwardsUnknownMessageFields(t *testing.T) {
	chat := &stubChat{body: []byte(`{"id":"x"}`)}
	body := `{"messages":[{"role":"assistant","content":"x","tool_calls":[{"id":"c1","type":"function","function":{"name":"f","arguments":"{}"}}]},{"role":"tool","content":"ok","tool_call_id":"c1"},{"role":"user","content":"hi"}]}`
	rec := post(t, New(chat, logging.Quiet()), "/api/chat/completions", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := json.Marshal(chat.last.Messages[:2])
	require.NoError(t, err)
	assert.JSONEq(t, `[{"role":"assistant","content":"x","tool_calls":[{"id":"c1","type":"function","function":{"name":"f","arguments":"{}"}}]},{"role":"tool","content":"ok","tool_call_id":"c1"}]`, string(got))
}

func TestChatCompletions_NonStreamingIsVerbatim(t *testing.T) {
	const upstream = `{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Yes."}}]}`
	chat := &stubChat{body: []byte(upstream)}
	s := New(chat, logging.Quiet())

	for _, path := range []string{"/api/chat/completions", "/chat/completions"} {
		rec := post(t, s, path, `{"model":"ignored","messages":[{"role":"user","content":"Is it free?"}],"max_tokens":50,"temperature":0,"call":{"id":"x"}}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, upstream, rec.Body.String())
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	}

	require.NotNil(t, chat.last.Options.MaxTokens)
	assert.Equal(t, 50, *chat.last.Options.MaxTokens)
	require.NotNil(t, chat.last.Options.Temperature)
	assert.Zero(t, *chat.last.Options.Temperature)
	assert.Equal(t, "Is it free?", chat.last.Messages[0].Content())
}

func TestChatCompletions_StreamsFramesThenDone(t *testing.T) {
	stream := &stubStream{chunks: [][]byte{
		[]byte(`{"choices":[{"delta":{"content":"Hel"}}]}`),
		[]byte(`{"choices":[{"delta":{"content":"lo"}}]}`),
	}}
	s := New(&stubChat{stream: stream}, logging.Quiet())

	rec := post(t, s, "/api/chat/completions", `{"messages":[{"role":"user","content":"hi"}],"stream":true}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "keep-alive", rec.Header().Get("Connection"))
	assert.Equal(t,
		"data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n"+
			"data: {\"choices\":[{\"delta\":{\"content\":\"lo\"}}]}\n\n"+
			"data: [DONE]\n\n",
		rec.Body.String())
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "[DONE]"))
	assert.True(t, stream.closed)
}

func TestChatCompletions_MidStreamFailureAbortsConnection(t *testing.T) {
	stream := &stubStream{
		chunks: [][]byte{[]byte(`{"n":1}`)},
		err:    domain.Errorf(domain.KindUpstream, "read completion stream", "connection reset"),
	}
	srv := httptest.NewServer(New(&stubChat{stream: stream}, logging.Quiet()).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/chat/completions", "application/json",
		strings.NewReader(`{"messages":[{"role":"user","content":"hi"}],"stream":true}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.Error(t, err, "client must observe a broken stream")
	assert.Contains(t, string(body), `data: {"n":1}`)
	assert.NotContains(t, string(body), "[DONE]")
}

func TestChatCompletions_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"auth", domain.StatusError("embed", http.StatusUnauthorized, ""), http.StatusUnauthorized},
		{"forbidden", domain.StatusError("query", http.StatusForbidden, ""), http.StatusUnauthorized},
		{"bad request", domain.StatusError("complete", http.StatusBadRequest, ""), http.StatusBadRequest},
		{"rate limited", domain.StatusError("complete", http.StatusTooManyRequests, ""), http.StatusInternalServerError},
		{"untyped", errors.New("dial tcp: refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, stream := range []bool{false, true} {
				s := New(&stubChat{err: tc.err}, logging.Quiet())
				body := `{"messages":[{"role":"user","content":"hi"}],"stream":false}`
				if stream {
					body = strings.Replace(body, "false", "true", 1)
				}
				rec := post(t, s, "/api/chat/completions", body)
				assert.Equal(t, tc.status, rec.Code, "stream=%v", stream)
				assert.NotEmpty(t, errorBody(t, rec))
			}
		})
	}
}

func TestChatCompletions_InternalErrorCarriesMessage(t *testing.T) {
	s := New(&stubChat{err: errors.New("dial tcp: refused")}, logging.Quiet())
	rec := post(t, s, "/api/chat/completions", `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, "dial tcp: refused", errorBody(t, rec))
}

func TestHealthAndRequestID(t *testing.T) {
	s := New(&stubChat{}, logging.Quiet())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Len(t, rec.Header().Get("X-Request-Id"), 36)
}

func TestWrongMethodRejected(t *testing.T) {
	s := New(&stubChat{}, logging.Quiet())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/completions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
