package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"

	"supportrag/internal/domain"
	"supportrag/internal/logging"
)

type fakeScraper struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (domain.Document, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return domain.Document{}, err
	}
	return domain.Document{URL: url, Markdown: f.pages[url]}, nil
}

type fakeLimiter struct {
	waits     int
	throttled int
	err       error
}

func (f *fakeLimiter) Wait(context.Context) error {
	f.waits++
	return f.err
}

func (f *fakeLimiter) Throttled() { f.throttled++ }

type fakeEmbedder struct {
	vec   []float32
	err   error
	texts []string
	at    []time.Time
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.texts = append(f.texts, text)
	f.at = append(f.at, time.Now())
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	upserts   [][]domain.IndexRecord
	upsertErr error
	matches   []domain.RetrievalMatch
	queries   []domain.QueryRequest
	queryErr  error
}

func (f *fakeIndex) Upsert(_ context.Context, records []domain.IndexRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, records)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, req domain.QueryRequest) ([]domain.RetrievalMatch, error) {
	f.queries = append(f.queries, req)
	return f.matches, f.queryErr
}

func (f *fakeIndex) Dimension(context.Context) (int, error) { return 3, nil }

func (f *fakeIndex) records() []domain.IndexRecord {
	var out []domain.IndexRecord
	for _, batch := range f.upserts {
		out = append(out, batch...)
	}
	return out
}

type fakeStream struct {
	chunks [][]byte
	pos    int
	err    error
	closed bool
}

func (s *fakeStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *fakeStream) Chunk() []byte { return s.chunks[s.pos-1] }
func (s *fakeStream) Err() error    { return s.err }
func (s *fakeStream) Close() error  { s.closed = true; return nil }

type fakeCompleter struct {
	body     []byte
	stream   *fakeStream
	err      error
	messages []domain.ChatMessage
	opts     domain.GenerationOptions
}

func (f *fakeCompleter) Complete(_ context.Context, messages []domain.ChatMessage, opts domain.GenerationOptions) ([]byte, error) {
	f.messages, f.opts = messages, opts
	return f.body, f.err
}

func (f *fakeCompleter) Stream(_ context.Context, messages []domain.ChatMessage, opts domain.GenerationOptions) (domain.ChunkStream, error) {
	f.messages, f.opts = messages, opts
	if f.err != nil {
		return nil, f.err
	}
	if f.stream == nil {
		return nil, errors.New("no stream configured")
	}
	return f.stream, nil
}

func score(v float64) *float64 { return &v }

// logCapture is an arbor writer that keeps every event for assertions.
type logCapture struct {
	mu     sync.Mutex
	events []models.LogEvent
}

func (c *logCapture) WithLevel(log.Level) writers.IWriter { return c }
func (c *logCapture) GetFilePath() string                 { return "" }
func (c *logCapture) Close() error                        { return nil }

func (c *logCapture) Write(p []byte) (int, error) {
	var e models.LogEvent
	if err := json.Unmarshal(p, &e); err == nil {
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
	}
	return len(p), nil
}

func (c *logCapture) count(level log.Level) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.events {
		if e.Level == level {
			n++
		}
	}
	return n
}

func capturingLogger() (arbor.ILogger, *logCapture) {
	c := &logCapture{}
	return arbor.NewLogger().WithWriters([]writers.IWriter{c}), c
}

func quiet() arbor.ILogger { return logging.Quiet() }
