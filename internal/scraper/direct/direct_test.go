package direct

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrag/internal/domain"
)

func TestScrape_ExtractsMainContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><body><nav>Menu</nav><main><h2>Reviews</h2><p>4.8 stars</p></main></body></html>`))
	}))
	defer srv.Close()

	doc, err := New(Config{}).Scrape(context.Background(), srv.URL+"/reviews")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/reviews", doc.URL)
	assert.Contains(t, doc.Markdown, "## Reviews")
	assert.Contains(t, doc.Markdown, "4.8 stars")
	assert.NotContains(t, doc.Markdown, "Menu")
	assert.False(t, doc.FetchedAt.IsZero())
}

func TestScrape_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			http.NotFound(w, r)
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{}`))
		case "/empty":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<html><body><script>app()</script></body></html>`))
		}
	}))
	defer srv.Close()

	s := New(Config{})
	for _, path := range []string{"/missing", "/json", "/empty"} {
		_, err := s.Scrape(context.Background(), srv.URL+path)
		require.Error(t, err, path)
		assert.Equal(t, domain.KindUpstream, domain.KindOf(err), path)
	}
}
