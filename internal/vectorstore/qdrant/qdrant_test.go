package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supportrag/internal/domain"
)

func TestStorage_UpsertMapsIDs(t *testing.T) {
	var got struct {
		Points []struct {
			ID      string         `json:"id"`
			Vector  []float32      `json:"vector"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/support/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		assert.Equal(t, "qk", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "qk", Collection: "support"})
	err := s.Upsert(context.Background(), []domain.IndexRecord{{
		ID:       "aven-support-chunk-0-1700000000000",
		Values:   []float32{0.1, 0.2},
		Metadata: map[string]any{domain.MetaText: "hello"},
	}})
	require.NoError(t, err)
	require.Len(t, got.Points, 1)
	_, err = uuid.Parse(got.Points[0].ID)
	assert.NoError(t, err)
	assert.Equal(t, "aven-support-chunk-0-1700000000000", got.Points[0].Payload[recordIDKey])
	assert.Equal(t, "hello", got.Points[0].Payload[domain.MetaText])
}

func TestStorage_Query(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/support/points/search", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 8, body["limit"])
		assert.Equal(t, true, body["with_payload"])
		_, _ = w.Write([]byte(`{"result":[
			{"id":"6f1c","score":0.91,"payload":{"record_id":"r1","text":"first"}},
			{"id":7,"score":0.42,"payload":{"text":"second"}}
		]}`))
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "support"})
	matches, err := s.Query(context.Background(), domain.QueryRequest{Vector: []float32{1}, TopK: 8, IncludeMetadata: true})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "r1", matches[0].ID)
	assert.InDelta(t, 0.91, *matches[0].Score, 1e-9)
	assert.Equal(t, "first", matches[0].Text())
	assert.NotContains(t, matches[0].Metadata, recordIDKey)
	assert.Equal(t, "7", matches[1].ID)
}

func TestStorage_DimensionAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"result":{"config":{"params":{"vectors":{"size":3072,"distance":"Cosine"}}}}}`))
		default:
			http.Error(w, "forbidden", http.StatusForbidden)
		}
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "support"})
	dim, err := s.Dimension(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3072, dim)

	err = s.EnsureCollection(context.Background(), 3072)
	require.Error(t, err)
	assert.Equal(t, domain.KindAuth, domain.KindOf(err))

	err = s.EnsureCollection(context.Background(), 0)
	assert.Equal(t, domain.KindInternal, domain.KindOf(err))
}
