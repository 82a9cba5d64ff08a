package qdrant

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex_Validation(t *testing.T) {
	_, err := NewIndex("", "docs")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = NewIndex("http://localhost:6333", " ")
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)

	_, err = NewIndex("http://localhost:6333", "docs", WithTimeout(0))
	assert.Error(t, err)
}

func TestSearch(t *testing.T) {
	var gotPath, gotKey string
	var gotReq searchRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotKey = r.Header.Get("api-key")
		body, _ := io.ReadAll(r.Body)
		_ = sonic.Unmarshal(body, &gotReq)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":[
			{"id":"a1","score":0.91,"payload":{"doc_id":"ord-1","text":"Section 1. Title.","metadata":{"source":"docs/Ordno-2020-01.pdf","page":2}}},
			{"id":7,"score":0.42,"payload":{"text":"Budget passage"}}
		]}`))
	}))
	defer srv.Close()

	idx, err := NewIndex(srv.URL+"/", "naga docs", WithAPIKey("secret"))
	require.NoError(t, err)
	defer idx.Close()

	results, err := idx.Search(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)

	assert.Equal(t, "/collections/naga%20docs/points/search", gotPath)
	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, 5, gotReq.Limit)
	assert.True(t, gotReq.WithPayload)

	require.Len(t, results, 2)
	assert.Equal(t, "ord-1", results[0].ID)
	assert.Equal(t, "Section 1. Title.", results[0].Text)
	assert.Equal(t, "2", results[0].Metadata.Page)
	assert.InDelta(t, 0.91, results[0].RawScore, 1e-9)

	// Falls back to the point id
	assert.Equal(t, "7", results[1].ID)
}

func TestSearch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer srv.Close()

	idx, err := NewIndex(srv.URL, "missing")
	require.NoError(t, err)

	_, err = idx.Search(context.Background(), []float32{1}, 3)
	assert.ErrorIs(t, err, storage.ErrIndexUnavailable)
}

func TestSearch_EdgeCases(t *testing.T) {
	idx, err := NewIndex("http://127.0.0.1:1", "docs")
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), []float32{1}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, err = idx.Search(context.Background(), nil, 3)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSearch_PayloadFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","result":[
			{"id":"p1","score":0.7,"payload":{"ordinance_id":"ord-9","page_content":"Curfew for minors.","meta":{"source":"Ordno-2021-12.pdf"}}}
		]}`))
	}))
	defer srv.Close()

	idx, err := NewIndex(srv.URL, "naga_documents", WithPayloadFields("page_content", "meta", "ordinance_id"))
	require.NoError(t, err)

	results, err := idx.Search(context.Background(), []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "ord-9", results[0].ID)
	assert.Equal(t, "Curfew for minors.", results[0].Text)
	assert.Equal(t, "Ordno-2021-12.pdf", results[0].Metadata.Source)
}
