package retrieval

import (
	"context"
	"slices"

	"github.com/Devcavi19/adal-4naga-app/core"
)

// stubRetriever returns a fixed ranked list, truncated to k.
type stubRetriever struct {
	docs  []core.ScoredDocument
	err   error
	lastK int
	calls int
}

func (s *stubRetriever) Retrieve(_ context.Context, _ string, k int) ([]core.ScoredDocument, error) {
	s.calls++
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	docs := slices.Clone(s.docs)
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}

// stubIndex is a storage.VectorIndex returning fixed results.
type stubIndex struct {
	docs  []core.ScoredDocument
	err   error
	lastK int
}

func (s *stubIndex) Search(_ context.Context, _ []float32, k int) ([]core.ScoredDocument, error) {
	s.lastK = k
	if s.err != nil {
		return nil, s.err
	}
	return slices.Clone(s.docs), nil
}

func (s *stubIndex) Close() error { return nil }

func scored(text string, raw float64) core.ScoredDocument {
	return core.ScoredDocument{
		Document: core.Document{ID: text, Text: text},
		RawScore: raw,
	}
}
