package retrieval

import (
	"context"
	"log/slog"

	"github.com/Devcavi19/adal-4naga-app/ai"
	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
)

// Retriever returns up to k documents for a query, best first, with RawScore set.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]core.ScoredDocument, error)
}

// SemanticRetriever embeds the query and searches a vector index.
type SemanticRetriever struct {
	embedder ai.Embedder
	index    storage.VectorIndex
	logger   *slog.Logger
}

var _ Retriever = (*SemanticRetriever)(nil)

// NewSemanticRetriever creates a SemanticRetriever.
func NewSemanticRetriever(embedder ai.Embedder, index storage.VectorIndex, logger *slog.Logger) (*SemanticRetriever, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SemanticRetriever{
		embedder: embedder,
		index:    index,
		logger:   logger.With("component", "semantic-retriever"),
	}, nil
}

// Retrieve returns up to k documents by descending raw similarity.
// Failures are returned as *RetrievalFailure.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, k int) ([]core.ScoredDocument, error) {
	if k <= 0 {
		return []core.ScoredDocument{}, nil
	}

	vector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, &RetrievalFailure{Stage: StageEmbed, Err: err}
	}

	docs, err := r.index.Search(ctx, vector, k)
	if err != nil {
		r.logger.Error("error querying vector index", "err", err)
		return nil, &RetrievalFailure{Stage: StageVectorSearch, Err: err}
	}
	if len(docs) > k {
		docs = docs[:k]
	}
	return docs, nil
}
