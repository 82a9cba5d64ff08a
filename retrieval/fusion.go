package retrieval

import (
	"context"
	"log/slog"
	"slices"

	"github.com/Devcavi19/adal-4naga-app/core"
	"golang.org/x/sync/errgroup"
)

// Default fusion weights. They need not sum to one.
const (
	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// Fusion merges semantic and keyword results into hybrid-scored results.
type Fusion struct {
	semantic       Retriever
	keyword        Retriever
	semanticWeight float64
	keywordWeight  float64
	logger         *slog.Logger
}

// FusionOption configures a Fusion.
type FusionOption func(*Fusion) error

// WithWeights sets the semantic and keyword weights.
func WithWeights(semantic, keyword float64) FusionOption {
	return func(f *Fusion) error {
		if semantic < 0 || keyword < 0 {
			return ErrInvalidWeights
		}
		f.semanticWeight = semantic
		f.keywordWeight = keyword
		return nil
	}
}

// WithFusionLogger sets a custom logger.
// Default is slog.Default().
func WithFusionLogger(logger *slog.Logger) FusionOption {
	return func(f *Fusion) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFusion creates a Fusion over the two retrievers. A nil keyword
// retriever disables keyword search.
func NewFusion(semantic, keyword Retriever, opts ...FusionOption) (*Fusion, error) {
	if semantic == nil {
		return nil, ErrVectorIndexRequired
	}
	if keyword == nil {
		keyword = NewKeywordRetriever(nil)
	}
	f := &Fusion{
		semantic:       semantic,
		keyword:        keyword,
		semanticWeight: DefaultSemanticWeight,
		keywordWeight:  DefaultKeywordWeight,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "fusion")
	return f, nil
}

// Fuse returns up to k hybrid results for query.
func (f *Fusion) Fuse(ctx context.Context, query string, k int) ([]core.FusedResult, error) {
	return f.FuseWithMonitor(ctx, query, k, nil)
}

// FuseWithMonitor is Fuse with stage callbacks.
//
// Each retriever is asked for 2k candidates concurrently. If one of them fails
// the results of the other are still fused and returned together with the
// failure, so callers can degrade to a single retrieval method.
func (f *Fusion) FuseWithMonitor(ctx context.Context, query string, k int, monitor FusionMonitor) ([]core.FusedResult, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(query, k)
	if k <= 0 {
		monitor.Finish(nil)
		return []core.FusedResult{}, nil
	}

	var semantic, keyword []core.ScoredDocument
	var semanticErr, keywordErr error
	var g errgroup.Group
	g.Go(func() error {
		semantic, semanticErr = f.semantic.Retrieve(ctx, query, 2*k)
		return semanticErr
	})
	g.Go(func() error {
		keyword, keywordErr = f.keyword.Retrieve(ctx, query, 2*k)
		return keywordErr
	})
	err := g.Wait()

	monitor.AfterSemanticSearch(semantic, semanticErr)
	monitor.AfterKeywordSearch(keyword, keywordErr)
	if semanticErr != nil {
		f.logger.Warn("semantic retrieval failed, continuing with keyword results", "err", semanticErr)
	}
	if keywordErr != nil {
		f.logger.Warn("keyword retrieval failed, continuing with semantic results", "err", keywordErr)
	}

	merged := f.merge(semantic, keyword)
	monitor.Merged(len(merged))
	if len(merged) > k {
		merged = merged[:k]
	}
	monitor.Finish(merged)
	return merged, err
}

// merge combines both lists by document text. Each list is normalized
// independently; documents keep the order in which they were first seen,
// semantic list first, and a stable sort by hybrid score decides the rest.
func (f *Fusion) merge(semantic, keyword []core.ScoredDocument) []core.FusedResult {
	normalizeDocuments(semantic)
	normalizeDocuments(keyword)

	merged := make([]core.FusedResult, 0, len(semantic)+len(keyword))
	byText := make(map[string]int, len(semantic)+len(keyword))

	for _, doc := range semantic {
		if _, dup := byText[doc.Text]; dup {
			continue
		}
		byText[doc.Text] = len(merged)
		merged = append(merged, core.FusedResult{
			Document:         doc.Document,
			SemanticScore:    doc.NormalizedScore,
			RawSemanticScore: doc.RawScore,
			HasSemantic:      true,
		})
	}
	for _, doc := range keyword {
		if pos, ok := byText[doc.Text]; ok {
			if !merged[pos].HasKeyword {
				merged[pos].KeywordScore = doc.NormalizedScore
				merged[pos].RawKeywordScore = doc.RawScore
				merged[pos].HasKeyword = true
			}
			continue
		}
		byText[doc.Text] = len(merged)
		merged = append(merged, core.FusedResult{
			Document:        doc.Document,
			KeywordScore:    doc.NormalizedScore,
			RawKeywordScore: doc.RawScore,
			HasKeyword:      true,
		})
	}

	for i := range merged {
		merged[i].HybridScore = merged[i].SemanticScore*f.semanticWeight + merged[i].KeywordScore*f.keywordWeight
	}
	slices.SortStableFunc(merged, func(a, b core.FusedResult) int {
		switch {
		case a.HybridScore > b.HybridScore:
			return -1
		case a.HybridScore < b.HybridScore:
			return 1
		default:
			return 0
		}
	})
	return merged
}
