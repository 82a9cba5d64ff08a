package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMonitor struct {
	noopMonitor
	stages []string
	merged int
}

func (m *recordingMonitor) Start(string, int) { m.stages = append(m.stages, "start") }
func (m *recordingMonitor) AfterSemanticSearch([]core.ScoredDocument, error) {
	m.stages = append(m.stages, "semantic")
}
func (m *recordingMonitor) AfterKeywordSearch([]core.ScoredDocument, error) {
	m.stages = append(m.stages, "keyword")
}
func (m *recordingMonitor) Merged(n int) { m.merged = n }
func (m *recordingMonitor) Finish([]core.FusedResult) {
	m.stages = append(m.stages, "finish")
}

func TestNewFusion_Validation(t *testing.T) {
	_, err := NewFusion(nil, nil)
	assert.ErrorIs(t, err, ErrVectorIndexRequired)

	_, err = NewFusion(&stubRetriever{}, nil, WithWeights(-1, 0.3))
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestFusion_Merge(t *testing.T) {
	semantic := &stubRetriever{docs: []core.ScoredDocument{
		scored("shared", 0.9), scored("semantic only", 0.5), scored("low", 0.1),
	}}
	keyword := &stubRetriever{docs: []core.ScoredDocument{
		scored("keyword only", 12), scored("shared", 4),
	}}
	f, err := NewFusion(semantic, keyword)
	require.NoError(t, err)

	results, err := f.Fuse(context.Background(), "q", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 6, semantic.lastK, "each retriever is asked for 2k")
	assert.Equal(t, 6, keyword.lastK)

	byText := make(map[string]core.FusedResult)
	for _, r := range results {
		byText[r.Text] = r
		assert.GreaterOrEqual(t, r.HybridScore, 0.0)
	}

	shared := byText["shared"]
	assert.True(t, shared.HasSemantic)
	assert.True(t, shared.HasKeyword)
	assert.InDelta(t, 1.0, shared.SemanticScore, 1e-9)
	assert.InDelta(t, 0.0, shared.KeywordScore, 1e-9)
	assert.InDelta(t, 0.7, shared.HybridScore, 1e-9)
	assert.InDelta(t, 0.9, shared.RawSemanticScore, 1e-9)

	kwOnly := byText["keyword only"]
	assert.False(t, kwOnly.HasSemantic)
	assert.Equal(t, 0.0, kwOnly.SemanticScore)
	assert.InDelta(t, 0.3, kwOnly.HybridScore, 1e-9)

	semOnly := byText["semantic only"]
	assert.Equal(t, 0.0, semOnly.KeywordScore)
	assert.InDelta(t, 0.5*0.7, semOnly.HybridScore, 1e-9)

	// Descending by hybrid score
	assert.Equal(t, "shared", results[0].Text)
	assert.Equal(t, "semantic only", results[1].Text)
	assert.Equal(t, "keyword only", results[2].Text)
}

func TestFusion_Deterministic(t *testing.T) {
	semantic := &stubRetriever{docs: []core.ScoredDocument{
		scored("a", 0.5), scored("b", 0.5), scored("c", 0.2),
	}}
	keyword := &stubRetriever{docs: []core.ScoredDocument{
		scored("d", 3), scored("e", 3),
	}}
	f, err := NewFusion(semantic, keyword)
	require.NoError(t, err)

	first, err := f.Fuse(context.Background(), "q", 5)
	require.NoError(t, err)
	for range 5 {
		again, err := f.Fuse(context.Background(), "q", 5)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// Equal hybrid scores keep first-seen order
	assert.Equal(t, "a", first[0].Text)
	assert.Equal(t, "b", first[1].Text)
}

func TestFusion_CustomWeights(t *testing.T) {
	semantic := &stubRetriever{docs: []core.ScoredDocument{scored("s", 1)}}
	keyword := &stubRetriever{docs: []core.ScoredDocument{scored("k", 1)}}
	f, err := NewFusion(semantic, keyword, WithWeights(0.2, 0.8))
	require.NoError(t, err)

	results, err := f.Fuse(context.Background(), "q", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "k", results[0].Text)
	assert.InDelta(t, 0.8, results[0].HybridScore, 1e-9)
}

func TestFusion_SemanticFailureDegradesToKeyword(t *testing.T) {
	boom := &RetrievalFailure{Stage: StageEmbed, Err: errors.New("embedding service down")}
	semantic := &stubRetriever{err: boom}
	keyword := &stubRetriever{docs: []core.ScoredDocument{scored("k1", 2), scored("k2", 1)}}
	f, err := NewFusion(semantic, keyword)
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := f.FuseWithMonitor(context.Background(), "q", 5, monitor)
	var failure *RetrievalFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, StageEmbed, failure.Stage)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.HasSemantic)
		assert.Equal(t, 0.0, r.SemanticScore)
	}
	assert.Equal(t, []string{"start", "semantic", "keyword", "finish"}, monitor.stages)
	assert.Equal(t, 2, monitor.merged)
}

func TestFusion_NoKeywordIndex(t *testing.T) {
	semantic := &stubRetriever{docs: []core.ScoredDocument{scored("a", 0.4), scored("b", 0.2)}}
	f, err := NewFusion(semantic, nil)
	require.NoError(t, err)

	results, err := f.Fuse(context.Background(), "q", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].HasKeyword)
}

func TestFusion_ZeroK(t *testing.T) {
	semantic := &stubRetriever{docs: []core.ScoredDocument{scored("a", 0.4)}}
	f, err := NewFusion(semantic, nil)
	require.NoError(t, err)

	results, err := f.Fuse(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, semantic.calls)
}
