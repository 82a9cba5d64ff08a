package retrieval

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func corpus() []core.Document {
	texts := []string{
		"zoning ordinance for commercial districts",
		"traffic ordinance and parking fees",
		"annual budget appropriation",
		"zoning map amendments",
		"health services of the city",
	}
	docs := make([]core.Document, len(texts))
	for i, text := range texts {
		docs[i] = core.Document{ID: text, Text: text}
	}
	return docs
}

func TestKeywordIndex_Search(t *testing.T) {
	idx := NewKeywordIndex(corpus())
	require.Equal(t, 5, idx.Len())

	t.Run("shorter document ranks first", func(t *testing.T) {
		results := idx.Search("zoning", 10)
		require.Len(t, results, 2)
		assert.Equal(t, "zoning map amendments", results[0].Text)
		assert.Equal(t, "zoning ordinance for commercial districts", results[1].Text)
		assert.Greater(t, results[0].RawScore, results[1].RawScore)
	})

	t.Run("ties keep collection order", func(t *testing.T) {
		results := idx.Search("ordinance", 10)
		require.Len(t, results, 2)
		assert.Equal(t, results[0].RawScore, results[1].RawScore)
		assert.Equal(t, "zoning ordinance for commercial districts", results[0].Text)
		assert.Equal(t, "traffic ordinance and parking fees", results[1].Text)
	})

	t.Run("case insensitive", func(t *testing.T) {
		assert.Len(t, idx.Search("ZONING", 10), 2)
	})

	t.Run("limit", func(t *testing.T) {
		results := idx.Search("zoning ordinance", 1)
		require.Len(t, results, 1)
		assert.Equal(t, "zoning ordinance for commercial districts", results[0].Text)
	})

	t.Run("no match", func(t *testing.T) {
		assert.Empty(t, idx.Search("nonexistent", 10))
		assert.Empty(t, idx.Search("", 10))
		assert.Empty(t, idx.Search("zoning", 0))
	})
}

func TestKeywordIndex_NegativeIDFFloor(t *testing.T) {
	idx := NewKeywordIndex([]core.Document{
		{Text: "naga ordinance"},
		{Text: "naga budget"},
		{Text: "naga health"},
	})

	n := 3.0
	unique := math.Log(n-1+0.5) - math.Log(1+0.5)
	common := math.Log(n-3+0.5) - math.Log(3+0.5)
	average := (3*unique + common) / 4

	assert.InDelta(t, unique, idx.idf["budget"], 1e-12)
	assert.InDelta(t, bm25Epsilon*average, idx.idf["naga"], 1e-12)
}

func TestKeywordIndex_Empty(t *testing.T) {
	idx := NewKeywordIndex(nil)
	assert.Empty(t, idx.Search("zoning", 5))
	assert.Empty(t, idx.Scores("zoning"))
}

func TestKeywordRetriever(t *testing.T) {
	ctx := context.Background()

	t.Run("no index", func(t *testing.T) {
		results, err := NewKeywordRetriever(nil).Retrieve(ctx, "zoning", 5)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("with index", func(t *testing.T) {
		results, err := NewKeywordRetriever(NewKeywordIndex(corpus())).Retrieve(ctx, "budget", 5)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "annual budget appropriation", results[0].Text)
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewKeywordRetriever(nil).Retrieve(cctx, "budget", 5)
		var failure *RetrievalFailure
		require.ErrorAs(t, err, &failure)
		assert.Equal(t, StageKeyword, failure.Stage)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoadKeywordIndex(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file disables keyword search", func(t *testing.T) {
		idx, err := LoadKeywordIndex(filepath.Join(dir, "missing.jsonl"))
		require.NoError(t, err)
		assert.Nil(t, idx)
	})

	t.Run("valid corpus", func(t *testing.T) {
		path := filepath.Join(dir, "corpus.jsonl")
		lines := []string{
			`{"id":"a","text":"zoning ordinance","metadata":{"source":"docs/Ordno-2020-01.pdf","page":7}}`,
			``,
			`{"id":"b","text":"budget report","metadata":{"content_type":"abstract"}}`,
		}
		require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

		idx, err := LoadKeywordIndex(path)
		require.NoError(t, err)
		require.NotNil(t, idx)
		assert.Equal(t, 2, idx.Len())
		assert.Equal(t, "7", idx.docs[0].Metadata.Page)
		assert.Equal(t, core.ContentTypeAbstract, idx.docs[1].Metadata.ContentType)
	})

	t.Run("malformed line", func(t *testing.T) {
		path := filepath.Join(dir, "bad.jsonl")
		require.NoError(t, os.WriteFile(path, []byte(`{"id":"a","text":"ok"}`+"\n{not json\n"), 0o644))

		_, err := LoadKeywordIndex(path)
		assert.ErrorIs(t, err, ErrMalformedCorpus)
		assert.Contains(t, err.Error(), "line 2")
	})
}

func TestScanCorpus(t *testing.T) {
	input := `{"id":"a","text":"zoning","metadata":{"source":"a.pdf"},"vector":[0.6,0.8]}
{"id":"b","text":"budget"}
`
	var docs []*core.IndexedDocument
	err := ScanCorpus(strings.NewReader(input), func(doc *core.IndexedDocument) error {
		docs = append(docs, doc)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, []float32{0.6, 0.8}, docs[0].Vector)
	assert.Equal(t, "a.pdf", docs[0].Metadata.Source)
	assert.Nil(t, docs[1].Vector)

	stop := errors.New("stop")
	calls := 0
	err = ScanCorpus(strings.NewReader(input), func(*core.IndexedDocument) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
