package retrieval

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"slices"
	"strings"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/bytedance/sonic"
)

// BM25 Okapi parameters.
const (
	bm25K1      = 1.5
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

// maxCorpusLine bounds a single JSON line of the keyword corpus.
const maxCorpusLine = 4 * 1024 * 1024

// KeywordIndex is a BM25 Okapi index over a fixed document collection.
// It is immutable after construction and safe for concurrent use.
type KeywordIndex struct {
	docs    []core.Document
	freqs   []map[string]int
	lengths []int
	avgLen  float64
	idf     map[string]float64
}

// NewKeywordIndex builds an index over docs. Tokenization is lowercase
// whitespace splitting without stemming.
func NewKeywordIndex(docs []core.Document) *KeywordIndex {
	idx := &KeywordIndex{
		docs:    slices.Clone(docs),
		freqs:   make([]map[string]int, len(docs)),
		lengths: make([]int, len(docs)),
		idf:     make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, doc := range idx.docs {
		tokens := tokenize(doc.Text)
		freq := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			freq[tok]++
		}
		for tok := range freq {
			docFreq[tok]++
		}
		idx.freqs[i] = freq
		idx.lengths[i] = len(tokens)
		total += len(tokens)
	}
	if len(docs) > 0 {
		idx.avgLen = float64(total) / float64(len(docs))
	}

	// Terms present in more than half the corpus get a negative IDF, which is
	// replaced by a floor of epsilon times the average IDF.
	n := float64(len(docs))
	var idfSum float64
	var negative []string
	for tok, df := range docFreq {
		v := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		idx.idf[tok] = v
		idfSum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}
	if len(idx.idf) > 0 {
		floor := bm25Epsilon * idfSum / float64(len(idx.idf))
		for _, tok := range negative {
			idx.idf[tok] = floor
		}
	}
	return idx
}

// Len returns the number of indexed documents.
func (idx *KeywordIndex) Len() int {
	return len(idx.docs)
}

// Scores returns the BM25 score of every document for query, in collection order.
func (idx *KeywordIndex) Scores(query string) []float64 {
	scores := make([]float64, len(idx.docs))
	if idx.avgLen == 0 {
		return scores
	}
	for _, tok := range tokenize(query) {
		idf, ok := idx.idf[tok]
		if !ok {
			continue
		}
		for i, freq := range idx.freqs {
			tf := float64(freq[tok])
			if tf == 0 {
				continue
			}
			norm := 1 - bm25B + bm25B*float64(idx.lengths[i])/idx.avgLen
			scores[i] += idf * tf * (bm25K1 + 1) / (tf + bm25K1*norm)
		}
	}
	return scores
}

// Search returns up to k documents with a positive score, best first.
// Ties keep collection order.
func (idx *KeywordIndex) Search(query string, k int) []core.ScoredDocument {
	if k <= 0 {
		return []core.ScoredDocument{}
	}
	scores := idx.Scores(query)
	order := make([]int, 0, len(scores))
	for i, s := range scores {
		if s > 0 {
			order = append(order, i)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case scores[a] > scores[b]:
			return -1
		case scores[a] < scores[b]:
			return 1
		default:
			return 0
		}
	})
	if len(order) > k {
		order = order[:k]
	}

	results := make([]core.ScoredDocument, len(order))
	for i, pos := range order {
		results[i] = core.ScoredDocument{Document: idx.docs[pos], RawScore: scores[pos]}
	}
	return results
}

func tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// corpusLine is one record of the JSON-lines corpus. Metadata values are
// loosely typed since page numbers may be stored as numbers. Vector is only
// present in exports meant for the local vector index.
type corpusLine struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
	Vector   []float32      `json:"vector,omitempty"`
}

// LoadKeywordIndex reads a JSON-lines corpus and builds a KeywordIndex.
// A missing file returns a nil index and no error, which disables keyword search.
func LoadKeywordIndex(path string) (*KeywordIndex, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	docs, err := ReadCorpus(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return NewKeywordIndex(docs), nil
}

// ReadCorpus decodes JSON-lines corpus records. Blank lines are skipped.
func ReadCorpus(r io.Reader) ([]core.Document, error) {
	var docs []core.Document
	err := ScanCorpus(r, func(doc *core.IndexedDocument) error {
		docs = append(docs, doc.Document)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ScanCorpus calls fn for each corpus record in order, including its vector
// when present. Scanning stops at the first error.
func ScanCorpus(r io.Reader, fn func(*core.IndexedDocument) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCorpusLine)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec corpusLine
		if err := sonic.UnmarshalString(line, &rec); err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrMalformedCorpus, lineNo, err)
		}
		doc := &core.IndexedDocument{
			Document: core.Document{
				ID:       rec.ID,
				Text:     rec.Text,
				Metadata: core.MetadataFromMap(rec.Metadata),
			},
			Vector: rec.Vector,
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// KeywordRetriever adapts a KeywordIndex to the Retriever interface.
// A nil index yields no results.
type KeywordRetriever struct {
	index *KeywordIndex
}

var _ Retriever = (*KeywordRetriever)(nil)

// NewKeywordRetriever creates a KeywordRetriever. index may be nil.
func NewKeywordRetriever(index *KeywordIndex) *KeywordRetriever {
	return &KeywordRetriever{index: index}
}

// Retrieve returns up to k documents with a positive BM25 score.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string, k int) ([]core.ScoredDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RetrievalFailure{Stage: StageKeyword, Err: err}
	}
	if r == nil || r.index == nil {
		return []core.ScoredDocument{}, nil
	}
	return r.index.Search(query, k), nil
}
