package badger

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/dgraph-io/badger/v4"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
// Search is a brute-force dot product scan, suitable for corpora of a few
// hundred thousand normalized vectors.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close is a no-op; the backend is closed by its owner.
func (r *DocumentRepository) Close() error {
	return nil
}

// AddDocuments inserts or replaces documents by ID.
func (r *DocumentRepository) AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, doc := range docs {
			if err := core.ValidateDocument(&doc.Document); err != nil {
				return err
			}
			if doc.ID == "" {
				doc.ID = strconv.FormatUint(uint64(core.IDFromContent(doc.Text)), 16)
			}
			value, err := storage.Marshal(doc)
			if err != nil {
				return err
			}
			if err := tx.Set(makeDocumentKey(doc.ID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	var doc *core.IndexedDocument
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readValue(tx, makeDocumentKey(id), storage.Unmarshal[core.IndexedDocument])
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return &doc.Document, nil
}

// ForEachDocument calls fn for every stored document in key order.
func (r *DocumentRepository) ForEachDocument(ctx context.Context, fn func(*core.Document) error) error {
	return r.scan(ctx, func(doc *core.IndexedDocument) error {
		return fn(&doc.Document)
	})
}

// CountDocuments returns the number of stored documents.
func (r *DocumentRepository) CountDocuments(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Search finds the k stored documents whose vectors have the highest dot
// product with vector. Vectors are expected to be unit length, which makes
// the score a cosine similarity.
func (r *DocumentRepository) Search(ctx context.Context, vector []float32, k int) ([]core.ScoredDocument, error) {
	if k <= 0 {
		return []core.ScoredDocument{}, nil
	}

	var results []core.ScoredDocument
	err := r.scan(ctx, func(doc *core.IndexedDocument) error {
		// Skip documents without embeddings
		if len(doc.Vector) == 0 {
			return nil
		}
		if len(doc.Vector) != len(vector) {
			return fmt.Errorf("%w: query has %d dimensions, document %q has %d",
				storage.ErrDimensionMismatch, len(vector), doc.ID, len(doc.Vector))
		}
		results = append(results, core.ScoredDocument{
			Document: doc.Document,
			RawScore: float64(dotProduct(vector, doc.Vector)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b core.ScoredDocument) int {
		switch {
		case a.RawScore > b.RawScore:
			return -1
		case a.RawScore < b.RawScore:
			return 1
		default:
			return 0
		}
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (r *DocumentRepository) scan(ctx context.Context, fn func(*core.IndexedDocument) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var doc *core.IndexedDocument
			err := iter.Item().Value(func(val []byte) error {
				var err error
				doc, err = storage.Unmarshal[core.IndexedDocument](val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(doc); err != nil {
				return err
			}
		}
		return nil
	}, false)
}

// dotProduct calculates the dot product of two vectors of equal length.
func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
