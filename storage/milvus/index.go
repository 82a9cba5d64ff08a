// Package milvus serves a prebuilt Milvus collection as a storage.VectorIndex.
package milvus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// Field names expected in the collection.
const (
	FieldEmbedding   = "embedding"
	FieldDocumentID  = "doc_id"
	FieldText        = "text"
	FieldSource      = "source"
	FieldPage        = "page"
	FieldChapter     = "chapter"
	FieldContentType = "content_type"
	FieldURL         = "url"
)

var outputFields = []string{
	FieldDocumentID, FieldText, FieldSource, FieldPage, FieldChapter, FieldContentType, FieldURL,
}

// Config holds connection settings.
type Config struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	Timeout    time.Duration
	// NProbe is passed to IVF indexes as a search parameter.
	NProbe int
	// MetricType must match the collection's index: COSINE, IP or L2.
	MetricType string
}

// Metric types accepted by Open.
const (
	MetricCosine = "COSINE"
	MetricIP     = "IP"
	MetricL2     = "L2"
)

// Index is a read-only storage.VectorIndex backed by a Milvus collection.
type Index struct {
	client     *milvusclient.Client
	collection string
	nprobe     string
	metric     string
	timeout    time.Duration
	logger     *slog.Logger

	// load loads the collection into memory. A failed load is retried on the next search.
	load   func(ctx context.Context) error
	mu     sync.Mutex
	loaded bool
}

var _ storage.VectorIndex = (*Index)(nil)

// Option configures an Index.
type Option func(*Index) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(i *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		i.logger = logger
		return nil
	}
}

// Open connects to Milvus and returns an Index over cfg.Collection.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Index, error) {
	if cfg.Address == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: milvus address and collection are required", storage.ErrInvalidQuery)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.NProbe <= 0 {
		cfg.NProbe = 16
	}
	switch cfg.MetricType {
	case "":
		cfg.MetricType = MetricCosine
	case MetricCosine, MetricIP, MetricL2:
	default:
		return nil, fmt.Errorf("%w: unsupported milvus metric type %q", storage.ErrInvalidQuery, cfg.MetricType)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	client, err := milvusclient.New(connectCtx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to milvus: %w", storage.ErrIndexUnavailable, err)
	}

	i := &Index{
		client:     client,
		collection: cfg.Collection,
		nprobe:     strconv.Itoa(cfg.NProbe),
		metric:     cfg.MetricType,
		timeout:    cfg.Timeout,
		logger:     slog.Default(),
	}
	i.load = i.loadCollection
	for _, opt := range opts {
		if err := opt(i); err != nil {
			client.Close(ctx)
			return nil, err
		}
	}
	i.logger = i.logger.With("component", "milvus-index", "collection", cfg.Collection)
	return i, nil
}

// Close closes the Milvus connection.
func (i *Index) Close() error {
	return i.client.Close(context.Background())
}

// ensureLoaded loads the collection into memory on first use.
// The load runs under its own timeout, detached from the caller's cancellation.
func (i *Index) ensureLoaded(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.loaded {
		return nil
	}

	loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), i.timeout)
	defer cancel()
	if err := i.load(loadCtx); err != nil {
		return err
	}
	i.loaded = true
	return nil
}

func (i *Index) loadCollection(ctx context.Context) error {
	task, err := i.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(i.collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := task.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// similarity converts a Milvus score to a value where larger is closer.
func similarity(metric string, score float32) float64 {
	if metric == MetricL2 {
		return 1.0 / (1.0 + float64(score))
	}
	return float64(score)
}

// Search returns up to k documents nearest to vector, best first.
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]core.ScoredDocument, error) {
	if k <= 0 {
		return []core.ScoredDocument{}, nil
	}
	if err := i.ensureLoaded(ctx); err != nil {
		i.logger.Error("collection unavailable", "err", err)
		return nil, fmt.Errorf("%w: %w", storage.ErrIndexUnavailable, err)
	}

	results, err := i.client.Search(ctx, milvusclient.NewSearchOption(
		i.collection,
		k,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(FieldEmbedding).
		WithSearchParam("nprobe", i.nprobe).
		WithSearchParam("metric_type", i.metric).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %w", storage.ErrIndexUnavailable, err)
	}
	if len(results) == 0 {
		return []core.ScoredDocument{}, nil
	}

	set := results[0]
	docs := make([]core.ScoredDocument, 0, set.ResultCount)
	for row := 0; row < set.ResultCount; row++ {
		fields := make(map[string]any, len(outputFields))
		for _, field := range set.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				fields[col.Name()] = col.Data()[row]
			case *column.ColumnInt64:
				fields[col.Name()] = col.Data()[row]
			}
		}

		doc := core.Document{Metadata: core.MetadataFromMap(fields)}
		doc.ID, _ = fields[FieldDocumentID].(string)
		doc.Text, _ = fields[FieldText].(string)
		if doc.ID == "" {
			if ids, ok := set.IDs.(*column.ColumnInt64); ok {
				doc.ID = strconv.FormatInt(ids.Data()[row], 10)
			}
		}
		docs = append(docs, core.ScoredDocument{
			Document: doc,
			RawScore: similarity(i.metric, set.Scores[row]),
		})
	}
	return docs, nil
}
