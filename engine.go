// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package adal wires the answer service together: the local Badger store,
// the vector and keyword indexes, the AI provider, the retrieval controller,
// the answer stream driver, the persistence sink, the chat service and the
// maintenance jobs.
package adal

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Devcavi19/adal-4naga-app/ai"
	"github.com/Devcavi19/adal-4naga-app/ai/openai"
	"github.com/Devcavi19/adal-4naga-app/chat"
	"github.com/Devcavi19/adal-4naga-app/config"
	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/generation"
	"github.com/Devcavi19/adal-4naga-app/importer"
	"github.com/Devcavi19/adal-4naga-app/maintenance"
	"github.com/Devcavi19/adal-4naga-app/persistence"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/Devcavi19/adal-4naga-app/server"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/Devcavi19/adal-4naga-app/storage/badger"
	"github.com/Devcavi19/adal-4naga-app/storage/milvus"
	"github.com/Devcavi19/adal-4naga-app/storage/qdrant"
	"golang.org/x/sync/errgroup"
)

type Engine struct {
	cfg           *config.Config
	backend       *badger.Backend
	documents     *badger.DocumentRepository
	conversations *badger.ConversationRepository
	analytics     *badger.AnalyticsRepository
	checkpoints   *badger.CheckpointRepository
	provider      ai.AIProvider
	vectors       storage.VectorIndex
	controller    *retrieval.Controller
	driver        *generation.Driver
	sink          *persistence.Sink
	chat          *chat.Service
	runner        *maintenance.Runner
	logger        *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	vectors  storage.VectorIndex
	inMemory bool
	logger   *slog.Logger
}

// WithProvider replaces the OpenAI-compatible provider built from the config.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithVectorIndex replaces the vector index selected by the config.
func WithVectorIndex(index storage.VectorIndex) EngineOption {
	return func(o *engineOptions) {
		o.vectors = index
	}
}

// WithInMemoryStorage keeps the Badger store in memory.
func WithInMemoryStorage() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		vectors: options.vectors,
		logger:  options.logger.With("component", "engine"),
	}
	if err := e.open(options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) open(options *engineOptions) error {
	logger := options.logger
	var err error

	if e.backend, err = badger.OpenBackend(e.cfg.Storage.Path, options.inMemory); err != nil {
		return err
	}
	e.documents = badger.NewDocumentRepository(e.backend)
	e.checkpoints = badger.NewCheckpointRepository(e.backend)
	if e.conversations, err = badger.NewConversationRepository(e.backend); err != nil {
		return err
	}
	if e.analytics, err = badger.NewAnalyticsRepository(e.backend, badger.WithRetention(e.cfg.Storage.Retention)); err != nil {
		return err
	}

	e.provider = options.provider
	if e.provider == nil {
		if e.provider, err = openai.NewProvider(e.cfg.AIConfig()); err != nil {
			return err
		}
	}

	rc := e.cfg.Retrieval
	if e.controller, err = retrieval.NewController(
		retrieval.WithLogger(logger),
		retrieval.WithK(rc.SpecificK, rc.ExhaustiveK),
		retrieval.WithThreshold(rc.ThresholdMultiplier, rc.ThresholdCap),
	); err != nil {
		return err
	}

	gc := e.cfg.Generation
	if e.driver, err = generation.NewDriver(e.provider.Generator(),
		generation.WithLogger(logger),
		generation.WithMaxChunks(gc.MaxChunks),
		generation.WithInactivityTimeout(gc.InactivityTimeout),
	); err != nil {
		return err
	}

	sc := e.cfg.Sink
	sinkOpts := []persistence.Option{
		persistence.WithLogger(logger),
		persistence.WithQueueSize(sc.QueueSize),
		persistence.WithRetry(sc.MaxAttempts, sc.BaseDelay),
		persistence.WithKeywordCount(sc.KeywordCount),
	}
	if sc.PoolSize > 0 {
		sinkOpts = append(sinkOpts, persistence.WithPoolSize(sc.PoolSize))
	}
	if e.sink, err = persistence.NewSink(e.conversations, e.analytics, sinkOpts...); err != nil {
		return err
	}

	if e.chat, err = chat.NewService(e.controller, e.driver, e.conversations,
		chat.WithLogger(logger),
		chat.WithSink(e.sink),
		chat.WithAnalytics(e.analytics),
		chat.WithHistory(gc.HistoryExchanges),
		chat.WithFallback("", gc.FallbackDelay),
	); err != nil {
		return err
	}

	mc := e.cfg.Maintenance
	if e.runner, err = maintenance.NewRunner(e.analytics, e.checkpoints,
		maintenance.WithLogger(logger),
		maintenance.WithIntervals(mc.KeywordInterval, mc.AnomalyInterval),
		maintenance.WithGarbageCollector(e.backend, mc.GCInterval),
		maintenance.WithSpikeWindow(mc.SpikeWindow),
		maintenance.WithThresholds(mc.SpikeMultiplier, mc.ErrorRatePercent),
		maintenance.WithSatisfaction(mc.SatisfactionPercent, mc.MinRatings),
		maintenance.WithKeywordCount(sc.KeywordCount),
	); err != nil {
		return err
	}
	return nil
}

// LoadIndex opens the configured vector index, builds the keyword index and
// installs the fusion engine. Until it succeeds the chat service answers
// with the unavailable fallback.
func (e *Engine) LoadIndex(ctx context.Context) error {
	if e.vectors == nil {
		vectors, err := e.openVectorIndex(ctx)
		if err != nil {
			return err
		}
		e.vectors = vectors
	}

	keywords, err := e.loadKeywordIndex(ctx)
	if err != nil {
		return err
	}

	semantic, err := retrieval.NewSemanticRetriever(e.provider.Embedder(), e.vectors, e.logger)
	if err != nil {
		return err
	}
	fusion, err := retrieval.NewFusion(semantic, retrieval.NewKeywordRetriever(keywords),
		retrieval.WithWeights(e.cfg.Retrieval.SemanticWeight, e.cfg.Retrieval.KeywordWeight),
		retrieval.WithFusionLogger(e.logger))
	if err != nil {
		return err
	}
	e.controller.Install(fusion)

	keywordDocs := 0
	if keywords != nil {
		keywordDocs = keywords.Len()
	}
	e.logger.Info("retrieval initialized", "vector_backend", e.cfg.Vector.Backend, "keyword_documents", keywordDocs)
	return nil
}

func (e *Engine) openVectorIndex(ctx context.Context) (storage.VectorIndex, error) {
	vc := e.cfg.Vector
	switch vc.Backend {
	case config.BackendQdrant:
		opts := []qdrant.Option{
			qdrant.WithLogger(e.logger),
			qdrant.WithTimeout(vc.Qdrant.Timeout),
			qdrant.WithPayloadFields(vc.Qdrant.TextField, vc.Qdrant.MetadataField, vc.Qdrant.IDField),
		}
		if vc.Qdrant.APIKey != "" {
			opts = append(opts, qdrant.WithAPIKey(vc.Qdrant.APIKey))
		}
		return qdrant.NewIndex(vc.Qdrant.URL, vc.Qdrant.Collection, opts...)
	case config.BackendMilvus:
		return milvus.Open(ctx, milvus.Config{
			Address:    vc.Milvus.Address,
			Username:   vc.Milvus.Username,
			Password:   vc.Milvus.Password,
			Database:   vc.Milvus.Database,
			Collection: vc.Milvus.Collection,
			Timeout:    vc.Milvus.Timeout,
			NProbe:     vc.Milvus.NProbe,
			MetricType: vc.Milvus.MetricType,
		}, milvus.WithLogger(e.logger))
	default:
		count, err := e.documents.CountDocuments(ctx)
		if err != nil {
			return nil, err
		}
		if count == 0 {
			e.logger.Warn("local document store is empty, run import-index first")
		}
		return e.documents, nil
	}
}

// loadKeywordIndex reads the configured corpus file, or the stored
// documents when no file is configured. A nil index disables keyword search.
func (e *Engine) loadKeywordIndex(ctx context.Context) (*retrieval.KeywordIndex, error) {
	if path := e.cfg.Retrieval.CorpusPath; path != "" {
		index, err := retrieval.LoadKeywordIndex(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load keyword corpus: %w", err)
		}
		if index == nil {
			e.logger.Warn("keyword corpus not found, keyword search disabled", "path", path)
		}
		return index, nil
	}

	var docs []core.Document
	err := e.documents.ForEachDocument(ctx, func(doc *core.Document) error {
		docs = append(docs, *doc)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read stored documents: %w", err)
	}
	if len(docs) == 0 {
		e.logger.Warn("no documents for keyword index, keyword search disabled")
		return nil, nil
	}
	return retrieval.NewKeywordIndex(docs), nil
}

// Serve runs the HTTP server and, when enabled, the maintenance jobs until
// ctx is done.
func (e *Engine) Serve(ctx context.Context, opts ...server.Option) error {
	sc := e.cfg.Server
	opts = append([]server.Option{
		server.WithLogger(e.logger),
		server.WithAddr(sc.Addr),
		server.WithTimeouts(sc.ReadHeaderTimeout, sc.ShutdownTimeout),
	}, opts...)
	srv, err := server.NewServer(e.chat, opts...)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	if e.cfg.Maintenance.Enabled {
		g.Go(func() error { return e.runner.Run(ctx) })
	}
	return g.Wait()
}

func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.Server.ShutdownTimeout)
	defer cancel()

	// Drain the sink before the repositories it writes to are closed
	if e.sink != nil {
		if err := e.sink.Close(ctx); err != nil {
			e.logger.Error("error closing persistence sink", "err", err)
		}
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
		}
	}
	if e.vectors != nil {
		if err := e.vectors.Close(); err != nil {
			e.logger.Error("error closing vector index", "err", err)
		}
	}

	if e.analytics != nil {
		if err := e.analytics.Close(); err != nil {
			e.logger.Error("error closing analytics repository", "err", err)
			return err
		}
	}
	if e.conversations != nil {
		if err := e.conversations.Close(); err != nil {
			e.logger.Error("error closing conversation repository", "err", err)
			return err
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			return err
		}
	}
	return nil
}

func (e *Engine) Chat() *chat.Service {
	return e.chat
}

func (e *Engine) Controller() *retrieval.Controller {
	return e.controller
}

func (e *Engine) Runner() *maintenance.Runner {
	return e.runner
}

func (e *Engine) Sink() *persistence.Sink {
	return e.sink
}

func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.documents
}

func (e *Engine) ConversationRepository() storage.ConversationRepository {
	return e.conversations
}

func (e *Engine) AnalyticsRepository() storage.AnalyticsRepository {
	return e.analytics
}

func (e *Engine) NewImporter(config *importer.Config, progress io.Writer) (*importer.Importer, error) {
	return importer.NewImporter(e.documents, config, progress)
}
