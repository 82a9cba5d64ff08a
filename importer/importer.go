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


package importer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/Devcavi19/adal-4naga-app/storage"
)

// Config holds configuration for an import.
type Config struct {
	// BatchSize is the number of documents written per transaction
	BatchSize int

	// ReportInterval is how often to report progress (number of documents)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for each batch write
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 500,
		MaxRetries:     3,
		RetryDelay:     100 * time.Millisecond,
	}
}

// Stats summarizes an import.
type Stats struct {
	Imported  int
	Skipped   int
	Dimension int
	Elapsed   time.Duration
}

// Importer copies a document export into a DocumentRepository.
type Importer struct {
	repo      storage.DocumentRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewImporter creates a new importer.
// progress: where to write progress output (typically os.Stderr)
func NewImporter(repo storage.DocumentRepository, config *Config, progress io.Writer) (*Importer, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", config.BatchSize)
	}
	if progress == nil {
		progress = io.Discard
	}
	logger := slog.Default().With("component", "importer")
	return &Importer{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, config.MaxRetries, config.RetryDelay, logger),
		logger:    logger,
	}, nil
}

// Run reads the export from r and stores every record that carries a vector.
// Batches already written stay written when a later batch fails.
func (im *Importer) Run(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats

	tracker := NewProgressTracker(im.progress, im.config.ReportInterval)

	batch := make([]*core.IndexedDocument, 0, im.config.BatchSize)
	flush := func() error {
		if err := im.processor.Process(ctx, batch); err != nil {
			return err
		}
		tracker.Stored(len(batch))
		batch = make([]*core.IndexedDocument, 0, im.config.BatchSize)
		return nil
	}

	err := retrieval.ScanCorpus(r, func(doc *core.IndexedDocument) error {
		if len(doc.Vector) == 0 {
			tracker.Skipped()
			im.logger.Debug("skipping document without vector", "id", doc.ID)
			return nil
		}
		if stats.Dimension == 0 {
			stats.Dimension = len(doc.Vector)
		} else if len(doc.Vector) != stats.Dimension {
			return fmt.Errorf("%w: document %q has %d dimensions, expected %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), stats.Dimension)
		}
		batch = append(batch, doc)
		if len(batch) >= im.config.BatchSize {
			return flush()
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	stats.Elapsed = tracker.Done()
	stats.Imported, stats.Skipped = tracker.Counts()
	if err != nil {
		return stats, err
	}

	fmt.Fprintf(im.progress, "Import complete. Stored %d documents (%d skipped without vectors) in %v\n",
		stats.Imported, stats.Skipped, stats.Elapsed.Round(time.Millisecond))
	im.logger.Info("import finished", "imported", stats.Imported, "skipped", stats.Skipped, "dimension", stats.Dimension)
	return stats, nil
}
