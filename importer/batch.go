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
	"log/slog"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/persistence"
	"github.com/Devcavi19/adal-4naga-app/storage"
)

// BatchProcessor normalizes and stores one batch of documents.
type BatchProcessor struct {
	repo           storage.DocumentRepository
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each batch write
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.DocumentRepository, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		repo:           repo,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process normalizes the vectors of docs and writes them in one transaction.
func (bp *BatchProcessor) Process(ctx context.Context, docs []*core.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		doc.Vector = NormalizeVector(doc.Vector)
	}

	err := persistence.Retry(ctx, bp.logger, bp.maxRetries, bp.retryBaseDelay, func() error {
		return bp.repo.AddDocuments(ctx, docs...)
	})
	if err != nil {
		return fmt.Errorf("failed to store %d documents: %w", len(docs), err)
	}
	return nil
}
