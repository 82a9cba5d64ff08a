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


// Package storage provides the storage abstraction layer for adal.
//
// This package defines repository interfaces that decouple persistence from
// retrieval and chat logic, so different backends can be used interchangeably.
//
// # Constructor Return Type Pattern
//
// Public constructors in backend packages return the interface they implement:
//
//	index, err := qdrant.NewIndex(cfg)  // returns storage.VectorIndex
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Architecture
//
//   - VectorIndex: Read-only nearest-neighbour search over document embeddings
//   - DocumentRepository: Locally stored documents that also act as a VectorIndex
//   - ConversationRepository: Chat sessions and their turns
//   - AnalyticsRepository: Analytics events, error logs and notifications with retention
//   - CheckpointRepository: Background job progress
//
// Backends:
//
//   - storage/badger: Embedded BadgerDB for everything above
//   - storage/qdrant: Qdrant REST API as a VectorIndex
//   - storage/milvus: Milvus as a VectorIndex
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
