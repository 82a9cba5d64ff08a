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


package retrieval

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrMalformedCorpus is returned when a keyword corpus line cannot be parsed.
	ErrMalformedCorpus = errors.New("malformed keyword corpus")

	// ErrInvalidWeights is returned when a fusion weight is negative.
	ErrInvalidWeights = errors.New("fusion weights must be non-negative")

	// ErrInvalidThreshold is returned when the exhaustive threshold settings are not positive.
	ErrInvalidThreshold = errors.New("threshold multiplier and cap must be positive")
)

// Retrieval stages reported by RetrievalFailure.
const (
	StageEmbed        = "embed"
	StageVectorSearch = "vector_search"
	StageKeyword      = "keyword_search"
)

// RetrievalFailure reports an embedding or index failure at a given stage.
type RetrievalFailure struct {
	Stage string
	Err   error
}

func (f *RetrievalFailure) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", f.Stage, f.Err)
}

func (f *RetrievalFailure) Unwrap() error {
	return f.Err
}
