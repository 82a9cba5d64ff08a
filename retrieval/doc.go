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


// Package retrieval implements hybrid document retrieval.
//
// A query runs through two retrievers concurrently:
//
//   - SemanticRetriever embeds the query and searches a storage.VectorIndex
//   - KeywordRetriever scores a fixed in-memory collection with BM25 Okapi
//
// Fusion normalizes each result list to [0,1], merges documents by text and
// ranks them by a weighted hybrid score (0.7 semantic, 0.3 keyword by
// default). Controller sits on top and adapts the number of results to the
// query intent: "list all ..." style queries fetch up to 50 results and drop
// candidates whose raw semantic score exceeds an adaptive threshold.
//
// Usage:
//
//	semantic, _ := retrieval.NewSemanticRetriever(embedder, index, logger)
//	keywords, _ := retrieval.LoadKeywordIndex("index/corpus.jsonl")
//	fusion, _ := retrieval.NewFusion(semantic, retrieval.NewKeywordRetriever(keywords))
//
//	controller, _ := retrieval.NewController()
//	controller.Install(fusion)
//	outcome, err := controller.Retrieve(ctx, "list all ordinances about zoning")
//
// A controller without an installed Fusion returns StatusNotInitialized,
// which callers must distinguish from a ready controller with no matches.
package retrieval
