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


// Package ai provides abstractions for the AI services used by adal.
//
// This package defines interfaces for query embedding and streaming answer
// generation so retrieval and generation logic depend on abstractions rather
// than a particular model vendor.
//
// The package is designed around three interfaces:
//
//   - Embedder: Generates vector embeddings from text
//   - Generator: Streams an answer as a sequence of text chunks
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder,
// openai.NewGenerator) return INTERFACE types. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockGenerator) return CONCRETE types so
// tests can inject behavior and inspect calls.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "Hello world")
//	for chunk, err := range provider.Generator().Stream(ctx, ai.GenerationRequest{System: sys, Prompt: p}) {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Print(chunk)
//	}
package ai
