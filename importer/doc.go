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


// Package importer loads an already-built document export into the local
// Badger document store.
//
// The export is a JSON-lines file with one record per passage:
//
//	{"id": "...", "text": "...", "metadata": {...}, "vector": [...]}
//
// Vectors are normalized on the way in so the local index can rank by dot
// product. Records without a vector are skipped. Every vector must have the
// dimension of the first one.
//
// Example:
//
//	imp := importer.NewImporter(repos.Documents, importer.DefaultConfig(), os.Stderr)
//	stats, err := imp.Run(ctx, file)
package importer
