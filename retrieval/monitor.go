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

import "github.com/Devcavi19/adal-4naga-app/core"

// FusionMonitor receives callbacks at each stage of a hybrid search.
// Callbacks are made from the calling goroutine, in order.
type FusionMonitor interface {
	Start(query string, k int)
	AfterSemanticSearch(results []core.ScoredDocument, err error)
	AfterKeywordSearch(results []core.ScoredDocument, err error)
	Merged(candidates int)
	Finish(results []core.FusedResult)
}

// noopMonitor is a no-op implementation of FusionMonitor
type noopMonitor struct{}

var _ FusionMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ int)                                {}
func (n *noopMonitor) AfterSemanticSearch(_ []core.ScoredDocument, _ error) {}
func (n *noopMonitor) AfterKeywordSearch(_ []core.ScoredDocument, _ error)  {}
func (n *noopMonitor) Merged(_ int)                                         {}
func (n *noopMonitor) Finish(_ []core.FusedResult)                          {}
