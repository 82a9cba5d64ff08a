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


package badger

// MemoryRepositories bundles in-memory repositories for tests.
type MemoryRepositories struct {
	Backend       *Backend
	Documents     *DocumentRepository
	Conversations *ConversationRepository
	Analytics     *AnalyticsRepository
	Checkpoints   *CheckpointRepository
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must call Close when done.
func NewMemoryRepositories(opts ...AnalyticsOption) (*MemoryRepositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	conversations, err := NewConversationRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	analytics, err := NewAnalyticsRepository(backend, opts...)
	if err != nil {
		conversations.Close()
		backend.Close()
		return nil, err
	}

	return &MemoryRepositories{
		Backend:       backend,
		Documents:     NewDocumentRepository(backend),
		Conversations: conversations,
		Analytics:     analytics,
		Checkpoints:   NewCheckpointRepository(backend),
	}, nil
}

// Close releases every repository and the backend.
func (m *MemoryRepositories) Close() error {
	m.Analytics.Close()
	m.Conversations.Close()
	return m.Backend.Close()
}
