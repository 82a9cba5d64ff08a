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


package persistence

import "errors"

var (
	// ErrConversationRepositoryRequired is returned when a conversation repository is not provided.
	ErrConversationRepositoryRequired = errors.New("conversation repository required")

	// ErrAnalyticsRepositoryRequired is returned when an analytics repository is not provided.
	ErrAnalyticsRepositoryRequired = errors.New("analytics repository required")

	// ErrSinkSaturated is returned by Submit when the queue is full.
	ErrSinkSaturated = errors.New("persistence queue saturated")

	// ErrSinkClosed is returned by Submit after Close.
	ErrSinkClosed = errors.New("persistence sink closed")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
