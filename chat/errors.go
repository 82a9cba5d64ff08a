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


package chat

import "errors"

var (
	// ErrControllerRequired is returned when a retrieval controller is not provided.
	ErrControllerRequired = errors.New("retrieval controller required")

	// ErrDriverRequired is returned when a stream driver is not provided.
	ErrDriverRequired = errors.New("stream driver required")

	// ErrConversationRepositoryRequired is returned when a conversation repository is not provided.
	ErrConversationRepositoryRequired = errors.New("conversation repository required")

	// ErrEmptyMessage is returned when the question is blank.
	ErrEmptyMessage = errors.New("message cannot be empty")

	// ErrContentBlocked is returned when the question fails content moderation.
	ErrContentBlocked = errors.New("content blocked by moderation")

	// ErrSessionNotFound is returned when the session does not exist or
	// belongs to another user.
	ErrSessionNotFound = errors.New("chat session not found")

	// ErrNotInitialized is returned by Search before retrieval is ready.
	ErrNotInitialized = errors.New("retrieval not initialized")

	// ErrEmptyTitle is returned when a session is renamed to a blank title.
	ErrEmptyTitle = errors.New("title is required")

	// ErrInvalidRating is returned when a rating is outside 1..5.
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")

	// ErrNoAssistantTurn is returned when feedback targets a session
	// that has no answer yet.
	ErrNoAssistantTurn = errors.New("no bot message found in this session")

	// ErrFeedbackUnavailable is returned when no analytics repository is configured.
	ErrFeedbackUnavailable = errors.New("feedback storage not configured")
)
