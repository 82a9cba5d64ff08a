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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTurn indicates a ConversationTurn failed validation.
	ErrInvalidTurn = errors.New("invalid conversation turn")

	// ErrInvalidAnalyticsEvent indicates an AnalyticsEvent failed validation.
	ErrInvalidAnalyticsEvent = errors.New("invalid analytics event")

	// ErrInvalidTimestamp indicates a timestamp is in the future.
	ErrInvalidTimestamp = errors.New("timestamp cannot be in the future")

	// ErrEmptyContent indicates a required text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")

	// ErrEmptySessionID indicates a turn is not attached to a session.
	ErrEmptySessionID = errors.New("session id cannot be empty")

	// ErrInvalidFeedback indicates a Feedback failed validation.
	ErrInvalidFeedback = errors.New("invalid feedback")

	// ErrRatingOutOfRange indicates a rating outside MinRating..MaxRating.
	ErrRatingOutOfRange = errors.New("rating must be between 1 and 5")
)
