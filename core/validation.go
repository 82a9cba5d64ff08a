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

import (
	"fmt"
	"time"
)

// ValidateDocument validates a Document.
//
// Validation rules:
//   - Text must not be empty
//
// Metadata is free-form and not validated. An empty ID is allowed; the
// import path derives one from the text.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyContent)
	}
	return nil
}

// ValidateTurn validates a ConversationTurn before it is persisted.
//
// Validation rules:
//   - SessionID must not be empty
//   - Text must not be empty
//   - Role must be user or assistant
//   - Timestamp must not be in the future
func ValidateTurn(turn *ConversationTurn) error {
	if turn == nil {
		return fmt.Errorf("%w: turn is nil", ErrInvalidTurn)
	}
	if turn.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptySessionID)
	}
	if turn.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrEmptyContent)
	}
	if err := ValidateRole(turn.Role); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, err)
	}
	if !IsValidTimestamp(turn.Timestamp) {
		return fmt.Errorf("%w: %w", ErrInvalidTurn, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateRole validates that a Role has a known value.
func ValidateRole(role Role) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("%w: value %q", ErrInvalidRole, role)
	}
	return nil
}

// ValidateAnalyticsEvent validates an AnalyticsEvent.
func ValidateAnalyticsEvent(event *AnalyticsEvent) error {
	if event == nil {
		return fmt.Errorf("%w: event is nil", ErrInvalidAnalyticsEvent)
	}
	if event.QueryText == "" {
		return fmt.Errorf("%w: %w", ErrInvalidAnalyticsEvent, ErrEmptyContent)
	}
	if !IsValidTimestamp(event.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidAnalyticsEvent, ErrInvalidTimestamp)
	}
	return nil
}

// ValidateFeedback validates a Feedback before it is persisted.
func ValidateFeedback(fb *Feedback) error {
	if fb == nil {
		return fmt.Errorf("%w: feedback is nil", ErrInvalidFeedback)
	}
	if fb.SessionID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, ErrEmptySessionID)
	}
	if fb.Rating < MinRating || fb.Rating > MaxRating {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, ErrRatingOutOfRange)
	}
	if !IsValidTimestamp(fb.CreatedAt) {
		return fmt.Errorf("%w: %w", ErrInvalidFeedback, ErrInvalidTimestamp)
	}
	return nil
}

// IsValidTimestamp reports whether t is not in the future.
// A one second skew is tolerated.
func IsValidTimestamp(t time.Time) bool {
	return !t.After(time.Now().Add(time.Second))
}
