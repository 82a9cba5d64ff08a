package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateTurn(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		turn    *ConversationTurn
		wantErr error
	}{
		{
			name: "valid user turn",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleUser,
				Text:      "What is ordinance 2023-05 about?",
				Timestamp: validTime,
			},
		},
		{
			name: "valid assistant turn with ID 0",
			turn: &ConversationTurn{
				ID:        0,
				SessionID: "s1",
				Role:      RoleAssistant,
				Text:      "It regulates zoning.",
				Timestamp: validTime,
			},
		},
		{
			name:    "nil turn",
			turn:    nil,
			wantErr: ErrInvalidTurn,
		},
		{
			name: "missing session",
			turn: &ConversationTurn{
				Role:      RoleUser,
				Text:      "Hello",
				Timestamp: validTime,
			},
			wantErr: ErrEmptySessionID,
		},
		{
			name: "empty text",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleUser,
				Timestamp: validTime,
			},
			wantErr: ErrEmptyContent,
		},
		{
			name: "invalid role",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      Role("system"),
				Text:      "Hello",
				Timestamp: validTime,
			},
			wantErr: ErrInvalidRole,
		},
		{
			name: "future timestamp",
			turn: &ConversationTurn{
				SessionID: "s1",
				Role:      RoleUser,
				Text:      "Hello",
				Timestamp: futureTime,
			},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)

			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateTurn() error = %v, want nil", err)
				}
				return
			}

			if err == nil {
				t.Errorf("ValidateTurn() error = nil, want %v", tt.wantErr)
				return
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateTurn() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	tests := []struct {
		name    string
		doc     *Document
		wantErr error
	}{
		{
			name: "valid document",
			doc:  &Document{ID: "d1", Text: "Section 1. Title."},
		},
		{
			name: "valid document without id",
			doc:  &Document{Text: "Section 1. Title."},
		},
		{
			name:    "nil document",
			doc:     nil,
			wantErr: ErrInvalidDocument,
		},
		{
			name:    "empty text",
			doc:     &Document{ID: "d1"},
			wantErr: ErrEmptyContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDocument(tt.doc)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateDocument() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDocument() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateAnalyticsEvent(t *testing.T) {
	t.Run("valid event", func(t *testing.T) {
		err := ValidateAnalyticsEvent(&AnalyticsEvent{QueryText: "list all ordinances", CreatedAt: time.Now()})
		if err != nil {
			t.Errorf("ValidateAnalyticsEvent() error = %v, want nil", err)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		err := ValidateAnalyticsEvent(&AnalyticsEvent{CreatedAt: time.Now()})
		if !errors.Is(err, ErrEmptyContent) {
			t.Errorf("ValidateAnalyticsEvent() error = %v, want %v", err, ErrEmptyContent)
		}
	})

	t.Run("nil event", func(t *testing.T) {
		err := ValidateAnalyticsEvent(nil)
		if !errors.Is(err, ErrInvalidAnalyticsEvent) {
			t.Errorf("ValidateAnalyticsEvent() error = %v, want %v", err, ErrInvalidAnalyticsEvent)
		}
	})
}

func TestValidateRole(t *testing.T) {
	if err := ValidateRole(RoleUser); err != nil {
		t.Errorf("ValidateRole(user) error = %v", err)
	}
	if err := ValidateRole(RoleAssistant); err != nil {
		t.Errorf("ValidateRole(assistant) error = %v", err)
	}
	if err := ValidateRole(""); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("ValidateRole(\"\") error = %v, want %v", err, ErrInvalidRole)
	}
}

func TestIsValidTimestamp(t *testing.T) {
	if !IsValidTimestamp(time.Now()) {
		t.Error("IsValidTimestamp(now) = false, want true")
	}
	if IsValidTimestamp(time.Now().Add(time.Hour)) {
		t.Error("IsValidTimestamp(now+1h) = true, want false")
	}
}

func TestValidateFeedback(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		fb      *Feedback
		wantErr error
	}{
		{"valid", &Feedback{SessionID: "s-1", Rating: 4, CreatedAt: now}, nil},
		{"lowest rating", &Feedback{SessionID: "s-1", Rating: MinRating, CreatedAt: now}, nil},
		{"nil", nil, ErrInvalidFeedback},
		{"no session", &Feedback{Rating: 3, CreatedAt: now}, ErrEmptySessionID},
		{"zero rating", &Feedback{SessionID: "s-1", CreatedAt: now}, ErrRatingOutOfRange},
		{"rating six", &Feedback{SessionID: "s-1", Rating: 6, CreatedAt: now}, ErrRatingOutOfRange},
		{"future", &Feedback{SessionID: "s-1", Rating: 5, CreatedAt: now.Add(time.Hour)}, ErrInvalidTimestamp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFeedback(tt.fb)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateFeedback() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateFeedback() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
