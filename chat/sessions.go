package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/metrics"
	"github.com/Devcavi19/adal-4naga-app/storage"
)

// FeedbackRequest rates the latest answer in a session.
type FeedbackRequest struct {
	UserID    string
	SessionID string
	Rating    int
	Comment   string
}

// RenameSession sets the title of a session owned by userID.
func (s *Service) RenameSession(ctx context.Context, userID, sessionID, title string) (*core.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	if _, err := s.OpenSession(ctx, Request{UserID: userID, SessionID: sessionID}); err != nil {
		return nil, err
	}
	session, err := s.conversations.RenameSession(ctx, sessionID, title)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to rename chat session: %w", err)
	}
	return session, nil
}

// DeleteSession removes a session owned by userID with all of its turns.
func (s *Service) DeleteSession(ctx context.Context, userID, sessionID string) error {
	if _, err := s.OpenSession(ctx, Request{UserID: userID, SessionID: sessionID}); err != nil {
		return err
	}
	if err := s.conversations.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete chat session: %w", err)
	}
	s.logger.Info("deleted chat session", "session", sessionID, "user", userID)
	return nil
}

// SubmitFeedback attaches a rating to the most recent answer in the session.
func (s *Service) SubmitFeedback(ctx context.Context, req FeedbackRequest) (*core.Feedback, error) {
	if s.analytics == nil {
		return nil, ErrFeedbackUnavailable
	}
	if req.Rating < core.MinRating || req.Rating > core.MaxRating {
		return nil, ErrInvalidRating
	}
	if _, err := s.OpenSession(ctx, Request{UserID: req.UserID, SessionID: req.SessionID}); err != nil {
		return nil, err
	}

	turns, err := s.conversations.GetRecentTurns(ctx, req.SessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat session: %w", err)
	}
	var answer *core.ConversationTurn
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == core.RoleAssistant {
			answer = turns[i]
			break
		}
	}
	if answer == nil {
		return nil, ErrNoAssistantTurn
	}

	fb := &core.Feedback{
		UserID:    req.UserID,
		SessionID: req.SessionID,
		TurnID:    answer.ID,
		Rating:    req.Rating,
		Comment:   strings.TrimSpace(req.Comment),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.analytics.AddFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to store feedback: %w", err)
	}
	metrics.FeedbackReceived(fb.Rating)
	s.logger.Debug("feedback stored", "session", req.SessionID, "turn", answer.ID, "rating", fb.Rating)
	return fb, nil
}
