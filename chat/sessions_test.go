package chat

import (
	"context"
	"testing"
	"time"

	"github.com/Devcavi19/adal-4naga-app/ai/mock"
	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/generation"
	"github.com/Devcavi19/adal-4naga-app/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedSession(t *testing.T, f *fixture, userID string, roles ...core.Role) *core.Session {
	t.Helper()
	ctx := context.Background()
	session, err := f.repos.Conversations.CreateSession(ctx, &core.Session{UserID: userID, Title: "Business permits"})
	require.NoError(t, err)
	base := time.Now().UTC().Add(-time.Hour)
	for i, role := range roles {
		_, err = f.repos.Conversations.AddTurns(ctx, &core.ConversationTurn{
			SessionID: session.ID,
			Role:      role,
			Text:      "turn",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}
	return session
}

func TestRenameSession(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	ctx := context.Background()
	session := seedSession(t, f, "u-1")

	renamed, err := f.service.RenameSession(ctx, "u-1", session.ID, "  Permit fees  ")
	require.NoError(t, err)
	assert.Equal(t, "Permit fees", renamed.Title)

	_, err = f.service.RenameSession(ctx, "u-1", session.ID, "   ")
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = f.service.RenameSession(ctx, "u-2", session.ID, "stolen")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	got, err := f.repos.Conversations.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Permit fees", got.Title)
}

func TestDeleteSession(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	ctx := context.Background()
	session := seedSession(t, f, "u-1", core.RoleUser, core.RoleAssistant)

	assert.ErrorIs(t, f.service.DeleteSession(ctx, "u-2", session.ID), ErrSessionNotFound)
	require.NoError(t, f.service.DeleteSession(ctx, "u-1", session.ID))

	sessions, err := f.service.Sessions(ctx, "u-1", 10)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	assert.ErrorIs(t, f.service.DeleteSession(ctx, "u-1", session.ID), ErrSessionNotFound)
}

func TestSubmitFeedback(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	ctx := context.Background()
	session := seedSession(t, f, "u-1", core.RoleUser, core.RoleAssistant, core.RoleUser, core.RoleAssistant)

	turns, err := f.repos.Conversations.GetRecentTurns(ctx, session.ID, 0)
	require.NoError(t, err)
	latest := turns[len(turns)-1]

	fb, err := f.service.SubmitFeedback(ctx, FeedbackRequest{UserID: "u-1", SessionID: session.ID, Rating: 4, Comment: " helpful "})
	require.NoError(t, err)
	assert.Equal(t, latest.ID, fb.TurnID)
	assert.Equal(t, "helpful", fb.Comment)

	stored, err := f.repos.Analytics.GetFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 4, stored[0].Rating)
	assert.Equal(t, session.ID, stored[0].SessionID)

	t.Run("rating out of range", func(t *testing.T) {
		for _, rating := range []int{0, 6, -1} {
			_, err := f.service.SubmitFeedback(ctx, FeedbackRequest{UserID: "u-1", SessionID: session.ID, Rating: rating})
			assert.ErrorIs(t, err, ErrInvalidRating)
		}
	})

	t.Run("other user's session", func(t *testing.T) {
		_, err := f.service.SubmitFeedback(ctx, FeedbackRequest{UserID: "u-2", SessionID: session.ID, Rating: 5})
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("session without an answer", func(t *testing.T) {
		pending := seedSession(t, f, "u-1", core.RoleUser)
		_, err := f.service.SubmitFeedback(ctx, FeedbackRequest{UserID: "u-1", SessionID: pending.ID, Rating: 5})
		assert.ErrorIs(t, err, ErrNoAssistantTurn)
	})
}

func TestSubmitFeedback_WithoutAnalytics(t *testing.T) {
	f := newFixture(t, mock.NewMockGenerator())
	controller, err := retrieval.NewController()
	require.NoError(t, err)
	driver, err := generation.NewDriver(mock.NewMockGenerator())
	require.NoError(t, err)
	service, err := NewService(controller, driver, f.repos.Conversations)
	require.NoError(t, err)

	session := seedSession(t, f, "u-1", core.RoleUser, core.RoleAssistant)
	_, err = service.SubmitFeedback(context.Background(), FeedbackRequest{UserID: "u-1", SessionID: session.ID, Rating: 5})
	assert.ErrorIs(t, err, ErrFeedbackUnavailable)
}
