package badger

import (
	"context"
	"testing"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsEvents(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	events := []*core.AnalyticsEvent{
		{QueryText: "old question", CreatedAt: now.Add(-3 * time.Hour)},
		{QueryText: "list all ordinances", CreatedAt: now.Add(-30 * time.Minute), SearchMethod: core.SearchMethodHybrid},
		{QueryText: "what is ordinance 12", CreatedAt: now.Add(-10 * time.Minute)},
	}
	added, err := repos.Analytics.AddEvents(ctx, events...)
	require.NoError(t, err)
	for _, e := range added {
		assert.NotZero(t, e.ID)
		assert.Equal(t, e.CreatedAt.Add(DefaultRetention), e.ExpiresAt)
	}

	recent, err := repos.Analytics.GetEventsSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "list all ordinances", recent[0].QueryText)

	t.Run("update keeps key", func(t *testing.T) {
		recent[0].Keywords = []string{"ordinances"}
		require.NoError(t, repos.Analytics.UpdateEvents(ctx, recent[0]))

		again, err := repos.Analytics.GetEventsSince(ctx, now.Add(-time.Hour))
		require.NoError(t, err)
		require.Len(t, again, 2)
		assert.Equal(t, []string{"ordinances"}, again[0].Keywords)
	})

	t.Run("update unknown event", func(t *testing.T) {
		err := repos.Analytics.UpdateEvents(ctx, &core.AnalyticsEvent{ID: 999, QueryText: "x", CreatedAt: now})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("all events", func(t *testing.T) {
		all, err := repos.Analytics.GetEventsSince(ctx, time.Time{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestAnalyticsRetentionOption(t *testing.T) {
	repos, err := NewMemoryRepositories(WithRetention(48 * time.Hour))
	require.NoError(t, err)
	defer repos.Close()

	assert.Equal(t, 48*time.Hour, repos.Analytics.Retention())

	rec := &core.ErrorRecord{ErrorType: "timeout", Message: "deadline exceeded"}
	require.NoError(t, repos.Analytics.AddErrorRecords(context.Background(), rec))
	assert.Equal(t, rec.CreatedAt.Add(48*time.Hour), rec.ExpiresAt)
}

func TestErrorLog(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repos.Analytics.AddErrorRecords(ctx,
		&core.ErrorRecord{ErrorType: "rate_limited", Message: "quota exceeded", Endpoint: "/api/chat", CreatedAt: now.Add(-2 * time.Hour)},
		&core.ErrorRecord{ErrorType: "timeout", Message: "deadline exceeded", Endpoint: "/api/chat", CreatedAt: now.Add(-5 * time.Minute)},
	))

	recent, err := repos.Analytics.GetErrorsSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "timeout", recent[0].ErrorType)
	assert.NotZero(t, recent[0].ID)
}

func TestNotifications(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, repos.Analytics.AddNotifications(ctx,
		&core.Notification{Kind: "query_spike", Title: "older", CreatedAt: now.Add(-time.Hour)},
		&core.Notification{Kind: "error_rate", Title: "newer", CreatedAt: now},
	))

	notes, err := repos.Analytics.GetRecentNotifications(ctx, 1)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "newer", notes[0].Title)

	since, err := repos.Analytics.GetNotificationsSince(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, "error_rate", since[0].Kind)
}

func TestFeedback(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repos.Analytics.AddFeedback(ctx,
		&core.Feedback{UserID: "u1", SessionID: "s1", TurnID: 2, Rating: 5, CreatedAt: now.Add(-48 * time.Hour)},
		&core.Feedback{UserID: "u1", SessionID: "s1", TurnID: 4, Rating: 2, Comment: "missed the ordinance", CreatedAt: now},
	))

	recent, err := repos.Analytics.GetFeedbackSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 2, recent[0].Rating)
	assert.Equal(t, "missed the ordinance", recent[0].Comment)
	assert.NotZero(t, recent[0].ID)
	assert.True(t, now.Add(DefaultRetention).Equal(recent[0].ExpiresAt))

	all, err := repos.Analytics.GetFeedbackSince(ctx, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = repos.Analytics.AddFeedback(ctx, &core.Feedback{SessionID: "s1", Rating: 6})
	assert.ErrorIs(t, err, core.ErrRatingOutOfRange)
}

func TestCheckpoints(t *testing.T) {
	repos, err := NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	ctx := context.Background()

	missing, err := repos.Checkpoints.LoadCheckpoint(ctx, "keyword-backfill")
	require.NoError(t, err)
	assert.Nil(t, missing)

	runAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repos.Checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{Name: "keyword-backfill", LastRunAt: runAt, Processed: 4}))

	got, err := repos.Checkpoints.LoadCheckpoint(ctx, "keyword-backfill")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, runAt.Equal(got.LastRunAt))
	assert.Equal(t, 4, got.Processed)
	assert.False(t, got.UpdatedAt.IsZero())
}
