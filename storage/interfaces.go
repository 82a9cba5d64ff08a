package storage

import (
	"context"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
)

// VectorIndex is a read-only nearest-neighbour index over document embeddings.
// Implementations must be thread-safe and support concurrent access.
type VectorIndex interface {
	// Search returns up to k documents most similar to vector, ordered by
	// descending raw similarity. The score scale is backend specific.
	Search(ctx context.Context, vector []float32, k int) ([]core.ScoredDocument, error)

	// Close releases the index handle.
	Close() error
}

// DocumentRepository stores documents with precomputed embeddings locally
// and serves them as a VectorIndex.
type DocumentRepository interface {
	VectorIndex

	// AddDocuments inserts or replaces documents by ID.
	// Documents without an ID get one derived from their text.
	AddDocuments(ctx context.Context, docs ...*core.IndexedDocument) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id string) (*core.Document, error)

	// ForEachDocument calls fn for every stored document in key order.
	// Iteration stops on the first error returned by fn.
	ForEachDocument(ctx context.Context, fn func(*core.Document) error) error

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// ConversationRepository stores chat sessions and their turns.
type ConversationRepository interface {
	// CreateSession stores a new session. An empty ID is replaced with a UUID.
	// Sets CreatedAt and UpdatedAt if not already set.
	CreateSession(ctx context.Context, session *core.Session) (*core.Session, error)

	// GetSession retrieves a session by ID.
	// Returns ErrNotFound if the session doesn't exist.
	GetSession(ctx context.Context, id string) (*core.Session, error)

	// ListSessions returns up to limit sessions of a user, most recently
	// updated first.
	ListSessions(ctx context.Context, userID string, limit int) ([]*core.Session, error)

	// AddTurns appends turns to their sessions and bumps each session's
	// UpdatedAt. IDs are generated from a sequence.
	AddTurns(ctx context.Context, turns ...*core.ConversationTurn) ([]*core.ConversationTurn, error)

	// GetRecentTurns returns the last limit turns of a session, oldest first.
	// A limit <= 0 returns the whole session.
	GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.ConversationTurn, error)

	// RenameSession replaces a session's title without changing its order.
	// Returns ErrNotFound if the session doesn't exist.
	RenameSession(ctx context.Context, id, title string) (*core.Session, error)

	// DeleteSession removes a session and all of its turns.
	// Returns ErrNotFound if the session doesn't exist.
	DeleteSession(ctx context.Context, id string) error

	// Close releases the ID sequence.
	Close() error
}

// AnalyticsRepository stores analytics events, error logs, notifications and feedback.
// Every entry expires after the repository's retention period.
type AnalyticsRepository interface {
	// AddEvents stores new analytics events, generating IDs and expiry.
	AddEvents(ctx context.Context, events ...*core.AnalyticsEvent) ([]*core.AnalyticsEvent, error)

	// UpdateEvents rewrites existing events in place.
	// Returns ErrNotFound if any event doesn't exist.
	UpdateEvents(ctx context.Context, events ...*core.AnalyticsEvent) error

	// GetEventsSince returns events created at or after since, oldest first.
	GetEventsSince(ctx context.Context, since time.Time) ([]*core.AnalyticsEvent, error)

	// AddErrorRecords appends entries to the error log.
	AddErrorRecords(ctx context.Context, records ...*core.ErrorRecord) error

	// GetErrorsSince returns error log entries created at or after since, oldest first.
	GetErrorsSince(ctx context.Context, since time.Time) ([]*core.ErrorRecord, error)

	// AddNotifications stores anomaly notifications.
	AddNotifications(ctx context.Context, notifications ...*core.Notification) error

	// GetRecentNotifications returns up to limit notifications, newest first.
	GetRecentNotifications(ctx context.Context, limit int) ([]*core.Notification, error)

	// GetNotificationsSince returns notifications created at or after since, oldest first.
	GetNotificationsSince(ctx context.Context, since time.Time) ([]*core.Notification, error)

	// AddFeedback stores ratings of assistant turns.
	AddFeedback(ctx context.Context, feedback ...*core.Feedback) error

	// GetFeedbackSince returns feedback created at or after since, oldest first.
	GetFeedbackSince(ctx context.Context, since time.Time) ([]*core.Feedback, error)

	// Close releases the ID sequences.
	Close() error
}

// CheckpointRepository persists background job progress.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint under its name.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint returns the named checkpoint, or nil if none exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)
}
