package badger

import (
	"context"
	"slices"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/dgraph-io/badger/v4"
)

// DefaultRetention is how long analytics entries are kept.
const DefaultRetention = 90 * 24 * time.Hour

// AnalyticsRepository implements storage.AnalyticsRepository for BadgerDB.
// Entries are written with a TTL so Badger drops them after the retention period.
type AnalyticsRepository struct {
	backend   *Backend
	eventSeq  *badger.Sequence
	errorSeq  *badger.Sequence
	notifySeq *badger.Sequence
	feedSeq   *badger.Sequence
	retention time.Duration
}

var _ storage.AnalyticsRepository = (*AnalyticsRepository)(nil)

// AnalyticsOption configures an AnalyticsRepository.
type AnalyticsOption func(*AnalyticsRepository)

// WithRetention sets how long entries are kept.
// Non-positive values keep the default.
func WithRetention(d time.Duration) AnalyticsOption {
	return func(r *AnalyticsRepository) {
		if d > 0 {
			r.retention = d
		}
	}
}

// NewAnalyticsRepository creates a new AnalyticsRepository.
func NewAnalyticsRepository(backend *Backend, opts ...AnalyticsOption) (*AnalyticsRepository, error) {
	r := &AnalyticsRepository{
		backend:   backend,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(r)
	}

	var err error
	if r.eventSeq, err = backend.GetSequence(eventIDSeq); err != nil {
		return nil, err
	}
	if r.errorSeq, err = backend.GetSequence(errorLogIDSeq); err != nil {
		r.eventSeq.Release()
		return nil, err
	}
	if r.notifySeq, err = backend.GetSequence(notificationIDSeq); err != nil {
		r.eventSeq.Release()
		r.errorSeq.Release()
		return nil, err
	}
	if r.feedSeq, err = backend.GetSequence(feedbackIDSeq); err != nil {
		r.eventSeq.Release()
		r.errorSeq.Release()
		r.notifySeq.Release()
		return nil, err
	}
	return r, nil
}

// Close releases the ID sequences.
func (r *AnalyticsRepository) Close() error {
	var firstErr error
	for _, seq := range []*badger.Sequence{r.eventSeq, r.errorSeq, r.notifySeq, r.feedSeq} {
		if err := seq.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Retention returns the configured retention period.
func (r *AnalyticsRepository) Retention() time.Duration {
	return r.retention
}

// AddEvents stores new analytics events.
func (r *AnalyticsRepository) AddEvents(ctx context.Context, events ...*core.AnalyticsEvent) ([]*core.AnalyticsEvent, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, event := range events {
			if event.CreatedAt.IsZero() {
				event.CreatedAt = time.Now().UTC()
			}
			if err := core.ValidateAnalyticsEvent(event); err != nil {
				return err
			}
			id, err := nextID(r.eventSeq)
			if err != nil {
				return err
			}
			event.ID = id
			if event.ExpiresAt.IsZero() {
				event.ExpiresAt = event.CreatedAt.Add(r.retention)
			}
			if err := setEntry(tx, makeTimeKey(eventPrefix, event.CreatedAt, event.ID), event, event.ExpiresAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	return events, err
}

// UpdateEvents rewrites existing events in place, keeping their expiry.
func (r *AnalyticsRepository) UpdateEvents(ctx context.Context, events ...*core.AnalyticsEvent) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, event := range events {
			key := makeTimeKey(eventPrefix, event.CreatedAt, event.ID)
			if _, err := tx.Get(key); err != nil {
				if err == badger.ErrKeyNotFound {
					return storage.ErrNotFound
				}
				return err
			}
			if err := setEntry(tx, key, event, event.ExpiresAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetEventsSince returns events created at or after since, oldest first.
func (r *AnalyticsRepository) GetEventsSince(ctx context.Context, since time.Time) ([]*core.AnalyticsEvent, error) {
	return scanSince(r.backend, eventPrefix, since, storage.Unmarshal[core.AnalyticsEvent])
}

// AddErrorRecords appends entries to the error log.
func (r *AnalyticsRepository) AddErrorRecords(ctx context.Context, records ...*core.ErrorRecord) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, rec := range records {
			if rec.CreatedAt.IsZero() {
				rec.CreatedAt = time.Now().UTC()
			}
			id, err := nextID(r.errorSeq)
			if err != nil {
				return err
			}
			rec.ID = id
			if rec.ExpiresAt.IsZero() {
				rec.ExpiresAt = rec.CreatedAt.Add(r.retention)
			}
			if err := setEntry(tx, makeTimeKey(errorLogPrefix, rec.CreatedAt, rec.ID), rec, rec.ExpiresAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetErrorsSince returns error log entries created at or after since, oldest first.
func (r *AnalyticsRepository) GetErrorsSince(ctx context.Context, since time.Time) ([]*core.ErrorRecord, error) {
	return scanSince(r.backend, errorLogPrefix, since, storage.Unmarshal[core.ErrorRecord])
}

// AddNotifications stores anomaly notifications.
func (r *AnalyticsRepository) AddNotifications(ctx context.Context, notifications ...*core.Notification) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, n := range notifications {
			if n.CreatedAt.IsZero() {
				n.CreatedAt = time.Now().UTC()
			}
			id, err := nextID(r.notifySeq)
			if err != nil {
				return err
			}
			n.ID = id
			if err := setEntry(tx, makeTimeKey(notificationPrefix, n.CreatedAt, n.ID), n, n.CreatedAt.Add(r.retention)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetRecentNotifications returns up to limit notifications, newest first.
func (r *AnalyticsRepository) GetRecentNotifications(ctx context.Context, limit int) ([]*core.Notification, error) {
	all, err := scanSince(r.backend, notificationPrefix, time.Time{}, storage.Unmarshal[core.Notification])
	if err != nil {
		return nil, err
	}
	slices.Reverse(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// GetNotificationsSince returns notifications created at or after since, oldest first.
func (r *AnalyticsRepository) GetNotificationsSince(ctx context.Context, since time.Time) ([]*core.Notification, error) {
	return scanSince(r.backend, notificationPrefix, since, storage.Unmarshal[core.Notification])
}

// AddFeedback stores ratings of assistant turns.
func (r *AnalyticsRepository) AddFeedback(ctx context.Context, feedback ...*core.Feedback) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, fb := range feedback {
			if fb.CreatedAt.IsZero() {
				fb.CreatedAt = time.Now().UTC()
			}
			if err := core.ValidateFeedback(fb); err != nil {
				return err
			}
			id, err := nextID(r.feedSeq)
			if err != nil {
				return err
			}
			fb.ID = id
			if fb.ExpiresAt.IsZero() {
				fb.ExpiresAt = fb.CreatedAt.Add(r.retention)
			}
			if err := setEntry(tx, makeTimeKey(feedbackPrefix, fb.CreatedAt, fb.ID), fb, fb.ExpiresAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetFeedbackSince returns feedback created at or after since, oldest first.
func (r *AnalyticsRepository) GetFeedbackSince(ctx context.Context, since time.Time) ([]*core.Feedback, error) {
	return scanSince(r.backend, feedbackPrefix, since, storage.Unmarshal[core.Feedback])
}

// setEntry writes value under key with a TTL ending at expiresAt.
func setEntry[T any](tx *badger.Txn, key []byte, value *T, expiresAt time.Time) error {
	data, err := storage.Marshal(value)
	if err != nil {
		return err
	}
	entry := badger.NewEntry(key, data)
	if !expiresAt.IsZero() {
		entry = entry.WithTTL(max(time.Until(expiresAt), time.Second))
	}
	return tx.SetEntry(entry)
}

// scanSince reads every value under prefix whose time component is >= since.
func scanSince[T any](backend *Backend, prefix string, since time.Time, decode func([]byte) (*T, error)) ([]*T, error) {
	var results []*T
	err := backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		if since.Before(time.UnixMicro(0)) {
			since = time.UnixMicro(0)
		}
		for iter.Seek(makePartialTimeKey(prefix, since)); iter.Valid(); iter.Next() {
			var v *T
			err := iter.Item().Value(func(val []byte) error {
				var err error
				v, err = decode(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, v)
		}
		return nil
	}, false)
	return results, err
}
