package badger

import (
	"context"
	"slices"
	"time"

	"github.com/Devcavi19/adal-4naga-app/core"
	"github.com/Devcavi19/adal-4naga-app/storage"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ConversationRepository implements storage.ConversationRepository for BadgerDB.
type ConversationRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(backend *Backend) (*ConversationRepository, error) {
	idSeq, err := backend.GetSequence(turnIDSeq)
	if err != nil {
		return nil, err
	}

	return &ConversationRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ConversationRepository) Close() error {
	return r.idSeq.Release()
}

// CreateSession stores a new session.
func (r *ConversationRepository) CreateSession(ctx context.Context, session *core.Session) (*core.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := r.readSession(tx, session.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return storage.ErrDuplicateKey
		}
		if err := r.writeSession(tx, session); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// GetSession retrieves a session by ID.
func (r *ConversationRepository) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var session *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		session, err = r.readSession(tx, id)
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return session, err
}

// ListSessions returns up to limit sessions of a user, most recently updated first.
func (r *ConversationRepository) ListSessions(ctx context.Context, userID string, limit int) ([]*core.Session, error) {
	var results []*core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeSessionUserPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek past the last possible key with this prefix
		seekKey := append(slices.Clone(prefix), 0xFF)
		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var sessionID string
			if err := iter.Item().Value(func(val []byte) error {
				sessionID = string(val)
				return nil
			}); err != nil {
				return err
			}
			session, err := r.readSession(tx, sessionID)
			if err != nil {
				return err
			}
			if session != nil {
				results = append(results, session)
			}
		}
		return nil
	}, false)
	return results, err
}

// AddTurns appends turns to their sessions.
func (r *ConversationRepository) AddTurns(ctx context.Context, turns ...*core.ConversationTurn) ([]*core.ConversationTurn, error) {
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		touched := make(map[string]time.Time)
		for _, turn := range turns {
			if turn.Timestamp.IsZero() {
				turn.Timestamp = time.Now().UTC()
			}
			if err := core.ValidateTurn(turn); err != nil {
				return err
			}

			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			turn.ID = id

			value, err := storage.Marshal(turn)
			if err != nil {
				return err
			}
			if err := tx.Set(makeTurnKey(turn.SessionID, turn.Timestamp, turn.ID), value); err != nil {
				return err
			}
			if turn.Timestamp.After(touched[turn.SessionID]) {
				touched[turn.SessionID] = turn.Timestamp
			}
		}

		// Move each touched session to the front of its user's index
		for sessionID, ts := range touched {
			session, err := r.readSession(tx, sessionID)
			if err != nil {
				return err
			}
			if session == nil {
				return storage.ErrNotFound
			}
			if !ts.After(session.UpdatedAt) {
				continue
			}
			if err := tx.Delete(makeSessionUserKey(session.UserID, session.UpdatedAt, session.ID)); err != nil {
				return err
			}
			session.UpdatedAt = ts
			if err := r.writeSession(tx, session); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return turns, err
}

// GetRecentTurns returns the last limit turns of a session, oldest first.
func (r *ConversationRepository) GetRecentTurns(ctx context.Context, sessionID string, limit int) ([]*core.ConversationTurn, error) {
	var results []*core.ConversationTurn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeTurnPrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		seekKey := append(slices.Clone(prefix), 0xFF)
		for iter.Seek(seekKey); iter.Valid(); iter.Next() {
			if limit > 0 && len(results) >= limit {
				break
			}
			var turn *core.ConversationTurn
			err := iter.Item().Value(func(val []byte) error {
				var err error
				turn, err = storage.Unmarshal[core.ConversationTurn](val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, turn)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	slices.Reverse(results)
	return results, nil
}

// RenameSession replaces a session's title. UpdatedAt is left alone so the
// session keeps its place in the user's list.
func (r *ConversationRepository) RenameSession(ctx context.Context, id, title string) (*core.Session, error) {
	var session *core.Session
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		session, err = r.readSession(tx, id)
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}
		session.Title = title
		if err := r.writeSession(tx, session); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// DeleteSession removes a session, its index entry and all of its turns.
func (r *ConversationRepository) DeleteSession(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		session, err := r.readSession(tx, id)
		if err != nil {
			return err
		}
		if session == nil {
			return storage.ErrNotFound
		}

		var keys [][]byte
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = makeTurnPrefix(id)
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		iter.Close()

		keys = append(keys,
			makeSessionKey(id),
			makeSessionUserKey(session.UserID, session.UpdatedAt, session.ID))
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Helper methods

func (r *ConversationRepository) readSession(tx *badger.Txn, id string) (*core.Session, error) {
	return readValue(tx, makeSessionKey(id), storage.Unmarshal[core.Session])
}

func (r *ConversationRepository) writeSession(tx *badger.Txn, session *core.Session) error {
	value, err := storage.Marshal(session)
	if err != nil {
		return err
	}
	if err := tx.Set(makeSessionKey(session.ID), value); err != nil {
		return err
	}
	return tx.Set(makeSessionUserKey(session.UserID, session.UpdatedAt, session.ID), []byte(session.ID))
}
