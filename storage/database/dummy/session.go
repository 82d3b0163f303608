package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/session"
)

type sessionRepository struct {
	db *sessionTable
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *DB) *sessionRepository {
	return &sessionRepository{db: db.session}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sess.ID = uuid.New().String()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	repo.db.sessions = append(repo.db.sessions, sess)
	return sess, nil
}

func (repo *sessionRepository) QuerySessions(ctx context.Context, ordering ...core.DBOrdering) ([]session.Session, error) {
	repo.db.RLock()
	sessions := make([]session.Session, len(repo.db.sessions))
	copy(sessions, repo.db.sessions)
	repo.db.RUnlock()

	ascending := false
	if len(ordering) > 0 {
		ascending = ordering[0].Ascending
	}
	sort.SliceStable(sessions, func(i, j int) bool {
		if ascending {
			return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
		}
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sess := range repo.db.sessions {
		if sess.ID == id {
			return sess, nil
		}
	}
	return session.Session{}, session.ErrNotFound
}

func (repo *sessionRepository) CreateEntry(ctx context.Context, entry session.Entry) (session.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, e := range repo.db.entries {
		if e.SessionID == entry.SessionID && e.UserID == entry.UserID {
			return session.Entry{}, session.ErrAlreadyJoined
		}
	}

	entry.ID = uuid.New().String()
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	repo.db.entries = append(repo.db.entries, entry)
	return entry, nil
}

func (repo *sessionRepository) QueryEntries(ctx context.Context, sessionID string, ordering ...core.DBOrdering) ([]session.Entry, error) {
	repo.db.RLock()
	entries := make([]session.Entry, 0)
	for _, e := range repo.db.entries {
		if e.SessionID == sessionID {
			entries = append(entries, e)
		}
	}
	repo.db.RUnlock()

	ascending := true
	if len(ordering) > 0 {
		ascending = ordering[0].Ascending
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if ascending {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (repo *sessionRepository) GetEntryByID(ctx context.Context, id string) (session.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, e := range repo.db.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return session.Entry{}, session.ErrEntryNotFound
}

func (repo *sessionRepository) UpdateEntry(ctx context.Context, id string, patch session.EntryPatch) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i := range repo.db.entries {
		if repo.db.entries[i].ID == id {
			patch.ApplyTo(&repo.db.entries[i])
			repo.db.entries[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return session.ErrEntryNotFound
}
