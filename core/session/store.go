package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
)

var (
	sessionOrdering = core.DBOrdering{Field: "created_at", Ascending: false}
	entryOrdering   = core.DBOrdering{Field: "created_at", Ascending: true}
)

// Repository is the typed face of the remote table store for sessions and
// entries. Implementations return authoritative rows (server-generated ids
// and timestamps) on insert.
type Repository interface {
	CreateSession(ctx context.Context, sess Session) (Session, error)
	QuerySessions(ctx context.Context, ordering ...core.DBOrdering) ([]Session, error)
	GetSessionByID(ctx context.Context, id string) (Session, error)

	// CreateEntry returns ErrAlreadyJoined when the participant already has
	// an entry in the session.
	CreateEntry(ctx context.Context, entry Entry) (Entry, error)
	QueryEntries(ctx context.Context, sessionID string, ordering ...core.DBOrdering) ([]Entry, error)
	GetEntryByID(ctx context.Context, id string) (Entry, error)
	// UpdateEntry writes the patched field subset plus a server-assigned
	// updated timestamp.
	UpdateEntry(ctx context.Context, id string, patch EntryPatch) error
}

// Store holds the mirrored list of sessions, the currently viewed session
// and its entries. Mirrors are caches of the remote rows, rebuilt on fetch
// and patched from authoritative server responses after writes; rapid
// concurrent updates to the same row keep whichever response resolves last.
type Store struct {
	repo     Repository
	provider auth.IdentityProvider
	logger   core.Logger

	mu       sync.RWMutex
	sessions []Session
	current  *Session
	entries  []Entry
	loading  bool
	err      string
}

func NewStore(repo Repository, provider auth.IdentityProvider, logger core.Logger) *Store {
	return &Store{repo: repo, provider: provider, logger: logger}
}

func (s *Store) Sessions() []Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

func (s *Store) CurrentSession() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	sess := *s.current
	return &sess
}

func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the store-level user-facing error message, "" when clear.
func (s *Store) Err() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

func (s *Store) beginFetch() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) failFetch(msg string) {
	s.mu.Lock()
	s.loading = false
	s.err = msg
	s.mu.Unlock()
}

// FetchSessions replaces the sessions mirror with all remote rows ordered
// newest-created-first. No pagination: a single unbounded fetch.
func (s *Store) FetchSessions(ctx context.Context) error {
	s.beginFetch()

	sessions, err := s.repo.QuerySessions(ctx, sessionOrdering)
	if err != nil {
		s.failFetch(MsgFetchSessions)
		return auth.NewError(auth.CodeTransportFailure, MsgFetchSessions, errors.Wrap(err, "querying sessions"))
	}

	s.mu.Lock()
	s.sessions = sessions
	s.loading = false
	s.mu.Unlock()
	return nil
}

// CreateSession inserts a session for the acting identity (read fresh from
// the identity provider) and prepends the authoritative inserted row to the
// mirror. Validation failures are caught before any remote call.
func (s *Store) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	ns.Clean()
	if ns.Title == "" || ns.Date == "" {
		return Session{}, auth.NewError(auth.CodeValidationFailure, MsgMissingFields, nil)
	}

	authSess, err := s.provider.GetSession(ctx)
	if err != nil {
		return Session{}, auth.NewError(auth.CodeTransportFailure, MsgCreateSession, errors.Wrap(err, "resolving identity"))
	}
	if authSess == nil {
		return Session{}, auth.NewError(auth.CodePermissionDenied, auth.MsgSignInRequired, nil)
	}

	inserted, err := s.repo.CreateSession(ctx, Session{
		TeacherID: authSess.Identity.ID,
		Title:     ns.Title,
		Date:      ns.Date,
	})
	if err != nil {
		return Session{}, auth.NewError(auth.CodeTransportFailure, MsgCreateSession, errors.Wrap(err, "inserting session"))
	}

	s.mu.Lock()
	s.sessions = append([]Session{inserted}, s.sessions...)
	s.mu.Unlock()
	return inserted, nil
}

// FetchSession fetches a single session row by id and sets the current
// session.
func (s *Store) FetchSession(ctx context.Context, id string) error {
	s.beginFetch()

	sess, err := s.repo.GetSessionByID(ctx, id)
	if err != nil {
		s.failFetch(MsgFetchSession)
		if errors.Cause(err) == ErrNotFound {
			return auth.NewError(auth.CodeNotFound, MsgSessionNotFound, err)
		}
		return auth.NewError(auth.CodeTransportFailure, MsgFetchSession, errors.Wrap(err, "fetching session"))
	}

	s.mu.Lock()
	s.current = &sess
	s.loading = false
	s.mu.Unlock()
	return nil
}

// FetchEntries replaces the entries mirror with the session's rows ordered
// oldest-created-first.
func (s *Store) FetchEntries(ctx context.Context, sessionID string) error {
	s.beginFetch()

	entries, err := s.repo.QueryEntries(ctx, sessionID, entryOrdering)
	if err != nil {
		s.failFetch(MsgFetchEntries)
		return auth.NewError(auth.CodeTransportFailure, MsgFetchEntries, errors.Wrap(err, "querying entries"))
	}

	s.mu.Lock()
	s.entries = entries
	s.loading = false
	s.mu.Unlock()
	return nil
}

// CreateEntry inserts a participant's entry and appends the authoritative
// inserted row to the mirror. A student may only join as themselves.
func (s *Store) CreateEntry(ctx context.Context, actor Actor, ne NewEntry) (Entry, error) {
	ne.Clean()
	if ne.SessionID == "" || ne.UserID == "" || ne.FullName == "" {
		return Entry{}, auth.NewError(auth.CodeValidationFailure, MsgMissingFields, nil)
	}
	if ne.UserID != actor.ID && !actor.IsTeacher() {
		return Entry{}, auth.NewError(auth.CodePermissionDenied, MsgPermissionDenied, nil)
	}

	inserted, err := s.repo.CreateEntry(ctx, Entry{
		SessionID: ne.SessionID,
		UserID:    ne.UserID,
		FullName:  ne.FullName,
	})
	if err != nil {
		if errors.Cause(err) == ErrAlreadyJoined {
			return Entry{}, auth.NewError(auth.CodeValidationFailure, MsgAlreadyJoined, err)
		}
		return Entry{}, auth.NewError(auth.CodeTransportFailure, MsgCreateEntry, errors.Wrap(err, "inserting entry"))
	}

	s.mu.Lock()
	s.entries = append(s.entries, inserted)
	s.mu.Unlock()
	return inserted, nil
}

// UpdateEntry writes the patched field subset to the remote row, then
// shallow-merges the same patch into the mirrored entry without re-fetching.
// Field-level permissions are enforced here: teachers may set all fields,
// the entry's own participant only name/memorization/revision.
func (s *Store) UpdateEntry(ctx context.Context, actor Actor, id string, patch EntryPatch) error {
	if patch.IsEmpty() {
		return auth.NewError(auth.CodeValidationFailure, MsgMissingFields, nil)
	}
	if patch.Stars != nil && (*patch.Stars < 0 || *patch.Stars > 5) {
		return auth.NewError(auth.CodeValidationFailure, MsgMissingFields, errors.Errorf("stars out of range: %d", *patch.Stars))
	}

	target, err := s.findEntry(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrEntryNotFound {
			return auth.NewError(auth.CodeNotFound, MsgUpdateEntry, err)
		}
		return auth.NewError(auth.CodeTransportFailure, MsgUpdateEntry, err)
	}
	if !patch.AllowedFor(actor, target) {
		return auth.NewError(auth.CodePermissionDenied, MsgPermissionDenied, nil)
	}

	if err = s.repo.UpdateEntry(ctx, id, patch); err != nil {
		return auth.NewError(auth.CodeTransportFailure, MsgUpdateEntry, errors.Wrap(err, "updating entry"))
	}

	s.mu.Lock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			patch.ApplyTo(&s.entries[i])
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// FilterSessions narrows the mirrored sessions list; ordering is preserved.
func (s *Store) FilterSessions(filter QueryFilter) []Session {
	filter.Clean()
	sessions := s.Sessions()
	if filter.IsEmpty() {
		return sessions
	}

	filtered := make([]Session, 0, len(sessions))
	for _, sess := range sessions {
		if filter.Match(sess) {
			filtered = append(filtered, sess)
		}
	}
	return filtered
}

func (s *Store) findEntry(ctx context.Context, id string) (Entry, error) {
	s.mu.RLock()
	for _, e := range s.entries {
		if e.ID == id {
			s.mu.RUnlock()
			return e, nil
		}
	}
	s.mu.RUnlock()
	return s.repo.GetEntryByID(ctx, id)
}
