package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil) // interface compliance check

func NewSessionRepository(db *sqlx.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func orderBy(def core.DBOrdering, ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{def}
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

func (repo sessionRepository) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	sess.ID = uuid.New().String()
	err := repo.db.QueryRowxContext(
		ctx,
		`INSERT INTO sessions (id, teacher_id, title, date) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		sess.ID, sess.TeacherID, sess.Title, sess.Date,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	return sess, nil
}

func (repo sessionRepository) QuerySessions(ctx context.Context, ordering ...core.DBOrdering) ([]session.Session, error) {
	sessions := make([]session.Session, 0)
	q := `SELECT * FROM sessions` + orderBy(core.DBOrdering{Field: "created_at"}, ordering)
	if err := repo.db.SelectContext(ctx, &sessions, q); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	return sessions, nil
}

func (repo sessionRepository) GetSessionByID(ctx context.Context, id string) (session.Session, error) {
	var sess session.Session
	err := repo.db.GetContext(ctx, &sess, `SELECT * FROM sessions WHERE id = $1`, id)
	if err != nil {
		return session.Session{}, trapNoRowsErr(err, session.ErrNotFound, "fetching session")
	}
	return sess, nil
}

func (repo sessionRepository) CreateEntry(ctx context.Context, entry session.Entry) (session.Entry, error) {
	entry.ID = uuid.New().String()
	err := repo.db.QueryRowxContext(
		ctx,
		`INSERT INTO entries (id, session_id, user_id, full_name, memorization, revision, stars, comments)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		entry.ID, entry.SessionID, entry.UserID, entry.FullName, entry.Memorization, entry.Revision, entry.Stars, entry.Comments,
	).Scan(&entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "entries_session_participant_key") {
			return session.Entry{}, session.ErrAlreadyJoined
		}
		return session.Entry{}, errors.Wrap(err, "inserting entry")
	}
	return entry, nil
}

func (repo sessionRepository) QueryEntries(ctx context.Context, sessionID string, ordering ...core.DBOrdering) ([]session.Entry, error) {
	entries := make([]session.Entry, 0)
	q := `SELECT * FROM entries WHERE session_id = $1` +
		orderBy(core.DBOrdering{Field: "created_at", Ascending: true}, ordering)
	if err := repo.db.SelectContext(ctx, &entries, q, sessionID); err != nil {
		return nil, errors.Wrap(err, "querying entries")
	}
	return entries, nil
}

func (repo sessionRepository) GetEntryByID(ctx context.Context, id string) (session.Entry, error) {
	var entry session.Entry
	err := repo.db.GetContext(ctx, &entry, `SELECT * FROM entries WHERE id = $1`, id)
	if err != nil {
		return session.Entry{}, trapNoRowsErr(err, session.ErrEntryNotFound, "fetching entry")
	}
	return entry, nil
}

func (repo sessionRepository) UpdateEntry(ctx context.Context, id string, patch session.EntryPatch) error {
	sets := []string{"updated_at = now()"}
	args := make([]interface{}, 0, 6)

	addSet := func(col string, val interface{}) {
		args = append(args, val)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.FullName != nil {
		addSet("full_name", *patch.FullName)
	}
	if patch.Memorization != nil {
		addSet("memorization", *patch.Memorization)
	}
	if patch.Revision != nil {
		addSet("revision", *patch.Revision)
	}
	if patch.Stars != nil {
		addSet("stars", *patch.Stars)
	}
	if patch.Comments != nil {
		addSet("comments", *patch.Comments)
	}

	args = append(args, id)
	q := fmt.Sprintf(`UPDATE entries SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))

	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "updating entry")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrEntryNotFound
	}
	return nil
}
