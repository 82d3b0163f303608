package session_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/session"
	"github.com/tahfeezapp/tahfeez/core/user"
	emailsvc "github.com/tahfeezapp/tahfeez/services/email"
	identitysvc "github.com/tahfeezapp/tahfeez/services/identity"
	logsvc "github.com/tahfeezapp/tahfeez/services/logger"
	dummydb "github.com/tahfeezapp/tahfeez/storage/database/dummy"
)

type storeDeps struct {
	store    *session.Store
	provider *identitysvc.Provider
}

func setup(t *testing.T) storeDeps {
	t.Helper()
	conf := &core.Config{
		AppName:                "Tahfeez",
		SecretKey:              []byte("secret"),
		DefaultFromEmail:       "noreply@tahfeez.test",
		SessionExpirationDelta: 10 * time.Minute,
	}
	db, err := dummydb.Open()
	require.NoError(t, err)
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	provider := identitysvc.NewProvider(conf, dummydb.NewAccountRepository(db), emailsvc.NewConsoleServiceMock(conf), logger)
	return storeDeps{
		store:    session.NewStore(dummydb.NewSessionRepository(db), provider, logger),
		provider: provider,
	}
}

// signIn opens a provider session for a fresh identity and returns its actor.
func signIn(t *testing.T, deps storeDeps, email, role string) session.Actor {
	t.Helper()
	ctx := context.Background()
	ident, sess, err := deps.provider.SignUp(ctx, email, "S3cret!pass")
	if errors.Cause(err) == auth.ErrAccountExists {
		sess, err = deps.provider.SignInWithPassword(ctx, email, "S3cret!pass")
		require.NoError(t, err)
		ident = sess.Identity
	} else {
		require.NoError(t, err)
	}
	require.NotNil(t, sess)
	return session.Actor{ID: ident.ID, Role: role}
}

func createSession(t *testing.T, deps storeDeps, title, date string) session.Session {
	t.Helper()
	sess, err := deps.store.CreateSession(context.Background(), session.NewSession{Title: title, Date: date})
	require.NoError(t, err)
	return sess
}

func requireAuthErrorCode(t *testing.T, err error, code auth.ErrorCode) *auth.Error {
	t.Helper()
	var appErr *auth.Error
	require.True(t, errors.As(err, &appErr), "expected *auth.Error, got %v", err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

func TestStore_CreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("validation happens before any remote call", func(t *testing.T) {
		deps := setup(t)
		// no signed-in identity; a missing title must fail first
		_, err := deps.store.CreateSession(ctx, session.NewSession{Title: "  ", Date: "2026-09-01"})
		appErr := requireAuthErrorCode(t, err, auth.CodeValidationFailure)
		assert.Equal(t, session.MsgMissingFields, appErr.Message)
	})

	t.Run("sign-in required", func(t *testing.T) {
		deps := setup(t)
		_, err := deps.store.CreateSession(ctx, session.NewSession{Title: "Surah Al-Mulk", Date: "2026-09-01"})
		appErr := requireAuthErrorCode(t, err, auth.CodePermissionDenied)
		assert.Equal(t, auth.MsgSignInRequired, appErr.Message)
	})

	t.Run("inserted row is prepended to the mirror", func(t *testing.T) {
		deps := setup(t)
		actor := signIn(t, deps, "teacher@test.test", user.RoleTeacher)

		first := createSession(t, deps, "  Surah Al-Baqarah  ", "2026-09-01")
		assert.NotEmpty(t, first.ID)
		assert.Equal(t, actor.ID, first.TeacherID)
		assert.Equal(t, "Surah Al-Baqarah", first.Title) // cleaned
		assert.False(t, first.CreatedAt.IsZero())

		second := createSession(t, deps, "Surah Al-Imran", "2026-09-08")

		sessions := deps.store.Sessions()
		require.Len(t, sessions, 2)
		assert.Equal(t, second.ID, sessions[0].ID) // newest first
		assert.Equal(t, first.ID, sessions[1].ID)
	})
}

func TestStore_FetchSessions(t *testing.T) {
	ctx := context.Background()
	deps := setup(t)
	signIn(t, deps, "teacher@test.test", user.RoleTeacher)

	sessA := createSession(t, deps, "Surah Al-Baqarah", "2026-09-01")
	sessB := createSession(t, deps, "Surah Al-Imran", "2026-09-08")

	require.NoError(t, deps.store.FetchSessions(ctx))
	assert.False(t, deps.store.Loading())
	assert.Empty(t, deps.store.Err())

	sessions := deps.store.Sessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, sessB.ID, sessions[0].ID) // newest created first
	assert.Equal(t, sessA.ID, sessions[1].ID)
}

func TestStore_FetchSession(t *testing.T) {
	ctx := context.Background()
	deps := setup(t)
	signIn(t, deps, "teacher@test.test", user.RoleTeacher)
	sess := createSession(t, deps, "Surah Al-Kahf", "2026-09-05")

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, deps.store.FetchSession(ctx, sess.ID))
		current := deps.store.CurrentSession()
		require.NotNil(t, current)
		assert.Equal(t, sess.ID, current.ID)
		assert.Empty(t, deps.store.Err())
	})

	t.Run("not found", func(t *testing.T) {
		err := deps.store.FetchSession(ctx, "nope")
		appErr := requireAuthErrorCode(t, err, auth.CodeNotFound)
		assert.Equal(t, session.MsgSessionNotFound, appErr.Message)
		assert.Equal(t, session.MsgFetchSession, deps.store.Err())
	})
}

func TestStore_FilterSessions(t *testing.T) {
	deps := setup(t)
	signIn(t, deps, "teacher@test.test", user.RoleTeacher)
	sessA := createSession(t, deps, "Surah Al-Baqarah", "2026-09-01")
	sessB := createSession(t, deps, "Surah Al-Imran", "2026-09-08")
	sessC := createSession(t, deps, "Revision: Al-Baqarah", "2026-09-08")

	tests := []struct {
		name   string
		filter session.QueryFilter
		want   []string
	}{
		{name: "empty filter returns all", want: []string{sessC.ID, sessB.ID, sessA.ID}},
		{name: "search is case-insensitive", filter: session.QueryFilter{Search: "BAQARAH"}, want: []string{sessC.ID, sessA.ID}},
		{name: "search matches nothing", filter: session.QueryFilter{Search: "An-Nur"}, want: []string{}},
		{name: "date match", filter: session.QueryFilter{Date: "2026-09-08"}, want: []string{sessC.ID, sessB.ID}},
		{name: "search and date combine", filter: session.QueryFilter{Search: "baqarah", Date: "2026-09-08"}, want: []string{sessC.ID}},
		{name: "whitespace is cleaned", filter: session.QueryFilter{Search: "  imran  "}, want: []string{sessB.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deps.store.FilterSessions(tt.filter)
			ids := make([]string, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids) // mirror ordering preserved
		})
	}
}

func TestStore_CreateEntry(t *testing.T) {
	ctx := context.Background()
	deps := setup(t)
	signIn(t, deps, "teacher@test.test", user.RoleTeacher)
	sess := createSession(t, deps, "Surah Ya-Sin", "2026-09-03")

	student := session.Actor{ID: "student-1", Role: user.RoleStudent}
	teacher := session.Actor{ID: "teacher-1", Role: user.RoleTeacher}

	t.Run("missing fields", func(t *testing.T) {
		_, err := deps.store.CreateEntry(ctx, student, session.NewEntry{SessionID: sess.ID, UserID: student.ID})
		appErr := requireAuthErrorCode(t, err, auth.CodeValidationFailure)
		assert.Equal(t, session.MsgMissingFields, appErr.Message)
	})

	t.Run("student may only join as themselves", func(t *testing.T) {
		_, err := deps.store.CreateEntry(ctx, student, session.NewEntry{SessionID: sess.ID, UserID: "somebody-else", FullName: "Impostor"})
		appErr := requireAuthErrorCode(t, err, auth.CodePermissionDenied)
		assert.Equal(t, session.MsgPermissionDenied, appErr.Message)
	})

	t.Run("join appends to the mirror", func(t *testing.T) {
		entry, err := deps.store.CreateEntry(ctx, student, session.NewEntry{SessionID: sess.ID, UserID: student.ID, FullName: "  Hamza Idris  "})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "Hamza Idris", entry.FullName) // cleaned
		assert.False(t, entry.Stars.Valid)             // ungraded

		entries := deps.store.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, entry.ID, entries[0].ID)
	})

	t.Run("duplicate join", func(t *testing.T) {
		_, err := deps.store.CreateEntry(ctx, student, session.NewEntry{SessionID: sess.ID, UserID: student.ID, FullName: "Hamza Idris"})
		appErr := requireAuthErrorCode(t, err, auth.CodeValidationFailure)
		assert.Equal(t, session.MsgAlreadyJoined, appErr.Message)
		assert.Len(t, deps.store.Entries(), 1)
	})

	t.Run("teacher may add an entry for someone else", func(t *testing.T) {
		entry, err := deps.store.CreateEntry(ctx, teacher, session.NewEntry{SessionID: sess.ID, UserID: "student-2", FullName: "Maryam Salim"})
		require.NoError(t, err)

		require.NoError(t, deps.store.FetchEntries(ctx, sess.ID))
		entries := deps.store.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, "Hamza Idris", entries[0].FullName) // oldest first
		assert.Equal(t, entry.ID, entries[1].ID)
	})
}

func TestStore_UpdateEntry(t *testing.T) {
	ctx := context.Background()
	deps := setup(t)
	signIn(t, deps, "teacher@test.test", user.RoleTeacher)
	sess := createSession(t, deps, "Surah Maryam", "2026-09-04")

	student := session.Actor{ID: "student-1", Role: user.RoleStudent}
	teacher := session.Actor{ID: "teacher-1", Role: user.RoleTeacher}

	entry, err := deps.store.CreateEntry(ctx, student, session.NewEntry{SessionID: sess.ID, UserID: student.ID, FullName: "Hamza Idris"})
	require.NoError(t, err)

	strPtr := func(s string) *string { return &s }
	intPtr := func(i int64) *int64 { return &i }

	t.Run("empty patch", func(t *testing.T) {
		err := deps.store.UpdateEntry(ctx, student, entry.ID, session.EntryPatch{})
		requireAuthErrorCode(t, err, auth.CodeValidationFailure)
	})

	t.Run("stars out of range", func(t *testing.T) {
		err := deps.store.UpdateEntry(ctx, teacher, entry.ID, session.EntryPatch{Stars: intPtr(9)})
		requireAuthErrorCode(t, err, auth.CodeValidationFailure)
	})

	t.Run("unknown entry", func(t *testing.T) {
		err := deps.store.UpdateEntry(ctx, teacher, "nope", session.EntryPatch{Stars: intPtr(3)})
		requireAuthErrorCode(t, err, auth.CodeNotFound)
	})

	t.Run("participant updates own progress", func(t *testing.T) {
		patch := session.EntryPatch{Memorization: strPtr("Maryam 1-15"), Revision: strPtr("Ta-Ha 1-20")}
		require.NoError(t, deps.store.UpdateEntry(ctx, student, entry.ID, patch))

		// the mirror is patched in place without a re-fetch
		entries := deps.store.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, "Maryam 1-15", entries[0].Memorization)
		assert.Equal(t, "Ta-Ha 1-20", entries[0].Revision)
		assert.Equal(t, "Hamza Idris", entries[0].FullName) // untouched
		assert.False(t, entries[0].Stars.Valid)
	})

	t.Run("participant may not grade", func(t *testing.T) {
		err := deps.store.UpdateEntry(ctx, student, entry.ID, session.EntryPatch{Stars: intPtr(5)})
		appErr := requireAuthErrorCode(t, err, auth.CodePermissionDenied)
		assert.Equal(t, session.MsgPermissionDenied, appErr.Message)
	})

	t.Run("other participant may not touch the entry", func(t *testing.T) {
		other := session.Actor{ID: "student-2", Role: user.RoleStudent}
		err := deps.store.UpdateEntry(ctx, other, entry.ID, session.EntryPatch{Memorization: strPtr("nope")})
		requireAuthErrorCode(t, err, auth.CodePermissionDenied)
	})

	t.Run("teacher grades", func(t *testing.T) {
		patch := session.EntryPatch{Stars: intPtr(4), Comments: strPtr("أحسنت، واصل المراجعة")}
		require.NoError(t, deps.store.UpdateEntry(ctx, teacher, entry.ID, patch))

		entries := deps.store.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, null.Int64From(4), entries[0].Stars)
		assert.Equal(t, null.StringFrom("أحسنت، واصل المراجعة"), entries[0].Comments)
		assert.Equal(t, "Maryam 1-15", entries[0].Memorization) // earlier patch kept
	})
}
