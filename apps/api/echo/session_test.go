package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tahfeezapp/tahfeez/core/session"
	"github.com/tahfeezapp/tahfeez/core/user"
)

func Test_sessionApi_sessions(t *testing.T) {
	server, deps := setup(t, testConf(false))
	teacherAcct, _ := createUser(t, deps, "ustadh@test.test", "S3cret!pass", user.RoleTeacher)
	studentAcct, _ := createUser(t, deps, "talib@test.test", "S3cret!pass", user.RoleStudent)
	teacherToken := getToken(t, deps, teacherAcct)
	studentToken := getToken(t, deps, studentAcct)

	createSession := func(t *testing.T, title, date string) session.Session {
		t.Helper()
		body := marchallObj(t, session.NewSession{Title: title, Date: date})
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", teacherToken, body)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)
		var sess session.Session
		require.NoError(t, unmarshalBody(rec, &sess))
		return sess
	}

	tests := []httpTest{
		{
			name:     "create requires auth",
			method:   http.MethodPost,
			path:     "/v1/sessions",
			body:     []byte(`{"title": "X", "date": "2026-09-01"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "create requires teacher role",
			method:   http.MethodPost,
			path:     "/v1/sessions",
			body:     []byte(`{"title": "X", "date": "2026-09-01"}`),
			token:    studentToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: session.MsgPermissionDenied}),
		},
		{
			name:     "create missing title",
			method:   http.MethodPost,
			path:     "/v1/sessions",
			body:     []byte(`{"date": "2026-09-01"}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"title": "this field is required"}`),
		},
		{
			name:     "create invalid date",
			method:   http.MethodPost,
			path:     "/v1/sessions",
			body:     []byte(`{"title": "X", "date": "01/09/2026"}`),
			token:    teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"date": "invalid date"}`),
		},
		{
			name:     "list requires auth",
			method:   http.MethodGet,
			path:     "/v1/sessions",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	sessA := createSession(t, "Surah Al-Baqarah", "2026-09-01")
	sessB := createSession(t, "Surah Al-Imran", "2026-09-08")
	assert.Equal(t, teacherAcct.ID, sessA.TeacherID)

	t.Run("list is newest first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions", studentToken)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []session.Session
		require.NoError(t, unmarshalBody(rec, &got))
		require.Len(t, got, 2)
		assert.Equal(t, sessB.ID, got[0].ID)
		assert.Equal(t, sessA.ID, got[1].ID)
	})

	t.Run("list filtered by search", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions?search=baqarah", studentToken)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []session.Session
		require.NoError(t, unmarshalBody(rec, &got))
		require.Len(t, got, 1)
		assert.Equal(t, sessA.ID, got[0].ID)
	})

	t.Run("list filtered by date", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions?date=2026-09-08", studentToken)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []session.Session
		require.NoError(t, unmarshalBody(rec, &got))
		require.Len(t, got, 1)
		assert.Equal(t, sessB.ID, got[0].ID)
	})

	t.Run("retrieve", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/"+sessA.ID, studentToken)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, sessA)}, rec)
	})

	t.Run("retrieve unknown", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/sessions/nope", studentToken)
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: session.MsgSessionNotFound}),
		}, rec)
	})
}

func Test_sessionApi_entries(t *testing.T) {
	server, deps := setup(t, testConf(false))
	teacherAcct, _ := createUser(t, deps, "ustadh@test.test", "S3cret!pass", user.RoleTeacher)
	studentAcct, _ := createUser(t, deps, "talib@test.test", "S3cret!pass", user.RoleStudent)
	otherAcct, _ := createUser(t, deps, "other@test.test", "S3cret!pass", user.RoleStudent)
	teacherToken := getToken(t, deps, teacherAcct)
	studentToken := getToken(t, deps, studentAcct)
	otherToken := getToken(t, deps, otherAcct)

	// teacher schedules a session
	req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", teacherToken,
		[]byte(`{"title": "Surah Al-Kahf", "date": "2026-09-05"}`))
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	var sess session.Session
	require.NoError(t, unmarshalBody(rec, &sess))
	entriesPath := "/v1/sessions/" + sess.ID + "/entries"

	join := func(t *testing.T, token string, body []byte, wantCode int) session.Entry {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, entriesPath, token, body)
		server.ServeHTTP(rec, req)
		require.Equal(t, wantCode, rec.Code, rec.Body.String())
		var entry session.Entry
		if wantCode == http.StatusCreated {
			require.NoError(t, unmarshalBody(rec, &entry))
		}
		return entry
	}

	// student joins as themselves; user_id defaults to the acting identity
	studentEntry := join(t, studentToken, []byte(`{"full_name": "Talib One"}`), http.StatusCreated)
	assert.Equal(t, studentAcct.ID, studentEntry.UserID)
	assert.Equal(t, sess.ID, studentEntry.SessionID)
	assert.False(t, studentEntry.Stars.Valid)
	assert.NotEmpty(t, studentEntry.ID)

	// joining twice is refused
	req, rec = newAuthRequest(http.MethodPost, entriesPath, studentToken, []byte(`{"full_name": "Talib One"}`))
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, httpErr{Error: session.MsgAlreadyJoined}),
	}, rec)

	// a student cannot join on behalf of another participant
	req, rec = newAuthRequest(http.MethodPost, entriesPath, otherToken,
		marchallObj(t, session.NewEntry{UserID: studentAcct.ID, FullName: "Impostor"}))
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusForbidden,
		wantData: marchallObj(t, httpErr{Error: session.MsgPermissionDenied}),
	}, rec)

	// a teacher may add an entry for any participant
	otherEntry := join(t, teacherToken,
		marchallObj(t, session.NewEntry{UserID: otherAcct.ID, FullName: "Talib Two"}), http.StatusCreated)
	assert.Equal(t, otherAcct.ID, otherEntry.UserID)

	t.Run("list is oldest first", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, entriesPath, studentToken)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var got []session.Entry
		require.NoError(t, unmarshalBody(rec, &got))
		require.Len(t, got, 2)
		assert.Equal(t, studentEntry.ID, got[0].ID)
		assert.Equal(t, otherEntry.ID, got[1].ID)
	})

	t.Run("participant updates own recitation fields", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/"+studentEntry.ID, studentToken,
			[]byte(`{"memorization": "2:1-2:20", "revision": "1:1-1:7"}`))
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got session.Entry
		require.NoError(t, unmarshalBody(rec, &got))
		assert.Equal(t, "2:1-2:20", got.Memorization)
		assert.Equal(t, "1:1-1:7", got.Revision)
		assert.Equal(t, "Talib One", got.FullName) // untouched
		assert.False(t, got.Stars.Valid)           // untouched
	})

	t.Run("participant cannot grade themselves", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/"+studentEntry.ID, studentToken,
			[]byte(`{"stars": 5}`))
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: session.MsgPermissionDenied}),
		}, rec)
	})

	t.Run("participant cannot touch another entry", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/"+otherEntry.ID, studentToken,
			[]byte(`{"memorization": "18:1-18:10"}`))
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("teacher grades an entry", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/"+studentEntry.ID, teacherToken,
			[]byte(`{"stars": 4, "comments": "ما شاء الله"}`))
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got session.Entry
		require.NoError(t, unmarshalBody(rec, &got))
		require.True(t, got.Stars.Valid)
		assert.EqualValues(t, 4, got.Stars.Int64)
		assert.Equal(t, "ما شاء الله", got.Comments.String)
		assert.Equal(t, "2:1-2:20", got.Memorization) // earlier patch kept
	})

	t.Run("empty patch is refused", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/"+studentEntry.ID, teacherToken, []byte(`{}`))
		server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: session.MsgMissingFields}),
		}, rec)
	})

	t.Run("stars out of range", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/"+studentEntry.ID, teacherToken,
			[]byte(`{"stars": 9}`))
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown entry", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/entries/nope", teacherToken,
			[]byte(`{"stars": 3}`))
		server.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
