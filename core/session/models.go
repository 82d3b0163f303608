package session

import (
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/user"
)

// DateLayout is the wire format of Session.Date.
const DateLayout = "2006-01-02"

// Session is a scheduled memorization/review event created by a teacher.
// Sessions are never updated or deleted.
type Session struct {
	ID        string    `json:"id" db:"id"`
	TeacherID string    `json:"teacher_id" db:"teacher_id"`
	Title     string    `json:"title" db:"title"`
	Date      string    `json:"date" db:"date"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

// Entry is a single participant's memorization/revision record within one
// session. At most one entry exists per (session, participant) pair.
type Entry struct {
	ID           string      `json:"id" db:"id"`
	SessionID    string      `json:"session_id" db:"session_id"`
	UserID       string      `json:"user_id" db:"user_id"`
	FullName     string      `json:"full_name" db:"full_name"`
	Memorization string      `json:"memorization" db:"memorization"`
	Revision     string      `json:"revision" db:"revision"`
	Stars        null.Int64  `json:"stars" db:"stars"`
	Comments     null.String `json:"comments" db:"comments"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// Actor is the acting identity passed into entry mutations; permission
// gating happens here in the core, not in the presentation layer.
type Actor struct {
	ID   string
	Role string
}

func (a Actor) IsTeacher() bool { return a.Role == user.RoleTeacher }

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Title string `json:"title" validate:"required"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (ns *NewSession) Clean() {
	ns.Title = core.CleanString(ns.Title)
	ns.Date = core.CleanString(ns.Date)
}

// NewEntry contains information needed to join a session.
type NewEntry struct {
	SessionID string `json:"session_id" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
	FullName  string `json:"full_name" validate:"required"`
}

func (ne *NewEntry) Clean() {
	ne.SessionID = core.CleanString(ne.SessionID)
	ne.UserID = core.CleanString(ne.UserID)
	ne.FullName = core.CleanString(ne.FullName)
}

// EntryPatch defines what field subset of an Entry may be modified.
// Nil fields are left untouched.
type EntryPatch struct {
	FullName     *string `json:"full_name"`
	Memorization *string `json:"memorization"`
	Revision     *string `json:"revision"`
	Stars        *int64  `json:"stars" validate:"omitempty,min=0,max=5"`
	Comments     *string `json:"comments"`
}

func (p EntryPatch) IsEmpty() bool {
	return p.FullName == nil && p.Memorization == nil && p.Revision == nil &&
		p.Stars == nil && p.Comments == nil
}

// AllowedFor reports whether the actor may write every field this patch
// touches: a teacher may set all fields; the entry's own participant may set
// name/memorization/revision only.
func (p EntryPatch) AllowedFor(actor Actor, e Entry) bool {
	if actor.IsTeacher() {
		return true
	}
	if actor.ID != e.UserID {
		return false
	}
	return p.Stars == nil && p.Comments == nil
}

// ApplyTo shallow-merges the patch into an entry. The updated timestamp is
// server-assigned and deliberately not touched here.
func (p EntryPatch) ApplyTo(e *Entry) {
	if p.FullName != nil {
		e.FullName = *p.FullName
	}
	if p.Memorization != nil {
		e.Memorization = *p.Memorization
	}
	if p.Revision != nil {
		e.Revision = *p.Revision
	}
	if p.Stars != nil {
		e.Stars = null.Int64From(*p.Stars)
	}
	if p.Comments != nil {
		e.Comments = null.StringFrom(*p.Comments)
	}
}

// QueryFilter narrows the mirrored sessions list client-side.
// Search does a case-insensitive match on Session.Title.
type QueryFilter struct {
	Search string `query:"search"`
	Date   string `query:"date"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Date == ""
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Date = core.CleanString(qf.Date)
}

// Match reports whether a session passes the filter.
func (qf QueryFilter) Match(s Session) bool {
	if qf.Search != "" && !strings.Contains(strings.ToLower(s.Title), strings.ToLower(qf.Search)) {
		return false
	}
	if qf.Date != "" && s.Date != qf.Date {
		return false
	}
	return true
}
