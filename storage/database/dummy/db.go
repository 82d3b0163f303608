package dummydb

import (
	"sync"

	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/session"
	"github.com/tahfeezapp/tahfeez/core/user"
)

// DB is an in-memory stand-in for the remote table store, used by tests and
// local development.
type (
	DB struct {
		account *accountTable
		user    *userTable
		session *sessionTable
	}

	accountTable struct {
		sync.RWMutex
		rows []auth.Account
	}

	userTable struct {
		sync.RWMutex
		rows []user.User
	}

	// sessionTable holds sessions and their entries; rows keep insertion
	// order so equal timestamps still sort deterministically.
	sessionTable struct {
		sync.RWMutex
		sessions []session.Session
		entries  []session.Entry
	}
)

func Open() (*DB, error) {
	return &DB{
		account: &accountTable{},
		user:    &userTable{},
		session: &sessionTable{},
	}, nil
}
