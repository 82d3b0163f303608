package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tahfeezapp/tahfeez/core/auth"
)

type accountRepository struct {
	db *accountTable
}

var _ auth.AccountRepository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *DB) *accountRepository {
	return &accountRepository{db: db.account}
}

func (repo *accountRepository) CreateAccount(ctx context.Context, acct auth.Account) (auth.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.rows {
		if a.Email == acct.Email {
			return auth.Account{}, auth.ErrAccountExists
		}
	}
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	repo.db.rows = append(repo.db.rows, acct)
	return acct, nil
}

func (repo *accountRepository) GetAccountByID(ctx context.Context, id string) (auth.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, a := range repo.db.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (repo *accountRepository) GetAccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, a := range repo.db.rows {
		if a.Email == email {
			return a, nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (repo *accountRepository) ActivateAccount(ctx context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i := range repo.db.rows {
		if repo.db.rows[i].ID == id {
			repo.db.rows[i].Confirmed = true
			return nil
		}
	}
	return auth.ErrAccountNotFound
}

func (repo *accountRepository) UpdatePassword(ctx context.Context, id string, hash []byte) (auth.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i := range repo.db.rows {
		if repo.db.rows[i].ID == id {
			repo.db.rows[i].PasswordHash = hash
			return repo.db.rows[i], nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}

func (repo *accountRepository) SetLastLogin(ctx context.Context, id string, t time.Time) (auth.Account, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i := range repo.db.rows {
		if repo.db.rows[i].ID == id {
			repo.db.rows[i].LastLogin = t.UTC()
			return repo.db.rows[i], nil
		}
	}
	return auth.Account{}, auth.ErrAccountNotFound
}
