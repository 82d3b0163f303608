package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core/auth"
)

type accountRepository struct {
	db *sqlx.DB
}

var _ auth.AccountRepository = (*accountRepository)(nil) // interface compliance check

func NewAccountRepository(db *sqlx.DB) *accountRepository {
	return &accountRepository{db: db}
}

func (repo accountRepository) CreateAccount(ctx context.Context, acct auth.Account) (auth.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.New().String()
	}
	_, err := repo.db.NamedExecContext(
		ctx,
		`INSERT INTO accounts (id, email, password_hash, confirmed, created_at, last_login)
		 VALUES (:id, :email, :password_hash, :confirmed, :created_at, :last_login)`,
		acct,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return auth.Account{}, auth.ErrAccountExists
		}
		return auth.Account{}, errors.Wrap(err, "inserting account")
	}
	return acct, nil
}

func (repo accountRepository) GetAccountByID(ctx context.Context, id string) (auth.Account, error) {
	var acct auth.Account
	err := repo.db.GetContext(ctx, &acct, `SELECT * FROM accounts WHERE id = $1`, id)
	if err != nil {
		return auth.Account{}, trapNoRowsErr(err, auth.ErrAccountNotFound, "fetching account by id")
	}
	return acct, nil
}

func (repo accountRepository) GetAccountByEmail(ctx context.Context, email string) (auth.Account, error) {
	var acct auth.Account
	err := repo.db.GetContext(ctx, &acct, `SELECT * FROM accounts WHERE email = $1`, email)
	if err != nil {
		return auth.Account{}, trapNoRowsErr(err, auth.ErrAccountNotFound, "fetching account by email")
	}
	return acct, nil
}

func (repo accountRepository) ActivateAccount(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `UPDATE accounts SET confirmed = true WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "activating account")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.ErrAccountNotFound
	}
	return nil
}

func (repo accountRepository) UpdatePassword(ctx context.Context, id string, hash []byte) (auth.Account, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, hash, id)
	if err != nil {
		return auth.Account{}, errors.Wrap(err, "updating password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return auth.Account{}, auth.ErrAccountNotFound
	}
	return repo.GetAccountByID(ctx, id)
}

func (repo accountRepository) SetLastLogin(ctx context.Context, id string, t time.Time) (auth.Account, error) {
	if _, err := repo.db.ExecContext(ctx, `UPDATE accounts SET last_login = $1 WHERE id = $2`, t.UTC(), id); err != nil {
		return auth.Account{}, errors.Wrap(err, "setting last login")
	}
	return repo.GetAccountByID(ctx, id)
}
