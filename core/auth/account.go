package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var ErrAccountNotFound = errors.New("account not found")

// Account is a credentials record owned by the identity provider.
// It is distinct from the user.User role record: an account exists as soon
// as sign-up succeeds, a role record only after the first full resolution.
type Account struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Confirmed    bool      `db:"confirmed"`
	CreatedAt    time.Time `db:"created_at"` // UTC
	LastLogin    time.Time `db:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

type AccountRepository interface {
	// CreateAccount returns ErrAccountExists when the email is taken.
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	GetAccountByID(ctx context.Context, id string) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	ActivateAccount(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, hash []byte) (Account, error)
	SetLastLogin(ctx context.Context, id string, t time.Time) (Account, error)
}
