package user

import (
	"context"
	"errors"
)

var (
	// errors
	ErrNotFound = errors.New("user not found")
	ErrExists   = errors.New("a role record already exists for this identity")
)

type Repository interface {
	CreateUser(ctx context.Context, usr User) (User, error)
	GetUserByID(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUserRole(ctx context.Context, id, role string) (User, error)
	QueryAllUsers(ctx context.Context) ([]User, error)
}
