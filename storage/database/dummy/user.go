package dummydb

import (
	"context"

	"github.com/tahfeezapp/tahfeez/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.rows {
		if u.ID == usr.ID {
			return user.User{}, user.ErrExists
		}
	}
	repo.db.rows = append(repo.db.rows, usr)
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, u := range repo.db.rows {
		if u.ID == id {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, u := range repo.db.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUserRole(ctx context.Context, id, role string) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i := range repo.db.rows {
		if repo.db.rows[i].ID == id {
			repo.db.rows[i].Role = role
			return repo.db.rows[i], nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, len(repo.db.rows))
	copy(users, repo.db.rows)
	return users, nil
}
