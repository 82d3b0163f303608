package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/tahfeezapp/tahfeez/core"
	"github.com/tahfeezapp/tahfeez/core/auth"
	"github.com/tahfeezapp/tahfeez/core/user"
)

// addTeacher creates a confirmed teacher account, or promotes an existing
// identity to the teacher role.
func (cli *commandLine) addTeacher(email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	acct, err := cli.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != auth.ErrAccountNotFound {
			return err
		}
		acct = auth.Account{
			Email:     email,
			Confirmed: true,
			CreatedAt: time.Now().UTC(),
		}
		if err = acct.SetPassword(pwd); err != nil {
			return err
		}
		if acct, err = cli.accounts.CreateAccount(ctx, acct); err != nil {
			return err
		}
	}

	if _, err = cli.users.GetUserByID(ctx, acct.ID); err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		_, err = cli.users.CreateUser(ctx, user.User{
			ID:        acct.ID,
			Email:     acct.Email,
			Role:      user.RoleTeacher,
			CreatedAt: time.Now().UTC(),
		})
		return err
	}
	_, err = cli.users.UpdateUserRole(ctx, acct.ID, user.RoleTeacher)
	return err
}
