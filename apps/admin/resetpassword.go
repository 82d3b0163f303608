package main

import (
	"context"

	"github.com/tahfeezapp/tahfeez/core"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	acct, err := cli.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err := acct.SetPassword(pwd); err != nil {
		return err
	}
	if _, err := cli.accounts.UpdatePassword(ctx, acct.ID, acct.PasswordHash); err != nil {
		return err
	}
	return nil
}
