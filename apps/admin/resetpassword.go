package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/user"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.users.GetByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: &pwd, PasswordConfirm: &pwd}
	if err := uu.Validate(usr, cli.validate, cli.users); err != nil {
		return err
	}
	if _, err := cli.users.SetPassword(ctx, usr, pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	return nil
}
