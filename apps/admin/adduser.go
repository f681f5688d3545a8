package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/inspectorat/core"
	"github.com/trezcool/inspectorat/core/user"
)

// addUser creates an active account, or reactivates an existing one with a new password and role.
func (cli *commandLine) addUser(ctx context.Context, name, email, role, pwd string) error {
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return errors.Wrap(err, "finding user by email")
		}

		nu := user.NewUser{Name: name, Email: email, Role: role, Password: pwd, PasswordConfirm: pwd}
		if err := nu.Validate(cli.validate, cli.users); err != nil {
			return err
		}
		usr, err = cli.users.Create(ctx, nu)
		if err != nil {
			return errors.Wrap(err, "creating user")
		}
		cli.logger.Info("user created", map[string]interface{}{"id": usr.ID, "email": usr.Email})
		return nil
	}

	active := true
	uu := user.UpdateUser{Role: &role, IsActive: &active, Password: &pwd, PasswordConfirm: &pwd}
	if err := uu.Validate(usr, cli.validate, cli.users); err != nil {
		return err
	}
	if _, err := cli.users.Update(ctx, usr.ID, uu); err != nil {
		return errors.Wrap(err, "updating user")
	}
	cli.logger.Info("user updated", map[string]interface{}{"id": usr.ID, "email": usr.Email})
	return nil
}
