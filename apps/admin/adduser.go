package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core"
	"github.com/facillithub-ctrl/FHUBBETA2-sub000/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin, isTeacher bool) error {
	ctx := context.Background()
	name = core.CleanString(name)
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if name == "" {
		name = uname
	}

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if usr, err = cli.usrRepo.GetUserByEmail(ctx, email); err != nil {
			if errors.Cause(err) != user.ErrNotFound {
				return err
			}
			usr = user.User{}
		}
	}
	usr.Name = name
	usr.Username = uname
	usr.Email = email
	switch {
	case isAdmin:
		usr.Roles = user.AllRoles
	case isTeacher:
		usr.Roles = []string{user.RoleTeacher}
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	isActive := true
	if usr.ID == "" {
		usr.IsActive = &isActive
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &isActive)
	return err
}
