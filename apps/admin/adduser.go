package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/canteen/core"
	"github.com/trezcool/canteen/core/user"
)

type addUserOptions struct {
	name     string
	username string
	email    string
	roles    []string
	admin    bool
}

func (cli *commandLine) addUserCommand() *cobra.Command {
	var opts addUserOptions
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update the password and roles of an existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.username == "" && opts.email == "" {
				_ = cmd.Help()
				return errHelp
			}
			pwd, err := cli.promptPassword("Enter password")
			if err != nil {
				return err
			}
			if pwd == "" {
				_ = cmd.Help()
				return errHelp
			}
			if opts.admin {
				opts.roles = []string{user.RoleAdminOwner}
			}

			usr, err := cli.addUser(cmd.Context(), opts, pwd)
			if err != nil {
				return err
			}
			cli.printf("user %s saved (roles: %v)\n", usr.ID, []string(usr.Roles))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.name, "name", "", "the user's display name")
	cmd.Flags().StringVarP(&opts.username, "username", "u", "", "the user's username")
	cmd.Flags().StringVarP(&opts.email, "email", "e", "", "the user's email")
	cmd.Flags().StringSliceVar(&opts.roles, "role", []string{user.RoleStaff}, "roles to grant")
	cmd.Flags().BoolVar(&opts.admin, "admin", false, "grant the owner role")
	return cmd
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, opts addUserOptions, pwd string) (user.User, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	uname := core.CleanString(opts.username, true /* lower */)
	email := core.CleanString(opts.email, true /* lower */)

	usr, err := cli.findUser(ctx, uname, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, err
		}

		nu := user.NewUser{
			Name:            opts.name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Roles:           opts.roles,
		}
		if nu.Name == "" {
			nu.Name = uname
		}
		if nu.Name == "" {
			nu.Name = email
		}
		if err = nu.Validate(cli.validate, cli.usrSvc); err != nil {
			return user.User{}, cli.describe(err)
		}
		return cli.usrSvc.Create(ctx, nu)
	}

	active := true
	uu := user.UpdateUser{
		Name:            opts.name,
		IsActive:        &active,
		Roles:           opts.roles,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err = uu.Validate(usr, cli.validate, cli.usrSvc); err != nil {
		return user.User{}, cli.describe(err)
	}
	return cli.usrSvc.Update(ctx, usr.ID, uu)
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	for _, login := range []string{uname, email} {
		if login == "" {
			continue
		}
		usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, login)
		if errors.Cause(err) == user.ErrNotFound {
			continue
		}
		return usr, err
	}
	return user.User{}, user.ErrNotFound
}
