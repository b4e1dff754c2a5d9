package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/featureboard/backend/internal/config"
	"github.com/featureboard/backend/internal/models"
	"github.com/featureboard/backend/internal/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func newUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserListCommand(opts))
	cmd.AddCommand(newUserCreateCommand(opts))
	cmd.AddCommand(newUserSetRoleCommand(opts))
	return cmd
}

func newUserListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(_ *config.Config, db *gorm.DB) error {
				var users []models.User
				if err := db.WithContext(cmd.Context()).Order("created_at DESC").Find(&users).Error; err != nil {
					return fmt.Errorf("list users: %w", err)
				}
				return opts.print(cmd.OutOrStdout(), users, func(w io.Writer) error {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tROLE\tAUTH")
					for _, u := range users {
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Name, u.Role, u.AuthType)
					}
					return tw.Flush()
				})
			})
		},
	}
}

func newUserCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		req  services.RegisterRequest
		role string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a local account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(cfg *config.Config, db *gorm.DB) error {
				authService := services.NewAuthService(db, &cfg.JWT, &cfg.Auth, &cfg.LDAP)
				user, err := authService.CreateLocalUser(cmd.Context(), &req, models.Role(strings.ToUpper(role)))
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), user, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "created %s (%s) with role %s\n", user.Email, user.ID, user.Role)
					return err
				})
			})
		},
	}

	cmd.Flags().StringVar(&req.Email, "email", "", "e-mail address (required)")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "password, at least 6 characters (required)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleUser), "USER or ADMIN")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserSetRoleCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set-role <email> <USER|ADMIN>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withDB(func(cfg *config.Config, db *gorm.DB) error {
				users := services.NewUserService(db, nil, nil, &cfg.Users)
				user, err := users.SetRole(cmd.Context(), args[0], models.Role(strings.ToUpper(args[1])))
				if err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), user, func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "%s is now %s\n", user.Email, user.Role)
					return err
				})
			})
		},
	}
}
