package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/cwrk-planet/call-service/internal/app"
	"github.com/cwrk-planet/call-service/internal/service"

	"github.com/spf13/cobra"
)

const mentorPasswordEnv = "MENTOR_PASSWORD"

func newMentorCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mentor",
		Short: "Manage mentor credentials",
	}
	cmd.AddCommand(newMentorAddCommand(opts))
	return cmd
}

func newMentorAddCommand(opts *options) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Provision a mentor who can log in and list active rooms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(mentorPasswordEnv)
			}
			if password == "" {
				return errors.New("password is required (--password or " + mentorPasswordEnv + ")")
			}

			cfg, log, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := app.OpenStore(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			// provisioning never signs tokens
			mentors := service.NewMentorService(store, nil, cfg.Auth.BcryptCost, log)
			if err := mentors.AddMentor(ctx, args[0], password); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "mentor %q added\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "mentor password (or $"+mentorPasswordEnv+")")
	return cmd
}
