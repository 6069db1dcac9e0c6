package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/propvault/pkg/client/session"
	"github.com/yeisme/propvault/pkg/configs"
)

var (
	sessionCmd = &cobra.Command{
		Use:   "session",
		Short: "manage the persisted client session",
	}

	sessionSetCmd = &cobra.Command{
		Use:   "set <token>",
		Short: "store a bearer token for later record commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Set(args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "session stored, expires %s\n", s.ExpiresAt().Local().Format(time.RFC3339))

			return nil
		},
	}

	sessionClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "remove the stored session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Clear(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "session cleared")

			return nil
		},
	}

	sessionShowCmd = &cobra.Command{
		Use:   "show",
		Short: "print whether a session is active and when it expires",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			if !s.Active() {
				fmt.Fprintln(cmd.OutOrStdout(), "no active session")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "active, expires %s\n", s.ExpiresAt().Local().Format(time.RFC3339))

			return nil
		},
	}
)

func openSession() (*session.Session, error) {
	cfg := configs.GetConfig().Client

	return session.Open(cfg.GetSessionFile(), cfg.GetSessionTTL(), nil)
}

// registerSessionCommands 注册会话命令.
func registerSessionCommands() {
	sessionCmd.AddCommand(sessionSetCmd, sessionClearCmd, sessionShowCmd)

	rootCmd.AddCommand(sessionCmd)
}
