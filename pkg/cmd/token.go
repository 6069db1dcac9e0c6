package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yeisme/propvault/pkg/client/session"
	"github.com/yeisme/propvault/pkg/configs"
	"github.com/yeisme/propvault/pkg/middleware"
)

var (
	tokenSubject string
	tokenRole    string
	tokenTTL     time.Duration
	tokenSave    bool

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "mint a bearer token signed with auth.secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configs.GetConfig()

			token, expiresAt, err := middleware.IssueToken(cfg.Auth, tokenSubject, middleware.ParseRole(tokenRole), tokenTTL)
			if err != nil {
				return err
			}

			if tokenSave {
				s, err := session.Open(cfg.Client.GetSessionFile(), cfg.Client.GetSessionTTL(), nil)
				if err != nil {
					return err
				}
				defer s.Close()

				if err := s.Set(token); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "subject=%s role=%s expires=%s\n",
				tokenSubject, middleware.ParseRole(tokenRole), expiresAt.Local().Format(time.RFC3339))

			return nil
		},
	}
)

// registerTokenCommands 注册令牌命令.
func registerTokenCommands() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "token subject (the operator name)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", middleware.RoleEditor.String(), "viewer | editor | admin")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	tokenCmd.Flags().BoolVar(&tokenSave, "save", false, "also store the token as the client session")
	_ = tokenCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(tokenCmd)
}
