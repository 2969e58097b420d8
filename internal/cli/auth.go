package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s3transfer/transferctl/internal/api"
)

func newLoginCmd() *cobra.Command {
	var (
		username      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the transfer service",
		Long: `Log in with a username and password. The returned token is stored in the
client state file and sent with every later request.

Examples:
  transferctl login --username alice
  echo "$PASSWORD" | transferctl login --username alice --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				username, err = promptLine(in, cmd.ErrOrStderr(), "Username", "")
				if err != nil {
					return fmt.Errorf("failed to read username: %w", err)
				}
			}

			var password string
			if passwordStdin {
				password, err = readSecretLine(in)
			} else {
				password, err = promptPassword(cmd.ErrOrStderr(), "Password: ")
			}
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}

			if err := a.session.Login(cmd.Context(), a.client, username, password); err != nil {
				if errors.Is(err, api.ErrUnauthorized) {
					return fmt.Errorf("login failed: invalid username or password")
				}
				return err
			}

			a.logger.Info().Str("user", username).Msg("Logged in")
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.session.Logout(); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

// readSecretLine reads one line from r without trimming inner spaces.
func readSecretLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
