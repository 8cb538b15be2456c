package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(a *app) *cobra.Command {
	var token, role string

	cmd := &cobra.Command{
		Use:   "login [--token <jwt>] [--role <role>]",
		Short: "Store the bearer token issued by the backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(token) == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no token given")
				}
				token = line
			}

			sessions := a.sessions()
			if err := sessions.Login(cmd.Context(), token, role); err != nil {
				return err
			}
			stored, err := sessions.Role(cmd.Context())
			if err != nil {
				return err
			}
			if stored == "" {
				stored = "unknown"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in (role: %s)\n", stored)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "bearer token; read from stdin when omitted")
	cmd.Flags().StringVar(&role, "role", "", "role to record; taken from the token when omitted")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.sessions().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}
