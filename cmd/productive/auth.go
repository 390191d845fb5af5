package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"productive-cloud/internal/domain"

	"github.com/spf13/cobra"
)

func prompt(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

func (a *app) finishLogin(ctx context.Context, resp *domain.AuthResponse) error {
	user, err := json.Marshal(resp.User)
	if err != nil {
		return err
	}
	if err := a.store.SaveLogin(ctx, resp.Token, user); err != nil {
		return err
	}

	fmt.Printf("%s Signed in as %s.\n", resp.Message, resp.User.Username)

	report := a.engine.SyncAll(ctx, true)
	printReport(report)
	return nil
}

func loginCmd(a *app) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and start syncing this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBackend(); err != nil {
				return err
			}
			var err error
			if email == "" {
				if email, err = prompt("Email"); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt("Password"); err != nil {
					return err
				}
			}

			resp, err := a.client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.finishLogin(cmd.Context(), resp)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	return cmd
}

func registerCmd(a *app) *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireBackend(); err != nil {
				return err
			}
			var err error
			if password == "" {
				if password, err = prompt("Password"); err != nil {
					return err
				}
			}

			resp, err := a.client.Register(cmd.Context(), username, email, password)
			if err != nil {
				return err
			}
			return a.finishLogin(cmd.Context(), resp)
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "username (3-30 letters or digits)")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password (prompted when empty)")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential; local data is kept",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Signed out. Local data stays on this device.")
			return nil
		},
	}
}
