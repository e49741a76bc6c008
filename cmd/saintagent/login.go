package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"saintagent/internal/browser"
)

var loginUserID int64

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log the user's portal session in and persist it to the profile",
	Long: `Performs a portal login with the credentials from the environment
(SAINT_ID / SAINT_PASSWORD) and leaves the authenticated state in the
user's persistent browser profile, so later conversations and scheduled
tasks start already logged in.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cfg)
		if err != nil {
			return err
		}
		defer a.st.Close()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			a.sessions.Shutdown(shutdownCtx)
		}()

		id, pw, err := a.creds.Lookup(loginUserID)
		if err != nil {
			return err
		}

		s := a.sessions.GetOrCreate(browser.UserKey(loginUserID))
		if err := a.sessions.Start(cmd.Context(), s); err != nil {
			return err
		}
		if err := a.portal.Login(cmd.Context(), s, id, pw); err != nil {
			return err
		}
		fmt.Printf("logged in as %s (profile %s)\n", id, s.ProfileDir())
		return nil
	},
}

func init() {
	loginCmd.Flags().Int64Var(&loginUserID, "user", 1, "user id to log in")
}
