package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igclient/pkg/auth"
)

var loginForce bool

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and save credentials to the OS keyring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])

		fmt.Printf("Password for %s: ", username)
		passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password := string(passwordBytes)
		if password == "" {
			return fmt.Errorf("empty password")
		}

		manager := auth.NewManager(auth.NewKeyringStore())
		if err := manager.Login(auth.Account{Username: username, Password: password}); err != nil {
			return err
		}

		flagUsername = username
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.session.Login(cmd.Context(), username, password, loginForce); err != nil {
			return err
		}

		fmt.Printf("Logged in as %s\n", username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout <username>",
	Short: "Delete saved credentials and cookies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])

		manager := auth.NewManager(auth.NewKeyringStore())
		if err := manager.Logout(username); err != nil {
			return err
		}

		if flagCookieFile != "" {
			os.Remove(flagCookieFile)
		}

		fmt.Printf("Logged out %s\n", username)
		return nil
	},
}

func init() {
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "log in even if a saved session exists")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
