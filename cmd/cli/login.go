package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/chrisapx/fif-client-sub000/internal/auth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the Fineract self service API",
	Long:  "Prompts for your username and password, signs in and keeps the credential token for later commands",
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored login",
	Long:  "Removes the stored credential token and user profile. Biometric enrollment is kept.",
	RunE: func(cmd *cobra.Command, args []string) error {

		if !application.Auth.Store().IsAuthenticated() {
			fmt.Println(infoStyle.Render("Not logged in"))
			return nil
		}

		if err := application.Auth.Logout(); err != nil {
			return fmt.Errorf("failed to log out: %w", err)
		}

		fmt.Println(successStyle.Render("Logged out"))
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in user",
	RunE: func(cmd *cobra.Command, args []string) error {

		user, err := application.RequireLogin()
		if errors.Is(err, auth.ErrNotAuthenticated) {
			fmt.Println(warningStyle.Render("Not logged in"))
			return nil
		} else if err != nil {
			return err
		}

		printField("User", user.Username)
		printField("Office", user.OfficeName)
		if clientID, ok := user.ClientID(); ok {
			printField("Client", fmt.Sprintf("%d", clientID))
		}
		printField("Logged in", user.LoggedInAt.Local().Format("2006-01-02 15:04:05"))
		printField("Server", cfg.Fineract.Endpoint)

		if application.Auth.Store().IsBiometricEnrolled() {
			printField("Biometric", activeStyle.Render("enrolled"))
		}

		return nil
	},
}

func runLogin(cmd *cobra.Command, args []string) error {

	// Set up signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Println("\nLogin cancelled.")
			cancel()
		case <-ctx.Done():
		}
	}()

	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	if len(username) == 0 || len(password) == 0 {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Username").
					Value(&username).
					Validate(notEmpty("username")),
				huh.NewInput().
					Title("Password").
					EchoMode(huh.EchoModePassword).
					Value(&password).
					Validate(notEmpty("password")),
			),
		)

		if err := form.Run(); err != nil {
			return fmt.Errorf("login prompt cancelled: %w", err)
		}
	}

	ctx, timeout := context.WithTimeout(ctx, cfg.Fineract.Timeout+5*time.Second)
	defer timeout()

	user, err := application.Auth.Login(ctx, username, password)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("login cancelled")
		}
		return err
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Login successful!"))
	fmt.Printf("Welcome %s (%s)\n", user.Username, user.OfficeName)
	fmt.Println()

	return nil
}

func notEmpty(name string) func(string) error {
	return func(value string) error {
		if len(strings.TrimSpace(value)) == 0 {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func printField(label string, value string) {
	fmt.Println(labelStyle.Render(label) + value)
}

func init() {
	loginCmd.Flags().StringP("username", "u", "", "Username (prompted when empty)")
	loginCmd.Flags().StringP("password", "p", "", "Password (prompted when empty)")

	// Add the commands to the root
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
