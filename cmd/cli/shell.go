package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/chrisapx/fif-client-sub000/internal/config"
	"github.com/chrisapx/fif-client-sub000/internal/shell"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Open the interactive shell",
	Long: `Open the interactive shell. The session ends after a period without
keyboard or mouse input, or when the session duration runs out, and the stored
login is cleared.`,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {

	if _, _, err := requireClient(cmd); err != nil {
		return err
	}

	started := time.Now()

	err := shell.Run(commandContext(cmd), application)

	printSuppressedLogs(started)

	if errors.Is(err, shell.ErrSessionExpired) {
		fmt.Println(warningStyle.Render("Your session has expired."))
		fmt.Println("Run `fif login` to sign in again.")
		return nil
	}

	if errors.Is(err, shell.ErrLoggedOut) {
		fmt.Println(successStyle.Render("Logged out"))
		return nil
	}

	return err
}

// printSuppressedLogs shows warnings logged while the shell owned the screen.
func printSuppressedLogs(since time.Time) {

	logger := cfg.GetLogger()
	if logger == nil {
		return
	}

	entries := logger.GetEventsWithFilter(config.LogFilter{
		MinLevel: logrus.WarnLevel,
		Since:    &since,
		Limit:    10,
	})

	for _, entry := range entries {
		style := warningStyle
		if entry.Level <= logrus.ErrorLevel {
			style = errorStyle
		}
		fmt.Println(style.Render(entry.Level.String()) + " " + entry.Message)
	}
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
