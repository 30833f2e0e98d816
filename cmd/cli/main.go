package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/chrisapx/fif-client-sub000/internal/app"
	"github.com/chrisapx/fif-client-sub000/internal/auth"
	"github.com/chrisapx/fif-client-sub000/internal/config"
	"github.com/chrisapx/fif-client-sub000/internal/fineract"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Commands carrying this annotation run without a configured backend.
const annotationStandalone = "standalone"

// Global configuration and application instances
var cfg *config.Config
var application *app.App

// loadConfig loads the configuration based on the --config flag or default locations
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configFile, err := cmd.Flags().GetString("config")

	if err != nil {
		return nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	return config.Load(configFile)
}

func preRunConfigE(cmd *cobra.Command, _ []string) error {
	// Load configuration before any command runs
	var err error
	cfg, err = loadConfig(cmd)

	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// check if verbose flag is set
	verbose, err := cmd.Flags().GetBool("verbose")
	if err == nil && verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if endpoint, err := cmd.Flags().GetString("endpoint"); err == nil && len(endpoint) > 0 {
		cfg.Fineract.Endpoint = endpoint
	}

	if tenant, err := cmd.Flags().GetString("tenant"); err == nil && len(tenant) > 0 {
		cfg.Fineract.Tenant = tenant
	}

	if isStandalone(cmd) {
		return nil
	}

	application, err = app.New(cfg)
	if err != nil {
		if errors.Is(err, config.ErrMissingSecret) {
			return fmt.Errorf("%w. Run `fif config init` to create one", err)
		}
		return err
	}

	return nil
}

func postRunE(_ *cobra.Command, _ []string) error {
	if application == nil {
		return nil
	}
	return application.Close()
}

func isStandalone(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[annotationStandalone]; ok {
			return true
		}
	}
	return false
}

// requireClient restores the saved login, offering to sign in when there is
// none or the backend rejected the saved token.
func requireClient(cmd *cobra.Command) (*auth.User, int64, error) {

	user, clientID, err := application.RequireClient()
	if errors.Is(err, auth.ErrNotAuthenticated) {
		if err := promptAndLogin(cmd); err != nil {
			return nil, 0, err
		}
		return application.RequireClient()
	}

	return user, clientID, err
}

// promptAndLogin prompts the user if they want to login and handles the login process
func promptAndLogin(cmd *cobra.Command) error {
	fmt.Println()
	fmt.Println(titleStyle.Render("Authentication Required"))
	fmt.Println("No active login session found.")
	fmt.Println()

	var shouldLogin bool

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Would you like to login now?").
				Description(fmt.Sprintf("Sign in to %s", cfg.Fineract.Endpoint)).
				Value(&shouldLogin),
		),
	)

	err := form.Run()
	if err != nil {
		return fmt.Errorf("login prompt cancelled: %w", err)
	}

	if !shouldLogin {
		return fmt.Errorf("authentication required but login was declined")
	}

	fmt.Println()
	return runLogin(cmd, []string{})
}

// handleAPIError turns a rejected token into a logout and a login hint.
func handleAPIError(err error) error {

	if err == nil {
		return nil
	}

	if errors.Is(err, fineract.ErrUnauthorized) {
		if logoutErr := application.Auth.Logout(); logoutErr != nil {
			logrus.WithError(logoutErr).Warnln("Failed to clear rejected login")
		}
		return fmt.Errorf("your login is no longer valid, run `fif login`: %w", err)
	}

	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func parseID(value string, name string) (int64, error) {
	var id int64
	if _, err := fmt.Sscan(strings.TrimSpace(value), &id); err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, value)
	}
	return id, nil
}

var rootCmd = &cobra.Command{
	Use:   "fif",
	Short: "fif - self service banking for Fineract backed savings and loans",
	Long: `fif is a terminal client for microfinance members.

It signs in against an Apache Fineract self service API, shows savings,
loans and transactions, moves money between accounts and manages transfer
beneficiaries. Running fif without a command opens the interactive shell.`,
	SilenceUsage:       true,
	PersistentPreRunE:  preRunConfigE,
	PersistentPostRunE: postRunE,
	RunE:               runShell,
}

func init() {

	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default is $HOME/.config/fif/config.yaml)")
	rootCmd.PersistentFlags().String("endpoint", "", "Override the Fineract server URL (e.g., https://bank.example.com)")
	rootCmd.PersistentFlags().String("tenant", "", "Override the Fineract tenant identifier")

}

func GetCommandOptions() *cobra.Command {
	return rootCmd
}
