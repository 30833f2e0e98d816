package cli

import (
	"errors"
	"fmt"

	"github.com/chrisapx/fif-client-sub000/internal/auth"
	"github.com/spf13/cobra"
)

var biometricCmd = &cobra.Command{
	Use:   "biometric",
	Short: "Quick sign in bound to this device",
	Long: `Enroll this device for quick sign in. The enrollment survives logout and
session expiry and only works on the device that created it.`,
	RunE: runBiometricStatus,
}

var biometricEnrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll the current login on this device",
	RunE: func(cmd *cobra.Command, args []string) error {

		if _, err := application.RequireLogin(); errors.Is(err, auth.ErrNotAuthenticated) {
			if err := promptAndLogin(cmd); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := application.Auth.EnrollBiometric(); err != nil {
			return fmt.Errorf("failed to enroll: %w", err)
		}

		fmt.Println(successStyle.Render("This device is enrolled for quick sign in"))
		return nil
	},
}

var biometricLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with the enrolled credential",
	RunE: func(cmd *cobra.Command, args []string) error {

		user, err := application.Auth.LoginWithBiometric(commandContext(cmd))
		switch {
		case errors.Is(err, auth.ErrNotEnrolled):
			return fmt.Errorf("this device is not enrolled, run `fif biometric enroll` after logging in")
		case errors.Is(err, auth.ErrDeviceMismatch):
			return fmt.Errorf("the enrollment belongs to another device, run `fif biometric clear` and enroll again")
		case err != nil:
			return err
		}

		fmt.Println(successStyle.Render("Login successful!"))
		fmt.Printf("Welcome back %s\n", user.Username)
		return nil
	},
}

var biometricClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the enrollment from this device",
	RunE: func(cmd *cobra.Command, args []string) error {

		if err := application.Auth.Store().ClearBiometric(); err != nil {
			return fmt.Errorf("failed to clear enrollment: %w", err)
		}

		fmt.Println(successStyle.Render("Enrollment removed"))
		return nil
	},
}

func runBiometricStatus(cmd *cobra.Command, args []string) error {

	enrollment, err := application.Auth.Store().BiometricEnrollment()
	if errors.Is(err, auth.ErrNotEnrolled) {
		fmt.Println(infoStyle.Render("This device is not enrolled"))
		return nil
	} else if err != nil {
		return err
	}

	printField("User", enrollment.Username)
	printField("Enrolled", enrollment.EnrolledAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func init() {
	biometricCmd.AddCommand(biometricEnrollCmd)
	biometricCmd.AddCommand(biometricLoginCmd)
	biometricCmd.AddCommand(biometricClearCmd)

	rootCmd.AddCommand(biometricCmd)
}
