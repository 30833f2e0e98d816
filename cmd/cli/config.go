package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chrisapx/fif-client-sub000/internal/common"
	"github.com/chrisapx/fif-client-sub000/internal/config"
	"github.com/chrisapx/fif-client-sub000/internal/storage"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configFile struct {
	Fineract struct {
		Endpoint string `yaml:"endpoint"`
		Tenant   string `yaml:"tenant"`
	} `yaml:"fineract"`
	NavState struct {
		Secret string `yaml:"secret"`
	} `yaml:"navstate"`
	Storage struct {
		Driver string `yaml:"driver"`
	} `yaml:"storage"`
}

var configCmd = &cobra.Command{
	Use:         "config",
	Short:       "Manage the fif configuration",
	Annotations: map[string]string{annotationStandalone: "true"},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file with a fresh navigation secret",
	RunE: func(cmd *cobra.Command, args []string) error {

		path, _ := cmd.Flags().GetString("output")
		if len(path) == 0 {
			path = filepath.Join(config.ConfigDir(), "config.yaml")
		}

		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite it", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		driver, _ := cmd.Flags().GetString("storage")
		parsed, err := storage.ParseDriver(driver)
		if err != nil {
			return err
		}

		secret, err := common.GenerateSecureRandomString(32)
		if err != nil {
			return fmt.Errorf("failed to generate secret: %w", err)
		}

		var file configFile
		file.Fineract.Endpoint = cfg.Fineract.Endpoint
		file.Fineract.Tenant = cfg.Fineract.Tenant
		file.NavState.Secret = secret
		file.Storage.Driver = string(parsed)

		data, err := yaml.Marshal(&file)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}

		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}

		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		fmt.Println(successStyle.Render("Configuration written to " + path))
		if len(file.Fineract.Endpoint) == 0 {
			fmt.Println(warningStyle.Render("Set fineract.endpoint before logging in"))
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringP("output", "o", "", "Where to write the config (default is $HOME/.config/fif/config.yaml)")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing config file")
	configInitCmd.Flags().String("storage", string(storage.DriverFile), "Storage driver (memory, file or sqlite)")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}
