package cmd

import (
	"fmt"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/lorenzosyku/heating-oil-price-tracker/config"
	"github.com/lorenzosyku/heating-oil-price-tracker/logger"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tracker",
	Short: "tracker cli for the heating oil price batch jobs",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newHeatingOilCmd())
	rootCmd.AddCommand(newNymexCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

func initializeConfigAndLogger() (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger()
	if !isRunningOnGitHubActions() {
		err := godotenv.Load()
		if err != nil {
			log.Error("Error loading .env file")
			return nil, nil, err
		}
	}

	baseConfigFile, err := os.Open("config.base.yaml")
	if err != nil {
		log.Error(fmt.Sprintf("Error opening base config file: %v", err))
		return nil, nil, err
	}
	defer baseConfigFile.Close()

	env := os.Getenv("APP_ENV")
	var envConfigFile *os.File
	envConfigFilename := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(envConfigFilename); err == nil {
		envConfigFile, err = os.Open(envConfigFilename)
		if err != nil {
			log.Error(fmt.Sprintf("Error opening environment config file: %v", err))
			return nil, nil, err
		}
		defer envConfigFile.Close()
	}

	cfg, err := config.NewConfig(baseConfigFile, envConfigFile, env)
	if err != nil {
		log.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, err
	}

	return cfg, log, nil
}
