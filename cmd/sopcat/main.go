package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/embedding"
	"github.com/miradorstack/mirador-sop/internal/engine"
	"github.com/miradorstack/mirador-sop/internal/utils"
	"github.com/miradorstack/mirador-sop/internal/validation"
)

var version = "dev"

var (
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:           "sopcat",
	Short:         "Group closed incidents into recurring issue clusters for SOP generation",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (default $MIRADOR_SOP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override logging.format (text, json, console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadRuntime reads .env, configuration and builds the logger shared by every command.
func loadRuntime() (*config.Config, *slog.Logger, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat != "" {
		cfg.Logging.Format = logFormat
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

// buildCategorizer wires the embedding backend into an engine categorizer.
func buildCategorizer(cfg *config.Config, logger *slog.Logger) (*engine.Categorizer, error) {
	embedder, err := embedding.New(cfg.EmbeddingSettings(), logger)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}
	settings, err := engine.SettingsFromConfig(cfg.Categorization, cfg.Run)
	if err != nil {
		return nil, fmt.Errorf("categorization settings: %w", err)
	}
	return engine.NewCategorizer(logger, embedder, settings)
}

func newValidator(cfg *config.Config, logger *slog.Logger) *validation.Validator {
	return validation.New(cfg.Validation, logger)
}
