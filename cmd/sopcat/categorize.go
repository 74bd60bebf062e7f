package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/ingest"
	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/patterns"
	"github.com/miradorstack/mirador-sop/internal/repo"
	"github.com/miradorstack/mirador-sop/internal/services"
	"github.com/miradorstack/mirador-sop/internal/validation"
)

var categorizeCmd = &cobra.Command{
	Use:   "categorize",
	Short: "Cluster a batch of closed incidents and write the run report",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		fetch, _ := cmd.Flags().GetBool("fetch")
		daysBack, _ := cmd.Flags().GetInt("days-back")
		limit, _ := cmd.Flags().GetInt("limit")
		validate, _ := cmd.Flags().GetBool("validate")
		publish, _ := cmd.Flags().GetBool("publish")

		if (input != "") == fetch {
			return fmt.Errorf("exactly one of --input or --fetch is required")
		}

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		incidents, err := loadIncidents(ctx, cfg, logger, input, fetch, daysBack, limit)
		if err != nil {
			return err
		}
		printStep("categorizing %d incidents", len(incidents))

		categorizer, err := buildCategorizer(cfg, logger)
		if err != nil {
			return err
		}
		var publisher patterns.Publisher
		if publish {
			if cfg.Weaviate.Endpoint == "" {
				return fmt.Errorf("--publish requires weaviate.endpoint")
			}
			publisher = repo.NewWeaviateRepo(cfg.Weaviate, logger)
		}

		service := services.NewCategorizerService(logger, categorizer, newValidator(cfg, logger), publisher, 1)
		report, err := service.Run(ctx, models.CategorizeRequest{Incidents: incidents, Validate: validate})
		if err != nil {
			return err
		}

		if err := writeReport(cmd.OutOrStdout(), output, report); err != nil {
			return err
		}
		printRunSummary(report, cfg.Categorization.TopTerms)
		return nil
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check incident records for completeness and report duplicates",
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		if input == "" {
			return fmt.Errorf("--input is required")
		}

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		incidents, err := ingest.NewLoader(logger).LoadFile(input)
		if err != nil {
			return err
		}

		valid, invalid, quality := newValidator(cfg, logger).Validate(incidents)
		duplicates := validation.DetectDuplicates(valid)
		printQuality(quality, invalid, duplicates)

		if output != "" {
			if err := writeJSONFile(output, valid); err != nil {
				return err
			}
			printSuccess("wrote %d valid incidents to %s", len(valid), output)
		}
		return nil
	},
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List SOP patterns previously published to Weaviate",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		if cfg.Weaviate.Endpoint == "" {
			return fmt.Errorf("weaviate.endpoint is not configured")
		}
		stored, err := repo.NewWeaviateRepo(cfg.Weaviate, logger).ListPatterns(cmd.Context(), limit)
		if err != nil {
			return err
		}
		return ingest.WriteJSON(cmd.OutOrStdout(), stored)
	},
}

func init() {
	categorizeCmd.Flags().String("input", "", "incident export to categorize (.json or .csv)")
	categorizeCmd.Flags().String("output", "", "write the run report here instead of stdout")
	categorizeCmd.Flags().Bool("fetch", false, "pull closed incidents from the ticketing API instead of a file")
	categorizeCmd.Flags().Int("days-back", 0, "fetch window in days (default source.daysBack)")
	categorizeCmd.Flags().Int("limit", 0, "maximum incidents to fetch (default source.limit)")
	categorizeCmd.Flags().Bool("validate", true, "drop records failing validation before clustering")
	categorizeCmd.Flags().Bool("publish", false, "store emitted cluster analyses in Weaviate")
	rootCmd.AddCommand(categorizeCmd)

	validateCmd.Flags().String("input", "", "incident export to validate (.json or .csv)")
	validateCmd.Flags().String("output", "", "write valid incidents to this JSON file")
	rootCmd.AddCommand(validateCmd)

	patternsCmd.Flags().Int("limit", 20, "maximum patterns to list")
	rootCmd.AddCommand(patternsCmd)
}

func loadIncidents(ctx context.Context, cfg *config.Config, logger *slog.Logger, input string, fetch bool, daysBack, limit int) ([]models.Incident, error) {
	if !fetch {
		return ingest.NewLoader(logger).LoadFile(input)
	}
	if daysBack <= 0 {
		daysBack = cfg.Source.DaysBack
	}
	if limit <= 0 {
		limit = cfg.Source.Limit
	}
	printStep("fetching closed incidents from the last %d days", daysBack)
	return repo.NewTicketClient(cfg.Source, logger).FetchClosedIncidents(ctx, models.FetchRequest{DaysBack: daysBack, Limit: limit})
}

func writeReport(stdout io.Writer, output string, report models.RunReport) error {
	if output == "" {
		return ingest.WriteJSON(stdout, report)
	}
	if err := writeJSONFile(output, report); err != nil {
		return err
	}
	printSuccess("run report written to %s", output)
	return nil
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := ingest.WriteJSON(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
