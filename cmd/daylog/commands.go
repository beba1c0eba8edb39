package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/evanschultz/daylog/internal/app"
	"github.com/evanschultz/daylog/internal/config"
	"github.com/evanschultz/daylog/internal/domain"
	"github.com/evanschultz/daylog/internal/platform"
	"github.com/spf13/cobra"
)

func newImportCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import [file|dir]...",
		Short: "Ingest logs and import them into the database",
		Long:  "Ingest logs and import them into the database. With no inputs, the logs directory shown by `daylog paths` is read.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup("import"); err != nil {
				return err
			}
			svc, err := c.service(true)
			if err != nil {
				return err
			}
			batch, err := c.ingest(cmd, svc, args)
			if err != nil {
				return err
			}
			if err := writeIssues(c.stdout, batch.Issues); err != nil {
				return err
			}

			res, err := svc.Import(cmd.Context(), batch, app.ImportPolicy{
				Force:           force,
				BlockOnWarnings: c.cfg.Validation.BlockOnWarnings,
			})
			if err != nil {
				c.logger.Error("command flow failed", "command", "import", "err", err)
				return fmt.Errorf("run import command: %w", err)
			}
			_, _ = fmt.Fprintf(c.stdout, "imported %d days, %d records (batch %s, %d new projects)\n",
				res.Batch.DayCount, res.Batch.RecordCount, res.Batch.ID, res.ProjectsInserted)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "import even when error-severity issues are reported")
	return cmd
}

func newValidateCmd(c *cli) *cobra.Command {
	var jsonPath string
	cmd := &cobra.Command{
		Use:   "validate [file|dir]...",
		Short: "Ingest logs, or a converted JSON document, and report issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonPath != "" && len(args) > 0 {
				return fmt.Errorf("unexpected validate arguments with --json: %v", args)
			}
			if err := c.setup("validate"); err != nil {
				return err
			}
			svc, err := c.service(false)
			if err != nil {
				return err
			}

			var batch app.Batch
			if jsonPath != "" {
				raw, err := os.ReadFile(jsonPath)
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				batch.Issues = svc.ValidateDocument(raw)
			} else {
				batch, err = c.ingest(cmd, svc, args)
				if err != nil {
					return err
				}
			}
			if err := writeIssues(c.stdout, batch.Issues); err != nil {
				return err
			}
			if batch.Issues.HasErrors() {
				return fmt.Errorf("%w: %d errors", errValidationFailed, batch.Issues.CountSeverity(domain.SeverityError))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&jsonPath, "json", "", "validate a JSON document produced by convert")
	return cmd
}

func newConvertCmd(c *cli) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "convert [file|dir]...",
		Short: "Ingest logs and write the mapped days as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup("convert"); err != nil {
				return err
			}
			svc, err := c.service(false)
			if err != nil {
				return err
			}
			batch, err := c.ingest(cmd, svc, args)
			if err != nil {
				return err
			}
			for _, issue := range batch.Issues.Sorted() {
				c.logger.Warn("issue", "source", issue.Source, "line", issue.Line, "kind", issue.Kind, "severity", issue.Severity, "message", issue.Message)
			}

			encoded, err := json.MarshalIndent(batch.Days, "", "  ")
			if err != nil {
				return fmt.Errorf("encode days json: %w", err)
			}
			encoded = append(encoded, '\n')
			if outPath == "-" {
				if _, err := c.stdout.Write(encoded); err != nil {
					return fmt.Errorf("write days to stdout: %w", err)
				}
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
				return fmt.Errorf("create convert output dir: %w", err)
			}
			if err := os.WriteFile(outPath, encoded, 0o644); err != nil {
				return fmt.Errorf("write convert file: %w", err)
			}
			c.logger.Info("convert complete", "out", outPath, "days", len(batch.Days))
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "-", "output file path ('-' for stdout)")
	return cmd
}

func newPurgeCmd(c *cli) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "purge --from DATE --to DATE",
		Short: "Delete stored days and records in a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup("purge"); err != nil {
				return err
			}
			svc, err := c.service(true)
			if err != nil {
				return err
			}
			res, err := svc.Purge(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.stdout, "purged %d days, %d records, %d batches\n", res.Days, res.Records, res.Batches)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newTotalsCmd(c *cli) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "totals --from DATE --to DATE",
		Short: "Show time per top-level project in a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup("totals"); err != nil {
				return err
			}
			svc, err := c.service(true)
			if err != nil {
				return err
			}
			totals, err := svc.Totals(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return writeTotals(c.stdout, totals)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last date (YYYY-MM-DD)")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func newInitCmd(c *cli) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			err := config.Write(c.opts.configPath, config.Default(c.opts.dbPath), force)
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf("config %s already exists (use --force to replace it)", c.opts.configPath)
			}
			if err != nil {
				return fmt.Errorf("write default config: %w", err)
			}
			_, _ = fmt.Fprintf(c.stdout, "wrote config %s\n", c.opts.configPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "replace an existing config file")
	return cmd
}

func newPathsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print resolved config, data, database and log paths",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, _ = fmt.Fprintf(c.stdout, "app: %s\n", c.opts.appName)
			_, _ = fmt.Fprintf(c.stdout, "dev_mode: %t\n", c.opts.devMode)
			_, _ = fmt.Fprintf(c.stdout, "config: %s\n", c.opts.configPath)
			_, _ = fmt.Fprintf(c.stdout, "data_dir: %s\n", c.paths.DataDir)
			_, _ = fmt.Fprintf(c.stdout, "db: %s\n", c.opts.dbPath)
			_, _ = fmt.Fprintf(c.stdout, "logs_dir: %s\n", c.paths.LogsDir)
			return nil
		},
	}
}

// ingest expands inputs into log files and runs the pipeline over them.
// No inputs means the platform logs directory.
func (c *cli) ingest(cmd *cobra.Command, svc *app.Service, inputs []string) (app.Batch, error) {
	if len(inputs) == 0 {
		inputs = []string{c.paths.LogsDir}
	}
	files, err := platform.CollectLogFiles(inputs)
	if err != nil {
		return app.Batch{}, fmt.Errorf("collect log files: %w", err)
	}
	if len(files) == 0 {
		return app.Batch{}, fmt.Errorf("no log files found in %v", inputs)
	}
	sources := make([]app.Source, 0, len(files))
	for _, f := range files {
		sources = append(sources, app.FileSource(f))
	}
	c.logger.Debug("log files collected", "count", len(files))
	batch, err := svc.Ingest(cmd.Context(), sources)
	if err != nil {
		return app.Batch{}, fmt.Errorf("ingest logs: %w", err)
	}
	return batch, nil
}
