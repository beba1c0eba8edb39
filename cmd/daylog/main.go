package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/evanschultz/daylog/internal/adapters/storage/sqlite"
	"github.com/evanschultz/daylog/internal/app"
	"github.com/evanschultz/daylog/internal/config"
	"github.com/evanschultz/daylog/internal/domain"
	"github.com/evanschultz/daylog/internal/mapper"
	"github.com/evanschultz/daylog/internal/parser"
	"github.com/evanschultz/daylog/internal/platform"
	"github.com/evanschultz/daylog/internal/validator"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// version stores a package-level helper value.
var version = "dev"

// errValidationFailed marks a validate run that found error-severity issues.
var errValidationFailed = errors.New("validation failed")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// run builds the command tree and executes it through fang.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	c := &cli{stdout: stdout, stderr: stderr, now: time.Now}
	defer c.close()

	root := newRootCmd(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return fang.Execute(ctx, root, fang.WithVersion(version))
}

// rootOptions holds persistent flag values.
type rootOptions struct {
	configPath string
	dbPath     string
	appName    string
	devMode    bool
}

// cli carries resolved runtime state shared by subcommands.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	now    func() time.Time

	opts         rootOptions
	paths        platform.Paths
	dbOverridden bool
	cfg          config.Config
	logger       *runtimeLogger
	repo         *sqlite.Repository
}

func newRootCmd(c *cli) *cobra.Command {
	defaultDevMode := version == "dev"
	if envDev, ok := parseBoolEnv("DAYLOG_DEV_MODE"); ok {
		defaultDevMode = envDev
	}
	appName := "daylog"
	if envApp := strings.TrimSpace(os.Getenv("DAYLOG_APP_NAME")); envApp != "" {
		appName = envApp
	}

	root := &cobra.Command{
		Use:           "daylog",
		Short:         "Ingest daily activity logs into a local database",
		Long:          "daylog parses daily activity logs, reconciles overnight sleep, maps activities onto a project hierarchy, validates the result and imports it into SQLite.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.resolvePaths()
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&c.opts.configPath, "config", "", "path to config TOML")
	flags.StringVar(&c.opts.dbPath, "db", "", "path to sqlite database")
	flags.StringVar(&c.opts.appName, "app", appName, "application name for config/data path resolution")
	flags.BoolVar(&c.opts.devMode, "dev", defaultDevMode, "use dev mode paths (<app>-dev)")

	root.AddCommand(
		newImportCmd(c),
		newValidateCmd(c),
		newConvertCmd(c),
		newPurgeCmd(c),
		newTotalsCmd(c),
		newPathsCmd(c),
		newInitCmd(c),
	)
	return root
}

// resolvePaths resolves platform paths and the config/db locations.
func (c *cli) resolvePaths() error {
	paths, err := platform.DefaultPathsWithOptions(platform.Options{
		AppName: c.opts.appName,
		DevMode: c.opts.devMode,
	})
	if err != nil {
		return err
	}
	c.paths = paths

	if c.opts.configPath == "" {
		if envPath := strings.TrimSpace(os.Getenv("DAYLOG_CONFIG")); envPath != "" {
			c.opts.configPath = envPath
		} else {
			c.opts.configPath = paths.ConfigPath
		}
	}
	c.dbOverridden = strings.TrimSpace(c.opts.dbPath) != ""
	if !c.dbOverridden {
		if envPath := strings.TrimSpace(os.Getenv("DAYLOG_DB_PATH")); envPath != "" {
			c.opts.dbPath = envPath
			c.dbOverridden = true
		} else {
			c.opts.dbPath = paths.DBPath
		}
	}
	return nil
}

// setup loads config and starts logging. Commands call it before any pipeline work.
func (c *cli) setup(command string) error {
	cfg, err := config.Load(c.opts.configPath, config.Default(c.opts.dbPath))
	if err != nil {
		return fmt.Errorf("load config %q: %w", c.opts.configPath, err)
	}
	if c.dbOverridden {
		cfg.Database.Path = c.opts.dbPath
	}
	c.cfg = cfg

	logger, err := newRuntimeLogger(c.stderr, c.opts.appName, c.opts.devMode, cfg.Logging, c.now)
	if err != nil {
		return fmt.Errorf("configure runtime logger: %w", err)
	}
	c.logger = logger

	logger.Info("startup configuration resolved", "app", c.opts.appName, "dev_mode", c.opts.devMode, "command", command)
	logger.Debug("runtime paths resolved", "config_path", c.opts.configPath, "data_dir", c.paths.DataDir, "db_path", cfg.Database.Path)
	if devPath := logger.DevLogPath(); devPath != "" {
		logger.Info("dev file logging enabled", "path", devPath)
	}
	return nil
}

// service builds the pipeline service, opening the repository when withRepo is set.
func (c *cli) service(withRepo bool) (*app.Service, error) {
	var repo app.Repository
	if withRepo {
		c.logger.Info("opening sqlite repository", "db_path", c.cfg.Database.Path)
		r, err := sqlite.Open(c.cfg.Database.Path)
		if err != nil {
			c.logger.Error("sqlite open failed", "db_path", c.cfg.Database.Path, "err", err)
			return nil, fmt.Errorf("open sqlite repository: %w", err)
		}
		c.repo = r
		repo = r
	}

	vopts, err := toValidatorOptions(c.cfg.Validation)
	if err != nil {
		return nil, err
	}
	svc, err := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{
		Parser:     parser.Options{Strict: c.cfg.Parser.Strict},
		Mapping:    toMapperTable(c.cfg),
		Validation: vopts,
		Logger:     c.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build service: %w", err)
	}
	return svc, nil
}

// close releases the repository and log sinks.
func (c *cli) close() {
	if c.repo != nil {
		if err := c.repo.Close(); err != nil {
			c.logger.Warn("sqlite close failed", "db_path", c.cfg.Database.Path, "err", err)
		}
	}
	if err := c.logger.Close(); err != nil {
		_, _ = fmt.Fprintf(c.stderr, "warning: close runtime log sink: %v\n", err)
	}
}

// toMapperTable converts configured mapping and stats tables.
func toMapperTable(cfg config.Config) mapper.Table {
	rules := make([]mapper.Rule, 0, len(cfg.Stats.Rules))
	for _, r := range cfg.Stats.Rules {
		rules = append(rules, mapper.Rule{
			Parent:   r.Parent,
			Children: append([]string(nil), r.Children...),
			Bucket:   domain.Bucket(r.Bucket),
		})
	}
	keywords := make(map[string]string, len(cfg.Mapping.Keywords))
	for k, v := range cfg.Mapping.Keywords {
		keywords[k] = v
	}
	return mapper.Table{
		Keywords: keywords,
		Fallback: cfg.Mapping.Fallback,
		Rules:    rules,
	}
}

// toValidatorOptions converts configured validation toggles.
func toValidatorOptions(cfg config.ValidationConfig) (validator.Options, error) {
	mode, err := validator.ParseContinuityMode(cfg.DateContinuity)
	if err != nil {
		return validator.Options{}, fmt.Errorf("validation.date_continuity: %w", err)
	}
	return validator.Options{DateContinuity: mode}, nil
}

// parseBoolEnv parses input into a normalized form.
func parseBoolEnv(name string) (bool, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
