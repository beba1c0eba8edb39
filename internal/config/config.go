package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	charmLog "github.com/charmbracelet/log"
	"github.com/evanschultz/daylog/internal/domain"
	"github.com/evanschultz/daylog/internal/validator"
	toml "github.com/pelletier/go-toml/v2"
)

type Config struct {
	Database   DatabaseConfig   `toml:"database"`
	Logging    LoggingConfig    `toml:"logging"`
	Parser     ParserConfig     `toml:"parser"`
	Mapping    MappingConfig    `toml:"mapping"`
	Stats      StatsConfig      `toml:"stats"`
	Validation ValidationConfig `toml:"validation"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type LoggingConfig struct {
	Level   string        `toml:"level"`
	DevFile DevFileConfig `toml:"dev_file"`
}

type DevFileConfig struct {
	Enabled bool   `toml:"enabled"`
	Dir     string `toml:"dir"`
}

type ParserConfig struct {
	Strict bool `toml:"strict"`
}

type MappingConfig struct {
	Fallback string            `toml:"fallback"`
	Keywords map[string]string `toml:"keywords"`
}

type StatsConfig struct {
	Rules []StatsRuleConfig `toml:"rules"`
}

type StatsRuleConfig struct {
	Parent   string   `toml:"parent"`
	Children []string `toml:"children"`
	Bucket   string   `toml:"bucket"`
}

type ValidationConfig struct {
	DateContinuity  string `toml:"date_continuity"` // none | month | batch
	BlockOnWarnings bool   `toml:"block_on_warnings"`
}

func defaultKeywords() map[string]string {
	return map[string]string{
		"study":              "study",
		"code":               "study_programming",
		"read":               "study_reading",
		"work":               "work",
		"run":                "exercise_cardio",
		"cardio":             "exercise_cardio",
		"exercise-cardio":    "exercise_cardio",
		"gym":                "exercise_anaerobic",
		"lift":               "exercise_anaerobic",
		"exercise-anaerobic": "exercise_anaerobic",
		"shower":             "routine_grooming",
		"wash":               "routine_grooming",
		"toilet":             "routine_toilet",
		"breakfast":          "routine_meal",
		"lunch":              "routine_meal",
		"dinner":             "routine_meal",
		"commute":            "routine_commute",
		"game":               "recreation_gaming",
		"gaming":             "recreation_gaming",
		"nap":                "sleep_nap",
	}
}

func defaultRules() []StatsRuleConfig {
	return []StatsRuleConfig{
		{Parent: "sleep", Bucket: string(domain.BucketSleep)},
		{Parent: "exercise", Bucket: string(domain.BucketExercise)},
		{Parent: "exercise", Children: []string{"cardio"}, Bucket: string(domain.BucketCardio)},
		{Parent: "exercise", Children: []string{"anaerobic"}, Bucket: string(domain.BucketAnaerobic)},
		{Parent: "routine", Children: []string{"grooming"}, Bucket: string(domain.BucketGrooming)},
		{Parent: "routine", Children: []string{"toilet"}, Bucket: string(domain.BucketToilet)},
		{Parent: "recreation", Children: []string{"gaming"}, Bucket: string(domain.BucketGaming)},
	}
}

func Default(dbPath string) Config {
	return Config{
		Database: DatabaseConfig{
			Path: dbPath,
		},
		Logging: LoggingConfig{
			Level: "info",
			DevFile: DevFileConfig{
				Enabled: true,
				Dir:     ".daylog/log",
			},
		},
		Parser: ParserConfig{
			Strict: false,
		},
		Mapping: MappingConfig{
			Fallback: "unclassified",
			Keywords: defaultKeywords(),
		},
		Stats: StatsConfig{
			Rules: defaultRules(),
		},
		Validation: ValidationConfig{
			DateContinuity:  string(validator.ContinuityMonth),
			BlockOnWarnings: false,
		},
	}
}

func Load(path string, defaults Config) (Config, error) {
	cfg := defaults
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if len(content) == 0 {
		return cfg, nil
	}

	// Tables from the file replace the default tables instead of merging into them.
	cfg.Mapping.Keywords = nil
	cfg.Stats.Rules = nil
	if err := toml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode toml: %w", err)
	}
	if cfg.Mapping.Keywords == nil {
		cfg.Mapping.Keywords = defaults.Mapping.Keywords
	}
	if cfg.Stats.Rules == nil {
		cfg.Stats.Rules = defaults.Stats.Rules
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	c.Database.Path = strings.TrimSpace(c.Database.Path)
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if _, err := charmLog.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %q", c.Logging.Level)
	}

	if err := domain.ValidatePath(strings.TrimSpace(c.Mapping.Fallback), nil); err != nil {
		return fmt.Errorf("invalid mapping.fallback: %w", err)
	}
	if len(c.Mapping.Keywords) == 0 {
		return errors.New("mapping.keywords must include at least one keyword")
	}
	for keyword, path := range c.Mapping.Keywords {
		if strings.TrimSpace(keyword) == "" {
			return errors.New("mapping.keywords contains an empty keyword")
		}
		if err := domain.ValidatePath(strings.TrimSpace(path), nil); err != nil {
			return fmt.Errorf("mapping.keywords[%q]: %w", keyword, err)
		}
	}

	seenBucket := map[string]int{}
	for idx, rule := range c.Stats.Rules {
		if strings.TrimSpace(rule.Parent) == "" {
			return fmt.Errorf("stats.rules[%d].parent is required", idx)
		}
		if _, err := domain.ParseBucket(rule.Bucket); err != nil {
			return fmt.Errorf("stats.rules[%d].bucket: %w", idx, err)
		}
		if first, ok := seenBucket[rule.Bucket]; ok {
			return fmt.Errorf("stats.rules[%d].bucket %q already targeted by stats.rules[%d]", idx, rule.Bucket, first)
		}
		seenBucket[rule.Bucket] = idx
	}

	if _, err := validator.ParseContinuityMode(c.Validation.DateContinuity); err != nil {
		return fmt.Errorf("invalid validation.date_continuity: %w", err)
	}

	return nil
}

// Write encodes cfg as TOML at path, creating the parent directory. An
// existing file is replaced only when overwrite is set.
func Write(path string, cfg Config, overwrite bool) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	content, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode toml: %w", err)
	}
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		return fmt.Errorf("write config: %w", err)
	}
	return f.Close()
}

func EnsureConfigDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
