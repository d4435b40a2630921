// Package config resolves tagc settings from a config file, TAGC_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tagc/internal/emit"
)

// EnvPrefix prefixes every environment variable, e.g. TAGC_SOURCE.
const EnvPrefix = "TAGC"

// Config holds everything one run needs.
type Config struct {
	Source      string
	Comma       rune
	Targets     map[string]emit.TargetConfig // configured targets by type
	Only        []string                     // explicit selection; empty means all configured
	Parallelism int
	Log         LogConfig
	Watch       WatchConfig
}

// LogConfig selects the zap logger.
type LogConfig struct {
	Level  string // debug | info | warn | error
	Format string // console | json
}

// WatchConfig drives `tagc watch`.
type WatchConfig struct {
	Debounce time.Duration
	Schedule string // cron expression; empty disables scheduled rebuilds
}

// Defaults registers default values on v.
func Defaults(v *viper.Viper) {
	v.SetDefault("comma", ",")
	v.SetDefault("parallelism", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("watch.debounce", 500*time.Millisecond)
	v.SetDefault("watch.schedule", "")
}

// NewViper creates a viper instance reading configFile (optional), the
// environment and, when non-nil, flags.
func NewViper(configFile string, flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	Defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("tagc")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if flags != nil {
		if err := BindFlags(v, flags); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"source":      "source",
	"comma":       "comma",
	"carray":      "targets.carray.output",
	"json":        "targets.json.output",
	"json-null":   "targets.json.null_absent",
	"sql":         "targets.sql.output",
	"sql-driver":  "targets.sql.driver",
	"sql-dsn":     "targets.sql.dsn",
	"only":        "only",
	"parallelism": "parallelism",
	"log-level":   "log.level",
	"log-format":  "log.format",
	"debounce":    "watch.debounce",
	"schedule":    "watch.schedule",
}

// BindFlags binds every known flag present in flags.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Load decodes v into a validated Config.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Source:      v.GetString("source"),
		Only:        splitList(v.GetStringSlice("only")),
		Parallelism: v.GetInt("parallelism"),
		Targets:     map[string]emit.TargetConfig{},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Watch: WatchConfig{
			Debounce: v.GetDuration("watch.debounce"),
			Schedule: v.GetString("watch.schedule"),
		},
	}

	comma := v.GetString("comma")
	if comma == `\t` || comma == "tab" {
		comma = "\t"
	}
	if utf8.RuneCountInString(comma) != 1 {
		return nil, fmt.Errorf("comma must be a single character, got %q", comma)
	}
	cfg.Comma, _ = utf8.DecodeRuneInString(comma)

	// Only fields a target declares are read, so env variables such as
	// TAGC_TARGETS_SQL_PASSWORD are honoured without a config file entry.
	for _, spec := range emit.ListTargets() {
		tc := emit.TargetConfig{}
		for _, field := range spec.ConfigFields {
			key := "targets." + spec.Type + "." + field.Key
			if val := v.Get(key); val != nil && fmt.Sprint(val) != "" {
				tc[field.Key] = val
			}
		}
		if isConfigured(spec.Type, tc) {
			cfg.Targets[spec.Type] = tc
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// isConfigured reports whether tc names a destination for the target.
func isConfigured(typ string, tc emit.TargetConfig) bool {
	if tc.String("output", "") != "" {
		return true
	}
	return typ == "sql" && (tc.String("dsn", "") != "" || tc.String("host", "") != "")
}

// Validate checks the config for contradictions.
func (c *Config) Validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source is required"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	for _, typ := range c.Only {
		if _, err := emit.GetTarget(typ); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, ok := c.Targets[typ]; !ok {
			errs = append(errs, fmt.Errorf("target %q selected but has no output configured", typ))
		}
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log level %q: must be debug, info, warn or error", c.Log.Level))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q: must be console or json", c.Log.Format))
	}
	if c.Watch.Debounce < 0 {
		errs = append(errs, fmt.Errorf("watch debounce must not be negative"))
	}
	return errors.Join(errs...)
}

// SelectedTargets returns the target types a build runs, sorted.
func (c *Config) SelectedTargets() []string {
	var out []string
	if len(c.Only) > 0 {
		out = append(out, c.Only...)
	} else {
		for typ := range c.Targets {
			out = append(out, typ)
		}
	}
	sort.Strings(out)
	return out
}

// splitList accepts both repeated values and comma-separated strings.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
