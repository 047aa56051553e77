package config

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Section accessors return snapshot structs. A setting of the wrong type
// falls back to its default and is reported by Validate.

// ProjectConfig locates the project and tunes how it is loaded.
type ProjectConfig struct {
	// Dir is the directory containing .idea.
	Dir string

	// ExternalStorageRoot holds configuration imported from a build tool.
	ExternalStorageRoot string

	// ExternalStorageEnabled overrides the flag read from misc.xml when
	// set.
	ExternalStorageEnabled *bool

	// PathMacros are user path macros such as MAVEN_REPOSITORY.
	PathMacros map[string]string

	// UnloadedModules are kept out of the main storage.
	UnloadedModules []string

	// MaxConcurrency bounds parallel file loads. Zero uses the default.
	MaxConcurrency int

	// GlobalOptionsDir holds jdk.table.xml and applicationLibraries.xml.
	GlobalOptionsDir string
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	// Level is a logrus level name.
	Level string

	// Format is "text" or "json".
	Format string
}

// CacheConfig configures the persisted source-name cache.
type CacheConfig struct {
	Enabled bool

	// Dir is the badger directory. Empty keeps the cache in memory.
	Dir string
}

// WatchConfig configures file watching.
type WatchConfig struct {
	// Debounce is the quiet period before a batch of changes is reloaded.
	Debounce time.Duration
}

// Project returns the project settings.
func (c *Config) Project() ProjectConfig {
	p := ProjectConfig{
		Dir:                 c.getStringOr("project_dir", "."),
		ExternalStorageRoot: c.getStringOr("external_storage_root", ""),
		PathMacros:          c.getStringMapOr("path_macros"),
		UnloadedModules:     c.getStringSliceOr("unloaded_modules"),
		MaxConcurrency:      c.getIntOr("max_concurrency", 0),
		GlobalOptionsDir:    c.getStringOr("global.options_dir", ""),
	}
	if enabled, err := c.GetBool("external_storage_enabled"); err == nil {
		p.ExternalStorageEnabled = &enabled
	}
	return p
}

// Logging returns the logging settings.
func (c *Config) Logging() LoggingConfig {
	return LoggingConfig{
		Level:  c.getStringOr("log.level", "info"),
		Format: c.getStringOr("log.format", "text"),
	}
}

// Cache returns the source-name cache settings.
func (c *Config) Cache() CacheConfig {
	return CacheConfig{
		Enabled: c.getBoolOr("cache.enabled", true),
		Dir:     c.getStringOr("cache.dir", ""),
	}
}

// Watch returns the watch settings.
func (c *Config) Watch() WatchConfig {
	d, err := c.GetDuration("watch.debounce")
	if err != nil || d <= 0 {
		d = 200 * time.Millisecond
	}
	return WatchConfig{Debounce: d}
}

// Validate checks the settings the section accessors read and returns
// every problem found.
func (c *Config) Validate() error {
	var errs []error
	check := func(err error) {
		if err != nil && !errors.Is(err, ErrSettingNotFound) {
			errs = append(errs, err)
		}
	}

	for _, p := range []string{"project_dir", "external_storage_root", "global.options_dir", "cache.dir", "log.level", "log.format"} {
		_, err := c.GetString(p)
		check(err)
	}
	_, err := c.GetBool("external_storage_enabled")
	check(err)
	_, err = c.GetBool("cache.enabled")
	check(err)
	_, err = c.GetInt("max_concurrency")
	check(err)
	_, err = c.GetStringMap("path_macros")
	check(err)
	_, err = c.GetStringSlice("unloaded_modules")
	check(err)
	if d, err := c.GetDuration("watch.debounce"); err != nil {
		check(err)
	} else if d < 0 {
		errs = append(errs, &ValueError{Path: "watch.debounce", Value: d, Message: "must not be negative"})
	}

	logging := c.Logging()
	if _, err := logrus.ParseLevel(logging.Level); err != nil {
		errs = append(errs, &ValueError{Path: "log.level", Value: logging.Level, Message: err.Error()})
	}
	if f := strings.ToLower(logging.Format); f != "text" && f != "json" {
		errs = append(errs, &ValueError{Path: "log.format", Value: logging.Format, Message: "must be text or json"})
	}
	return errors.Join(errs...)
}

// NewLogger creates a logger writing to stderr.
func (l LoggingConfig) NewLogger() (*logrus.Logger, error) {
	return l.NewLoggerTo(os.Stderr)
}

// NewLoggerTo creates a logger writing to w.
func (l LoggingConfig) NewLoggerTo(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return nil, &ValueError{Path: "log.level", Value: l.Level, Message: err.Error()}
	}

	log := logrus.New()
	log.SetOutput(w)
	log.SetLevel(level)
	switch strings.ToLower(l.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, &ValueError{Path: "log.format", Value: l.Format, Message: "must be text or json"}
	}
	return log, nil
}

func (c *Config) getStringOr(path, defaultValue string) string {
	if v, err := c.GetString(path); err == nil {
		return v
	}
	return defaultValue
}

func (c *Config) getIntOr(path string, defaultValue int) int {
	if v, err := c.GetInt(path); err == nil {
		return v
	}
	return defaultValue
}

func (c *Config) getBoolOr(path string, defaultValue bool) bool {
	if v, err := c.GetBool(path); err == nil {
		return v
	}
	return defaultValue
}

func (c *Config) getStringSliceOr(path string) []string {
	v, _ := c.GetStringSlice(path)
	return v
}

func (c *Config) getStringMapOr(path string) map[string]string {
	v, _ := c.GetStringMap(path)
	return v
}
