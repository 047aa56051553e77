package config

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/dshills/jpsmodel/internal/config/layer"
	"github.com/dshills/jpsmodel/internal/config/loader"
)

// File names searched for in the configuration directories.
const (
	UserConfigBaseName    = "config"
	ProjectConfigBaseName = "jpsctl"
)

// Config provides merged access to the jpsctl configuration.
type Config struct {
	mu sync.RWMutex

	layers *layer.Manager
	fs     loader.FileSystem

	userConfigDir string
	projectDir    string
	configFile    string
	envPrefix     string
}

// Option configures a Config instance.
type Option func(*Config)

// WithUserConfigDir sets the user configuration directory.
func WithUserConfigDir(dir string) Option {
	return func(c *Config) {
		c.userConfigDir = dir
	}
}

// WithProjectDir sets the directory searched for the project file.
func WithProjectDir(dir string) Option {
	return func(c *Config) {
		c.projectDir = dir
	}
}

// WithConfigFile loads an explicit file instead of searching the project
// directory. The file must exist.
func WithConfigFile(path string) Option {
	return func(c *Config) {
		c.configFile = path
	}
}

// WithFileSystem sets the file system the files are read from.
func WithFileSystem(fs loader.FileSystem) Option {
	return func(c *Config) {
		c.fs = fs
	}
}

// WithEnvPrefix overrides the JPSCTL_ environment prefix.
func WithEnvPrefix(prefix string) Option {
	return func(c *Config) {
		c.envPrefix = prefix
	}
}

// New creates a new Config instance with the given options. Nothing is
// read until Load.
func New(opts ...Option) *Config {
	c := &Config{
		layers:    layer.NewManager(),
		envPrefix: loader.DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fs == nil {
		c.fs = loader.DefaultFS()
	}
	if c.userConfigDir == "" {
		c.userConfigDir = defaultUserConfigDir()
	}
	c.layers.AddLayer(layer.NewLayer(layer.SourceBuiltin, defaultConfig()))
	return c
}

// Load reads the user file, the project file and the environment. It can
// be called again to pick up changes; values set through Set are kept.
func (c *Config) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.loadFirst(layer.SourceUser, c.userConfigDir, UserConfigBaseName); err != nil {
		return err
	}

	if c.configFile != "" {
		if err := c.loadFile(layer.SourceProject, c.configFile, true); err != nil {
			return err
		}
	} else if c.projectDir != "" {
		if err := c.loadFirst(layer.SourceProject, c.projectDir, ProjectConfigBaseName); err != nil {
			return err
		}
	}

	data, err := loader.NewEnvLoader(c.envPrefix).Load()
	if err != nil {
		return err
	}
	c.layers.AddLayer(layer.NewLayer(layer.SourceEnv, data))
	return nil
}

// loadFirst loads the first existing dir/base.<ext> into the source layer.
func (c *Config) loadFirst(source layer.Source, dir, base string) error {
	if dir == "" {
		return nil
	}
	for _, ext := range loader.Extensions {
		p := path.Join(filepath.ToSlash(dir), base+ext)
		l, err := loader.NewFileLoader(c.fs, p)
		if err != nil {
			return err
		}
		data, err := l.Load()
		if err != nil {
			return err
		}
		if data == nil {
			continue
		}
		lay := layer.NewLayer(source, data)
		lay.Path = p
		c.layers.AddLayer(lay)
		return nil
	}
	return nil
}

func (c *Config) loadFile(source layer.Source, p string, required bool) error {
	p = filepath.ToSlash(p)
	l, err := loader.NewFileLoader(c.fs, p)
	if err != nil {
		return err
	}
	data, err := l.Load()
	if err != nil {
		return err
	}
	if data == nil {
		if required {
			return fmt.Errorf("config file %s: %w", p, os.ErrNotExist)
		}
		return nil
	}
	lay := layer.NewLayer(source, data)
	lay.Path = p
	c.layers.AddLayer(lay)
	return nil
}

// Get returns the value at the given path from the merged configuration.
func (c *Config) Get(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers.GetEffectiveValue(path)
}

// Set overrides a value, typically from a command-line flag.
func (c *Config) Set(path string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layers.Set(layer.SourceArgs, path, value)
}

// WhichLayer returns the name of the layer that provides a value, or ""
// if the value is not set.
func (c *Config) WhichLayer(path string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, l, ok := c.layers.Get(path)
	if !ok {
		return ""
	}
	if l.Path != "" {
		return l.Name + " (" + l.Path + ")"
	}
	return l.Name
}

// Merged returns the fully merged configuration.
func (c *Config) Merged() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.layers.Merge()
}

// GetString returns a string value at the given path.
func (c *Config) GetString(path string) (string, error) {
	v, ok := c.Get(path)
	if !ok {
		return "", ErrSettingNotFound
	}
	s, ok := v.(string)
	if !ok {
		return "", &TypeError{Path: path, Expected: "string", Actual: typeName(v)}
	}
	return s, nil
}

// GetInt returns an integer value at the given path.
func (c *Config) GetInt(path string) (int, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	case string:
		if i, err := strconv.Atoi(val); err == nil {
			return i, nil
		}
	}
	return 0, &TypeError{Path: path, Expected: "int", Actual: typeName(v)}
}

// GetBool returns a boolean value at the given path.
func (c *Config) GetBool(path string) (bool, error) {
	v, ok := c.Get(path)
	if !ok {
		return false, ErrSettingNotFound
	}
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		if b, err := strconv.ParseBool(val); err == nil {
			return b, nil
		}
	}
	return false, &TypeError{Path: path, Expected: "bool", Actual: typeName(v)}
}

// GetDuration returns a duration at the given path. Strings use
// time.ParseDuration syntax; bare numbers are milliseconds.
func (c *Config) GetDuration(path string) (time.Duration, error) {
	v, ok := c.Get(path)
	if !ok {
		return 0, ErrSettingNotFound
	}
	switch val := v.(type) {
	case time.Duration:
		return val, nil
	case int:
		return time.Duration(val) * time.Millisecond, nil
	case int64:
		return time.Duration(val) * time.Millisecond, nil
	case string:
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, &ValueError{Path: path, Value: val, Message: err.Error()}
		}
		return d, nil
	}
	return 0, &TypeError{Path: path, Expected: "duration", Actual: typeName(v)}
}

// GetStringSlice returns a string slice at the given path. A single
// string is a slice of one.
func (c *Config) GetStringSlice(path string) ([]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}
	switch val := v.(type) {
	case []string:
		return val, nil
	case string:
		return []string{val}, nil
	case []any:
		result := make([]string, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
			}
			result[i] = s
		}
		return result, nil
	}
	return nil, &TypeError{Path: path, Expected: "[]string", Actual: typeName(v)}
}

// GetStringMap returns a map of strings at the given path.
func (c *Config) GetStringMap(path string) (map[string]string, error) {
	v, ok := c.Get(path)
	if !ok {
		return nil, ErrSettingNotFound
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &TypeError{Path: path, Expected: "map[string]string", Actual: typeName(v)}
	}
	result := make(map[string]string, len(m))
	for k, item := range m {
		s, ok := item.(string)
		if !ok {
			return nil, &TypeError{Path: path + "." + k, Expected: "string", Actual: typeName(item)}
		}
		result[k] = s
	}
	return result, nil
}

// defaultUserConfigDir returns the default user configuration directory.
func defaultUserConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "jpsctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "jpsctl")
}

// defaultConfig returns the default configuration values.
func defaultConfig() map[string]any {
	return map[string]any{
		"project_dir":           ".",
		"external_storage_root": "",
		"path_macros":           map[string]any{},
		"unloaded_modules":      []any{},
		"max_concurrency":       0,
		"log": map[string]any{
			"level":  "info",
			"format": "text",
		},
		"cache": map[string]any{
			"enabled": true,
			"dir":     "",
		},
		"watch": map[string]any{
			"debounce": "200ms",
		},
		"global": map[string]any{
			"options_dir": "",
		},
	}
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", v)
}
