package loader

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultEnvPrefix is the prefix of jpsctl environment variables.
const DefaultEnvPrefix = "JPSCTL_"

// macroInfix introduces a path macro: JPSCTL_PATH_MACRO_MAVEN_REPOSITORY
// sets path_macros.MAVEN_REPOSITORY.
const macroInfix = "PATH_MACRO_"

// EnvLoader loads configuration from environment variables.
type EnvLoader struct {
	prefix  string            // Environment variable prefix, e.g. "JPSCTL_"
	mapping map[string]string // Env var -> config path
	environ func() []string
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{
		prefix:  prefix,
		mapping: defaultEnvMapping(prefix),
		environ: os.Environ,
	}
}

// defaultEnvMapping maps the top-level keys, whose names contain
// underscores and would otherwise be split into a section.
func defaultEnvMapping(prefix string) map[string]string {
	return map[string]string{
		prefix + "PROJECT_DIR":              "project_dir",
		prefix + "EXTERNAL_STORAGE_ROOT":    "external_storage_root",
		prefix + "EXTERNAL_STORAGE_ENABLED": "external_storage_enabled",
		prefix + "MAX_CONCURRENCY":          "max_concurrency",
		prefix + "UNLOADED_MODULES":         "unloaded_modules",
	}
}

// Load reads environment variables and returns a configuration map.
// Empty values are kept as empty strings.
func (l *EnvLoader) Load() (map[string]any, error) {
	config := make(map[string]any)

	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}

		if path, mapped := l.mapping[name]; mapped {
			setByPath(config, path, l.parseValue(value))
			continue
		}

		rest := strings.TrimPrefix(name, l.prefix)
		if macro, isMacro := strings.CutPrefix(rest, macroInfix); isMacro && macro != "" {
			macros, _ := config["path_macros"].(map[string]any)
			if macros == nil {
				macros = make(map[string]any)
				config["path_macros"] = macros
			}
			macros[macro] = value
			continue
		}

		setByPath(config, l.envToPath(name), l.parseValue(value))
	}

	return config, nil
}

// AddMapping adds a custom environment variable mapping.
func (l *EnvLoader) AddMapping(envVar, configPath string) {
	if l.mapping == nil {
		l.mapping = make(map[string]string)
	}
	l.mapping[envVar] = configPath
}

// envToPath converts JPSCTL_GLOBAL_OPTIONS_DIR to global.options_dir: the
// first word is the section, the rest is the key.
func (l *EnvLoader) envToPath(env string) string {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, key, ok := strings.Cut(name, "_")
	if !ok {
		return name
	}
	return section + "." + key
}

// parseValue attempts to parse the string value into an appropriate type.
func (l *EnvLoader) parseValue(s string) any {
	if s == "" {
		return s
	}

	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d
	}

	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}

	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data

	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}

	current[parts[len(parts)-1]] = value
}
