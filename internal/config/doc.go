// Package config loads the configuration of the jpsctl tool.
//
// Values come from layers merged by priority, lowest first:
//
//   - built-in defaults
//   - the user file, $XDG_CONFIG_HOME/jpsctl/config.{toml,yaml,yml}
//   - the project file, <project>/jpsctl.{toml,yaml,yml}, or an explicit
//     file given with WithConfigFile
//   - JPSCTL_* environment variables
//   - values set on the command line through Set
//
// Settings are addressed by dot-separated paths such as "log.level".
// The section accessors (Project, Logging, Cache, Watch) return typed
// snapshots of the merged values.
//
// Example TOML file:
//
//	project_dir = "/work/app"
//	external_storage_root = "/home/u/.cache/JetBrains/app/external_build_system"
//
//	[path_macros]
//	MAVEN_REPOSITORY = "/home/u/.m2/repository"
//
//	[log]
//	level = "debug"
//	format = "json"
//
//	[cache]
//	dir = "/home/u/.cache/jpsctl"
//
//	[watch]
//	debounce = "300ms"
package config
