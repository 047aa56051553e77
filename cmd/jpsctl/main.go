// Package main is the entry point for jpsctl, a tool that loads, saves and
// watches the configuration of an IntelliJ project directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/config"
	"github.com/dshills/jpsmodel/internal/project"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// command is one jpsctl subcommand.
type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
	flags   func(fs *flag.FlagSet, o *commandOptions)
}

var commands = []command{
	{"load", "Load the project and print a summary", runLoad, nil},
	{"dump", "Print the loaded entities as YAML", runDump, nil},
	{"save", "Load the project and write it back in canonical form", runSave, nil},
	{"deps", "Print the module build order and dependency cycles", runDeps, depsFlags},
	{"watch", "Reload configuration files as they change", runWatch, nil},
}

// commandOptions holds the flags only some commands accept.
type commandOptions struct {
	reverse bool
	path    bool
	unused  bool
	json    bool
}

func depsFlags(fs *flag.FlagSet, o *commandOptions) {
	fs.BoolVar(&o.reverse, "reverse", false, "Print the modules depending on the named modules")
	fs.BoolVar(&o.path, "path", false, "Print a dependency path between two modules")
	fs.BoolVar(&o.unused, "unused", false, "Print the libraries no module depends on")
	fs.BoolVar(&o.json, "json", false, "Print the whole graph as JSON")
}

// env is the state shared by every command.
type env struct {
	stdout io.Writer
	stderr io.Writer
	log    *logrus.Logger
	opts   project.Options
	cmd    commandOptions
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}
	switch args[0] {
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return 0
	case "-v", "-version", "--version", "version":
		fmt.Fprintf(stdout, "jpsctl %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return 0
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == args[0] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "Error: unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	var projectDir, configPath, logLevel string
	fs := flag.NewFlagSet("jpsctl "+cmd.name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&projectDir, "project", "", "Project directory (containing .idea)")
	fs.StringVar(&projectDir, "p", "", "Project directory (shorthand)")
	fs.StringVar(&configPath, "config", "", "Path to configuration file")
	fs.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	var cmdOpts commandOptions
	if cmd.flags != nil {
		cmd.flags(fs, &cmdOpts)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	e, err := setup(ctx, projectDir, configPath, logLevel, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	e.cmd = cmdOpts

	if err := cmd.run(ctx, e, fs.Args()); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// setup loads the configuration, applies the flags on top and builds the
// project options.
func setup(ctx context.Context, projectDir, configPath, logLevel string, stdout, stderr io.Writer) (*env, error) {
	searchDir := projectDir
	if searchDir == "" {
		searchDir = "."
	}
	cfg := config.New(config.WithConfigFile(configPath), config.WithProjectDir(searchDir))
	if err := cfg.Load(ctx); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if projectDir != "" {
		cfg.Set("project_dir", projectDir)
	}
	if logLevel != "" {
		cfg.Set("log.level", logLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := cfg.Logging().NewLoggerTo(stderr)
	if err != nil {
		return nil, err
	}
	opts, err := project.OptionsFromConfig(cfg, log)
	if err != nil {
		return nil, err
	}
	return &env{stdout: stdout, stderr: stderr, log: log, opts: opts}, nil
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "jpsctl - IntelliJ project model tool\n\n")
	fmt.Fprintf(w, "Usage: jpsctl <command> [options]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nOptions:\n")
	fmt.Fprintf(w, "  -project, -p <dir>     Project directory (default: configured project_dir)\n")
	fmt.Fprintf(w, "  -config, -c <file>     Configuration file (default: <project>/jpsctl.toml)\n")
	fmt.Fprintf(w, "  -log-level <level>     Log level (debug, info, warn, error)\n")
	fmt.Fprintf(w, "\nDeps options:\n")
	fmt.Fprintf(w, "  -reverse <module>...   Modules depending on the named modules\n")
	fmt.Fprintf(w, "  -path <from> <to>      Shortest dependency path between two modules\n")
	fmt.Fprintf(w, "  -unused                Libraries no module depends on\n")
	fmt.Fprintf(w, "  -json                  The whole graph as JSON\n")
	fmt.Fprintf(w, "\nExamples:\n")
	fmt.Fprintf(w, "  jpsctl load -p ./app           Summarize the project in ./app\n")
	fmt.Fprintf(w, "  jpsctl dump -p ./app           Print modules and libraries\n")
	fmt.Fprintf(w, "  jpsctl deps -p ./app core      Print what module core depends on\n")
	fmt.Fprintf(w, "  jpsctl watch -p ./app          Reload on every file change\n")
}
