package project

import (
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/dshills/jpsmodel/internal/config"
	"github.com/dshills/jpsmodel/internal/jps"
	"github.com/dshills/jpsmodel/internal/jps/sourcecache"
	"github.com/dshills/jpsmodel/internal/workspace/fileurl"
)

// OptionsFromConfig builds project options from the tool configuration.
// Relative directories are resolved against the working directory.
func OptionsFromConfig(cfg *config.Config, log *logrus.Logger) (Options, error) {
	pc := cfg.Project()

	projectDir, err := absURL(pc.Dir)
	if err != nil {
		return Options{}, err
	}
	if projectDir.IsEmpty() {
		return Options{}, ErrNoProjectDir
	}
	externalRoot, err := absURL(pc.ExternalStorageRoot)
	if err != nil {
		return Options{}, err
	}
	globalDir, err := absURL(pc.GlobalOptionsDir)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Layout: jps.Layout{
			ProjectDir:          projectDir,
			ExternalStorageRoot: externalRoot,
			GlobalOptionsDir:    globalDir,
		},
		Macros:          pc.PathMacros,
		ExternalStorage: pc.ExternalStorageEnabled,
		UnloadedModules: pc.UnloadedModules,
		MaxConcurrency:  pc.MaxConcurrency,
		Debounce:        cfg.Watch().Debounce,
		Logger:          log,
	}

	// An in-memory cache would not outlive the process.
	if cc := cfg.Cache(); cc.Enabled && cc.Dir != "" {
		dir, err := filepath.Abs(cc.Dir)
		if err != nil {
			return Options{}, err
		}
		opts.Cache = &sourcecache.Config{Dir: dir, Logger: log}
	}
	return opts, nil
}

func absURL(dir string) (fileurl.URL, error) {
	if dir == "" {
		return fileurl.Empty, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fileurl.Empty, err
	}
	return fileurl.FromPath(filepath.ToSlash(abs)), nil
}
