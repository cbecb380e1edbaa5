package config

import (
	"log/slog"
	"os"
)

// ProjectConfigFile is looked up in the working directory when no explicit
// path is given.
const ProjectConfigFile = "bench.yaml"

// Loader layers a config file over the defaults.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load returns DefaultConfig merged with the file at path. An empty path
// falls back to ProjectConfigFile if it exists. An explicit path that cannot
// be read is an error; a missing project file is not.
//
// The result is not validated: callers apply their own overrides first and
// then call Validate.
func (l *Loader) Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = ProjectConfigFile
	}

	fileCfg, err := LoadFromFile(path)
	switch {
	case err == nil:
		l.logger.Debug("Loaded config", slog.String("path", path))
		cfg.Merge(fileCfg)
	case explicit:
		return nil, err
	case !os.IsNotExist(err):
		l.logger.Warn("Failed to load project config", slog.String("path", path), slog.String("error", err.Error()))
	default:
		l.logger.Debug("No project config found")
	}

	return cfg, nil
}
