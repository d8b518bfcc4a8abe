package robotmodel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// Config describes where a binding service loads its default robot model from.
type Config struct {
	ModelFile string `json:"model_file,omitempty"`
	ModelName string `json:"model_name,omitempty"`
}

// Validate ensures all parts of the config are valid
func (cfg *Config) Validate(path string) ([]string, []string, error) {
	var err error
	if cfg.ModelFile != "" && strings.TrimSpace(cfg.ModelFile) == "" {
		err = multierr.Append(err, goutils.NewConfigValidationFieldRequiredError(path, "model_file"))
	} else if cfg.ModelFile != "" {
		switch ext := strings.ToLower(filepath.Ext(cfg.ModelFile)); ext {
		case ".json":
		default:
			err = multierr.Append(err, fmt.Errorf("%s: model_file must be an rdk kinematics .json file, got %q", path, ext))
		}
	}
	if nameErr := checkModelName(cfg.ModelName); nameErr != nil {
		err = multierr.Append(err, fmt.Errorf("%s: %w", path, nameErr))
	}
	return nil, nil, err
}

// ResolvedModelFile returns the model file path, resolving relative paths against VIAM_MODULE_DATA.
func (cfg *Config) ResolvedModelFile() string {
	if cfg.ModelFile == "" || filepath.IsAbs(cfg.ModelFile) {
		return cfg.ModelFile
	}
	return filepath.Join(moduleDataDir(), cfg.ModelFile)
}

func moduleDataDir() string {
	moduleDataDir := os.Getenv("VIAM_MODULE_DATA")
	if moduleDataDir == "" {
		moduleDataDir = "/tmp" // Fallback if VIAM_MODULE_DATA not set
	}
	return moduleDataDir
}

// checkWithinModuleData rejects model files that resolve outside the module data directory.
func checkWithinModuleData(path string) error {
	dir := canonicalPath(moduleDataDir())
	rel, err := filepath.Rel(dir, canonicalPath(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("model file %q is outside the module data directory %s", path, dir)
	}
	return nil
}

// canonicalPath resolves symlinks in the longest existing prefix of path.
func canonicalPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.Clean(path)

	rest := ""
	for dir := path; ; dir = filepath.Dir(dir) {
		if resolved, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(resolved, rest)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return path
		}
		rest = filepath.Join(filepath.Base(dir), rest)
	}
}

// LoadModel loads the configured model, or the embedded panda model when no file is configured.
func (cfg *Config) LoadModel(logger logging.Logger) (RobotModel, error) {
	path := cfg.ResolvedModelFile()
	if path == "" {
		if logger != nil {
			logger.Debug("No model file specified, using embedded panda model")
		}
		return LoadModel(pandaModelJSON, cfg.ModelName)
	}

	m, err := LoadModelFile(path, cfg.ModelName)
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Infof("Successfully loaded robot model %q from %s", m.Name(), path)
	}
	return m, nil
}
