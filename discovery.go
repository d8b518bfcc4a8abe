package robotmodel

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/discovery"
	"go.viam.com/rdk/services/generic"
)

var ModelDiscoveryModel = resource.NewModel("viam", "robot-model", "discovery")

func init() {
	resource.RegisterService(
		discovery.API,
		ModelDiscoveryModel,
		resource.Registration[discovery.Service, *ModelDiscoveryConfig]{
			Constructor: newModelDiscovery,
		})
}

// ModelDiscoveryConfig is the configuration for the discovery service
type ModelDiscoveryConfig struct {
	// Directory to scan; defaults to VIAM_MODULE_DATA.
	Dir string `json:"dir,omitempty"`
}

// Validate ensures the config is valid
func (cfg *ModelDiscoveryConfig) Validate(path string) ([]string, []string, error) {
	return nil, nil, nil
}

// modelDiscovery proposes a binding service for every loadable kinematics file it finds.
type modelDiscovery struct {
	resource.Named
	resource.AlwaysRebuild
	resource.TriviallyCloseable
	logger logging.Logger
	dir    string
}

func newModelDiscovery(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (discovery.Service, error) {
	cfg, err := resource.NativeConfig[*ModelDiscoveryConfig](conf)
	if err != nil {
		return nil, err
	}

	return &modelDiscovery{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		dir:    cfg.Dir,
	}, nil
}

// DiscoverResources scans the model directory and returns binding service configurations
func (dis *modelDiscovery) DiscoverResources(ctx context.Context, extra map[string]any) ([]resource.Config, error) {
	dir := dis.dir
	if dir == "" {
		dir = os.Getenv("VIAM_MODULE_DATA")
	}
	if dir == "" {
		dir = "/tmp"
	}
	dis.logger.Infof("Starting robot model discovery in %s", dir)
	return discoverModels(ctx, dir, dis.logger)
}

func discoverModels(ctx context.Context, dir string, logger logging.Logger) ([]resource.Config, error) {
	candidates, err := findModelFiles(dir)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Found %d candidate model files", len(candidates))

	var configs []resource.Config
	for _, path := range candidates {
		select {
		case <-ctx.Done():
			logger.Info("Discovery cancelled")
			return configs, ctx.Err()
		default:
		}

		model, err := LoadModelFile(path, "")
		if err != nil {
			logger.Debugf("Skipping %s: %v", path, err)
			continue
		}
		if model.IsEmpty() {
			logger.Debugf("Skipping %s: model %q has no links or joints", path, model.Name())
			continue
		}

		configs = append(configs, resource.Config{
			Name:  "robot-model-" + configSuffix(path),
			API:   generic.API,
			Model: BindingModel,
			Attributes: map[string]interface{}{
				"model_file": path,
			},
		})
	}

	if len(configs) == 0 {
		logger.Info("No robot models discovered")
	} else {
		logger.Infof("Discovered %d robot models", len(configs))
	}
	return configs, nil
}

// findModelFiles lists the .json files directly inside dir in name order.
func findModelFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := []string{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// configSuffix derives a resource-name friendly suffix from a model file path
// /data/Panda Left.json -> "panda-left"
func configSuffix(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ToLower(base)
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, base)
}
