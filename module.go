package robotmodel

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	"go.viam.com/rdk/services/generic"
)

var (
	BindingModel = resource.NewModel("viam", "robot-model", "binding")
)

func init() {
	resource.RegisterService(generic.API, BindingModel,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newBindingService,
		},
	)
}

// bindingService exposes a Surface to remote callers through DoCommand.
type bindingService struct {
	resource.AlwaysRebuild

	name    resource.Name
	logger  logging.Logger
	cfg     *Config
	surface *Surface

	mu            sync.Mutex
	owned         map[Handle]struct{} // handles allocated through this service
	defaultHandle Handle
	closed        bool
}

func newBindingService(
	ctx context.Context,
	deps resource.Dependencies,
	rawConf resource.Config,
	logger logging.Logger,
) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewBindingService(rawConf.ResourceName(), conf, logger)
}

// NewBindingService creates a binding service backed by the default Surface. The configured
// model is loaded into a handle reported by the "status" command as "default_handle".
func NewBindingService(name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	model, err := conf.LoadModel(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load robot model: %w", err)
	}

	surface := AcquireDefaultSurface(logger)
	h := surface.New()
	if err := surface.Assign(h, model); err != nil {
		surface.Delete(h)
		ReleaseDefaultSurface()
		return nil, err
	}

	s := &bindingService{
		name:          name,
		logger:        logger,
		cfg:           conf,
		surface:       surface,
		owned:         map[Handle]struct{}{h: {}},
		defaultHandle: h,
	}
	logger.Infof("Robot model binding ready with model %q on handle %d", model.Name(), h)
	return s, nil
}

func (s *bindingService) Name() resource.Name {
	return s.name
}

// DoCommand dispatches binding operations. Every command except "new" and "status"
// takes a "handle" argument.
func (s *bindingService) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("command must be a string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("robot model binding %s is closed", s.name)
	}

	switch command {
	case "new":
		h := s.surface.New()
		s.owned[h] = struct{}{}
		return map[string]interface{}{"handle": float64(h)}, nil
	case "status":
		return s.status(cmd)
	}

	h, err := handleArg(cmd, "handle")
	if err != nil {
		return nil, err
	}

	if command == "delete" {
		// Handles owned by other services are left alone, like unknown handles.
		if _, ok := s.owned[h]; ok {
			s.surface.Delete(h)
			delete(s.owned, h)
			if h == s.defaultHandle {
				s.defaultHandle = NullHandle
			}
		}
		return map[string]interface{}{"success": true}, nil
	}
	if err := s.checkOwned(h); err != nil {
		return nil, err
	}

	switch command {
	case "release":
		if err := s.surface.Release(h); err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true}, nil

	case "load":
		return s.load(h, cmd)

	case "share":
		src, err := handleArg(cmd, "source")
		if err != nil {
			return nil, err
		}
		if err := s.checkOwned(src); err != nil {
			return nil, err
		}
		if err := s.surface.Share(h, src); err != nil {
			return nil, err
		}
		return map[string]interface{}{"success": true}, nil

	case "get_name":
		return stringResult(s.surface.Name(h))

	case "get_model_frame":
		return stringResult(s.surface.ModelFrame(h))

	case "is_empty":
		empty, err := s.surface.IsEmpty(h)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"result": empty}, nil

	case "print_model_info":
		return stringResult(s.surface.PrintModelInfo(h))

	case "get_root_joint_name":
		return stringResult(s.surface.RootJointName(h))

	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

// checkOwned rejects handles allocated by other services sharing the default Surface.
func (s *bindingService) checkOwned(h Handle) error {
	if _, ok := s.owned[h]; !ok {
		return errors.Wrapf(ErrUnknownHandle, "handle %d is not owned by %s", h, s.name)
	}
	return nil
}

// load populates h from the configured model, or from a model file named in the
// command. Files named remotely must live in the module data directory.
func (s *bindingService) load(h Handle, cmd map[string]interface{}) (map[string]interface{}, error) {
	conf := Config{ModelFile: s.cfg.ModelFile, ModelName: s.cfg.ModelName}
	if path, ok := cmd["model_file"].(string); ok {
		conf.ModelFile = path
		if path != "" {
			if err := checkWithinModuleData(conf.ResolvedModelFile()); err != nil {
				return nil, err
			}
		}
	}
	if name, ok := cmd["model_name"].(string); ok {
		conf.ModelName = name
	}
	if _, _, err := conf.Validate("model_file"); err != nil {
		return nil, err
	}

	model, err := conf.LoadModel(s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.surface.Assign(h, model); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "name": model.Name()}, nil
}

func (s *bindingService) status(cmd map[string]interface{}) (map[string]interface{}, error) {
	result := map[string]interface{}{
		"default_handle": float64(s.defaultHandle),
		"handles":        float64(len(s.owned)),
	}
	if _, ok := cmd["handle"]; !ok {
		return result, nil
	}

	h, err := handleArg(cmd, "handle")
	if err != nil {
		return nil, err
	}
	if err := s.checkOwned(h); err != nil {
		return nil, err
	}
	st, err := s.surface.Status(h)
	if err != nil {
		return nil, err
	}
	result["populated"] = st.Populated
	result["model_id"] = st.ModelID
	result["ref_count"] = float64(st.RefCount)
	return result, nil
}

func (s *bindingService) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.logger.Info("Closing robot model binding")
	for h := range s.owned {
		s.surface.Delete(h)
	}
	s.owned = nil
	ReleaseDefaultSurface()
	return nil
}

func stringResult(value string, err error) (map[string]interface{}, error) {
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"result": value}, nil
}

// handleArg reads a handle from a DoCommand argument. Numbers decoded from
// protobuf structs arrive as float64.
func handleArg(cmd map[string]interface{}, key string) (Handle, error) {
	switch v := cmd[key].(type) {
	case float64:
		if v < 0 || v != math.Trunc(v) || v > 1<<53 {
			return NullHandle, fmt.Errorf("%s must be a non-negative integer, got %v", key, v)
		}
		return Handle(v), nil
	case int:
		if v < 0 {
			return NullHandle, fmt.Errorf("%s must be a non-negative integer, got %d", key, v)
		}
		return Handle(v), nil
	case uint64:
		return Handle(v), nil
	case Handle:
		return v, nil
	case nil:
		return NullHandle, fmt.Errorf("%s is required", key)
	default:
		return NullHandle, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}
