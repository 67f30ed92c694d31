package checks

import (
	"fmt"
	"sort"
)

// CheckRegistry manages the registration and creation of upload checks
type CheckRegistry struct {
	factories map[string]CheckFactory
}

func NewCheckRegistry() *CheckRegistry {
	return &CheckRegistry{
		factories: make(map[string]CheckFactory),
	}
}

// Register adds a check factory to the registry
func (r *CheckRegistry) Register(name string, factory CheckFactory) error {
	if name == "" {
		return fmt.Errorf("check name cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("check factory cannot be nil")
	}
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("check %s is already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// Create instantiates a check by name with the given parameters
func (r *CheckRegistry) Create(name string, params map[string]any) (Check, error) {
	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("unknown check: %s", name)
	}

	check, err := factory(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create check %s: %w", name, err)
	}
	return check, nil
}

func (r *CheckRegistry) IsRegistered(name string) bool {
	_, exists := r.factories[name]
	return exists
}

// GetRegisteredNames returns the registered check names in sorted order
func (r *CheckRegistry) GetRegisteredNames() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry holds every built-in check
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *CheckRegistry {
	registry := NewCheckRegistry()
	builtins := map[string]CheckFactory{
		SizeCheckName:      NewSizeCheck,
		FormatCheckName:    NewFormatCheck,
		DimensionCheckName: NewDimensionCheck,
		SvgRenderCheckName: NewSvgRenderCheck,
	}
	for name, factory := range builtins {
		if err := registry.Register(name, factory); err != nil {
			panic(err)
		}
	}
	return registry
}
