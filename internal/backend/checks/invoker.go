package checks

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxBytes is the upload size limit used when none is configured.
const DefaultMaxBytes = 10 << 20

// DefaultCheckConfigs are used when no checks are configured.
func DefaultCheckConfigs() []CheckConfig {
	return []CheckConfig{
		{Name: SizeCheckName, Params: map[string]any{"maxBytes": DefaultMaxBytes}},
		{Name: FormatCheckName, Params: map[string]any{}},
		{Name: DimensionCheckName, Params: map[string]any{"maxPixels": DefaultMaxPixels}},
		{Name: SvgRenderCheckName, Params: map[string]any{}},
	}
}

// CheckInvoker runs a sequence of checks and stops at the first failure
type CheckInvoker struct {
	checks []Check
}

func NewCheckInvoker(checks []Check) *CheckInvoker {
	return &CheckInvoker{
		checks: checks,
	}
}

// NewCheckInvokerFromConfig creates every configured check from the registry.
func NewCheckInvokerFromConfig(registry *CheckRegistry, configs []CheckConfig) (*CheckInvoker, error) {
	checks := make([]Check, 0, len(configs))
	for i, config := range configs {
		check, err := registry.Create(config.Name, config.Params)
		if err != nil {
			return nil, fmt.Errorf("failed to create check at index %d (%s): %w", i, config.Name, err)
		}
		checks = append(checks, check)
	}
	return NewCheckInvoker(checks), nil
}

func (i *CheckInvoker) Names() []string {
	names := make([]string, 0, len(i.checks))
	for _, check := range i.checks {
		names = append(names, check.Name())
	}
	return names
}

// Run applies all checks in order to the image data
func (i *CheckInvoker) Run(imageData []byte) error {
	start := time.Now()

	for idx, check := range i.checks {
		if err := check.Check(imageData); err != nil {
			log.Debug().
				Int("index", idx).
				Str("check_name", check.Name()).
				Int("input_size_bytes", len(imageData)).
				Err(err).
				Msg("upload check failed")
			return fmt.Errorf("%s: %w", check.Name(), err)
		}
	}

	log.Debug().
		Int("check_count", len(i.checks)).
		Int("input_size_bytes", len(imageData)).
		Dur("duration", time.Since(start)).
		Msg("upload checks passed")
	return nil
}
