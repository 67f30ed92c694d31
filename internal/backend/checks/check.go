package checks

// Check validates uploaded image data before it is stored
type Check interface {
	Name() string
	Check(imageData []byte) error
}

// CheckFactory creates a check from configuration parameters
type CheckFactory func(params map[string]any) (Check, error)

// CheckConfig represents a check configuration with name and parameters
type CheckConfig struct {
	Name   string
	Params map[string]any
}
