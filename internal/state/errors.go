package state

import "fmt"

// ConfigError reports that images.yaml is missing or unusable. It is fatal
// to a reconciliation pass.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid image configuration %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// StateLoadError reports a state file that exists but could not be parsed.
// Callers treat the file as if there were no prior state.
type StateLoadError struct {
	Path string
	Err  error
}

func (e *StateLoadError) Error() string {
	return fmt.Sprintf("error loading state file %s: %v", e.Path, e.Err)
}

func (e *StateLoadError) Unwrap() error {
	return e.Err
}
