package forecast

import (
	"errors"
	"fmt"
)

// DataError reports that the historical series cannot support a forecast.
// Callers should show "not enough data" rather than substitute a forecast.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return "insufficient data: " + e.Reason
}

// ConfigError reports an out-of-range forecast parameter
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ComputeError reports a failure during simulation or aggregation, including
// cancellation and recovered panics.
type ComputeError struct {
	Op  string
	Err error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("forecast %s failed: %v", e.Op, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// IsDataError reports whether err is or wraps a *DataError
func IsDataError(err error) bool {
	var de *DataError
	return errors.As(err, &de)
}

// IsConfigError reports whether err is or wraps a *ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsComputeError reports whether err is or wraps a *ComputeError
func IsComputeError(err error) bool {
	var ce *ComputeError
	return errors.As(err, &ce)
}
