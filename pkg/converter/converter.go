// pkg/converter/converter.go
package converter

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrNullValue is returned when the input is already the missing marker
// (nil, or a string spelling of null)
var ErrNullValue = errors.New("null value")

// TypeConverter coerces loosely typed document values into the types the
// pipeline works with
type TypeConverter struct {
	logger *zap.Logger
	// Configuration options
	config TypeConverterConfig
	loc    *time.Location
}

// TypeConverterConfig provides configuration options for value coercion
type TypeConverterConfig struct {
	// Timezone applied to timestamps that carry no offset
	DefaultTimezone string
	// Whether to treat empty strings as NULL
	EmptyStringAsNull bool
	// Whether bare numbers are accepted as Unix timestamps (seconds)
	NumericTimestamps bool
}

// DefaultConfig returns the default configuration
func DefaultConfig() TypeConverterConfig {
	return TypeConverterConfig{
		DefaultTimezone:   "UTC",
		EmptyStringAsNull: true,
		NumericTimestamps: true,
	}
}

// NewTypeConverter creates a new TypeConverter with default configuration
func NewTypeConverter(logger *zap.Logger) *TypeConverter {
	tc, _ := NewTypeConverterWithConfig(logger, DefaultConfig())
	return tc
}

// NewTypeConverterWithConfig creates a TypeConverter with custom configuration.
// An unknown timezone falls back to UTC and is reported as an error alongside
// a usable converter.
func NewTypeConverterWithConfig(logger *zap.Logger, config TypeConverterConfig) (*TypeConverter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	tc := &TypeConverter{
		logger: logger,
		config: config,
		loc:    time.UTC,
	}

	if config.DefaultTimezone != "" {
		loc, err := time.LoadLocation(config.DefaultTimezone)
		if err != nil {
			return tc, fmt.Errorf("unknown timezone %q (using UTC): %w", config.DefaultTimezone, err)
		}
		tc.loc = loc
	}

	return tc, nil
}

// Location returns the zone naive timestamps are interpreted in
func (c *TypeConverter) Location() *time.Location {
	return c.loc
}
