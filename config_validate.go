package netoff

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// configValidator is shared across all Validate() calls; per the
// go-playground/validator docs (and marmos91-dittofs's own usage) a single
// validator.Validate is safe for concurrent use and should be cached rather
// than constructed per call.
var configValidator = validator.New(validator.WithRequiredStructEnabled())

// configFields mirrors the structural subset of Config that validator tags
// can express directly; cross-field rules (e.g. retryBackoff >= retryDelay)
// stay as plain Go in Config.Validate, matching the teacher's split between
// tag-driven and hand-written checks.
type configFields struct {
	Port          int           `validate:"gt=0,lte=65535"`
	RetryAttempts int           `validate:"gt=0"`
	RetryDelay    time.Duration `validate:"gt=0"`
	ReadTimeout   time.Duration `validate:"gte=0"`
	WriteTimeout  time.Duration `validate:"gte=0"`
}

var errRetryBackoffBelowDelay = errors.New("retry backoff must be >= retry delay")

func wrapInvalidConfig(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
}
