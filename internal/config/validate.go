package config

import "fmt"

// Validation error codes (E100-E199)
const (
	ErrRetentionWindow = "E101" // extendTo must exceed threshold
	ErrSecretTooShort  = "E102" // HS256 secret below 32 bytes
	ErrTTLNotPositive  = "E103" // token lifetime must be positive
	ErrSharedPath      = "E104" // database and event log collide
)

// minSecretLen is the smallest HS256 secret accepted, in bytes.
const minSecretLen = 32

// ValidationError is one violated configuration rule.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the cross-field rules. Returns all errors found (does not
// fail-fast).
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	if c.Retention.ExtendTo <= c.Retention.Threshold {
		errs = append(errs, ValidationError{
			Field:   "retention.extendTo",
			Message: fmt.Sprintf("%d must exceed threshold %d", c.Retention.ExtendTo, c.Retention.Threshold),
			Code:    ErrRetentionWindow,
		})
	}
	if c.Auth.Secret != "" && len(c.Auth.Secret) < minSecretLen {
		errs = append(errs, ValidationError{
			Field:   "auth.secret",
			Message: fmt.Sprintf("must be at least %d bytes", minSecretLen),
			Code:    ErrSecretTooShort,
		})
	}
	if c.Auth.TTL <= 0 {
		errs = append(errs, ValidationError{
			Field:   "auth.ttl",
			Message: "must be positive",
			Code:    ErrTTLNotPositive,
		})
	}
	if c.Events != "" && c.Events == c.Database {
		errs = append(errs, ValidationError{
			Field:   "events",
			Message: "must differ from database",
			Code:    ErrSharedPath,
		})
	}
	return errs
}

func toErrors(errs []ValidationError) []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}
