package config

import "errors"

// ErrConfig marks malformed configuration documents, including override
// documents whose shape conflicts with the parameter record (a nested object
// where the record holds a scalar, or vice versa). Wrapped errors carry the
// offending path and field.
var ErrConfig = errors.New("invalid configuration")
