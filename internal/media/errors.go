package media

import "errors"

// ErrInvalidInput is returned when a submission contains no usable URLs after
// trimming and normalization. No job is created in that case.
var ErrInvalidInput = errors.New("no valid urls provided")
