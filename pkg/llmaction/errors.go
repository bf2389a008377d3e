package llmaction

import "errors"

// ErrValidation marks a response that failed schema repair in a way that
// cannot be recovered, e.g. a missing "nodes" list.
var ErrValidation = errors.New("validation_error")
