package mapper

import "errors"

// ErrInvalidTable reports a keyword or rule table that cannot be used.
var ErrInvalidTable = errors.New("invalid mapping table")
