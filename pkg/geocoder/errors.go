package geocoder

import "errors"

// ErrConfig marks an invalid search configuration: an unknown key, a
// value that cannot be coerced to the key's type, or a target area
// that exists neither as a JIS code nor as a name in the dictionary.
// Callers test for it with errors.Is.
var ErrConfig = errors.New("invalid search configuration")
