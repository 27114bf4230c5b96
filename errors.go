package castellan

import "errors"

// ErrRegistryFull is returned by context creation when the guard already
// holds the maximum number of concurrent investigation contexts. It is the
// only error the admission surface ever returns; denials and missing
// contexts are reported through [Admission] values instead.
var ErrRegistryFull = errors.New("castellan: max concurrent investigations reached")
