package dmp

import "errors"

// ErrMalformedDelta is returned by FromDelta, ParseEdits and
// DiffsFromEditOps when the delta text is not well-formed, or when its
// token lengths are inconsistent with the base text they are applied
// against.
var ErrMalformedDelta = errors.New("dmp: malformed delta")
