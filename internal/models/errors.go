package models

import "errors"

// Sentinel errors shared across repositories and services. Handlers translate
// them to HTTP status codes; ErrNotFound deliberately covers both "absent" and
// "owned by someone else" so ownership is never leaked.
var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidArgument = errors.New("invalid argument")
)
