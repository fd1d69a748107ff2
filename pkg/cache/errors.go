package cache

import "errors"

// ErrInvalidRedisURL is returned by [NewRedisCache] when the connection URL
// cannot be parsed.
var ErrInvalidRedisURL = errors.New("invalid redis url")
