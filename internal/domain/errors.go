package domain

import "errors"

// ErrRateLimited is returned by remote collaborators when they throttle us.
var ErrRateLimited = errors.New("rate limited")
