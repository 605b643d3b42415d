package hub

import "errors"

// Hub error types
var (
	ErrNilChannel = errors.New("cannot subscribe nil channel")
)
