package exception

import "github.com/yanun0323/errors"

// Storage and publication errors
var (
	ErrStorageUnavailable = errors.New("storage: unavailable")
	ErrPublishFailed      = errors.New("publish: failed")
)
