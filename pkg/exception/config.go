package exception

import "github.com/yanun0323/errors"

// Config errors
var (
	ErrConfigInvalid     = errors.New("config: invalid")
	ErrConfigUnknownFeed = errors.New("config: unknown feed kind")
)
