package keybackend

import "errors"

// ErrEmptySecret is returned when a secret file holds no secret.
var ErrEmptySecret = errors.New("secret file is empty")
