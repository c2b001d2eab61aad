package token

import "errors"

var errSecretUnset = errors.New("tracking signing secret is not configured")
