package uvc

import "errors"

var ErrInvalidConfig = errors.New("invalid camera configuration")
