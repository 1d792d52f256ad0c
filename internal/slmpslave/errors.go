package slmpslave

import "errors"

var (
	ErrNilConfig = errors.New("slmpslave: config is nil")
)
