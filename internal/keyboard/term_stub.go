//go:build !linux

package keyboard

import "errors"

var errUnsupported = errors.New("raw terminal mode is only supported on linux")

func MakeRaw(fd int) (restore func() error, err error) {
	return nil, errUnsupported
}

func IsTerminal(fd int) bool { return false }
