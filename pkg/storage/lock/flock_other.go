//go:build !(linux || darwin || freebsd)

package lock

import (
	"errors"
	"os"
)

var errUnsupported = errors.New("file locking not supported on this platform")

func flock(f *os.File) error {
	return errUnsupported
}

func funlock(f *os.File) error {
	return errUnsupported
}
