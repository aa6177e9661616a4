//go:build !linux && !darwin

package store

import "errors"

var errUnsupportedPlatform = errors.New("free space probe not supported on this platform")

func AvailableBytes(string) (uint64, error) {
	return 0, errUnsupportedPlatform
}
