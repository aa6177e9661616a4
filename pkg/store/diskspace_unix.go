//go:build linux || darwin

package store

import "golang.org/x/sys/unix"

// AvailableBytes reports the free space available to unprivileged users on
// the filesystem holding path.
func AvailableBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
