//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package cog

import "errors"

// mmapFile is unavailable; callers fall back to reading the whole file.
func mmapFile(fd uintptr, size int) ([]byte, error) {
	return nil, errors.New("memory mapping is not supported on this platform")
}

func munmapFile(data []byte) error {
	return nil
}
