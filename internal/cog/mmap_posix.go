//go:build linux || darwin || freebsd || netbsd || openbsd

package cog

import "golang.org/x/sys/unix"

// mmapFile maps a file read-only. Block reads jump around the file, so the
// kernel is told not to read ahead.
func mmapFile(fd uintptr, size int) ([]byte, error) {
	data, err := unix.Mmap(int(fd), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	_ = unix.Madvise(data, unix.MADV_RANDOM)
	return data, nil
}

func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
