//go:build !darwin && !linux

package registry

import "errors"

func totalSystemRAM() (uint64, error) {
	return 0, errors.New("unsupported platform for RAM detection")
}
