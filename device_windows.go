//go:build windows

package main

import (
	crand "crypto/rand"
	"fmt"
	"os"
	"strings"
)

// Raw device access is not supported on Windows; flat disk images work.
func deviceSectors(device string) (uint64, error) {
	if strings.HasPrefix(device, `\\.\`) {
		return 0, fmt.Errorf("raw device access is not supported on Windows; use a disk image")
	}
	fi, err := os.Stat(device)
	if err != nil {
		return 0, fmt.Errorf("device unavailable: %w", err)
	}
	return uint64(fi.Size()) / sectorSize, nil
}

// openScanTarget opens an image file; direct mode has no effect here, the
// sweep goes through the page cache.
func openScanTarget(device string, dc devCommand, direct bool) (*os.File, error) {
	flags := os.O_RDONLY
	if dc != devCheck {
		flags = os.O_RDWR
	}
	return os.OpenFile(device, flags, 0)
}

func fillRandom(buf []byte) {
	crand.Read(buf)
}
