//go:build linux

package main

import (
	crand "crypto/rand"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// deviceSectors resolves a device path to its capacity in sectors: the
// BLKGETSIZE64 ioctl for block devices, plain stat size for flat images.
func deviceSectors(device string) (uint64, error) {
	fi, err := os.Stat(device)
	if err != nil {
		return 0, fmt.Errorf("device unavailable: %w", err)
	}
	f, err := os.Open(device)
	if err != nil {
		return 0, fmt.Errorf("device unavailable: %w", err)
	}
	defer f.Close()

	if fi.Mode()&os.ModeDevice == 0 {
		return uint64(fi.Size()) / sectorSize, nil
	}
	size, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKGETSIZE64)
	if err != nil {
		return 0, fmt.Errorf("capacity query failed: %w", err)
	}
	return uint64(size) / sectorSize, nil
}

func openScanTarget(device string, dc devCommand, direct bool) (*os.File, error) {
	flags := os.O_RDONLY
	if dc != devCheck {
		flags = os.O_RDWR
	}
	if direct {
		flags |= unix.O_DIRECT
	}
	return os.OpenFile(device, flags, 0)
}

// fillRandom fills buf from the kernel CSPRNG, resuming across short
// reads and EINTR.
func fillRandom(buf []byte) {
	for len(buf) > 0 {
		n, err := unix.Getrandom(buf, 0)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			crand.Read(buf)
			return
		}
		buf = buf[n:]
	}
}
