//go:build darwin

package main

import (
	crand "crypto/rand"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// _IOR('d', 24/25, ...) from <sys/disk.h>
const (
	dkiocGetBlockSize  = 0x40046418
	dkiocGetBlockCount = 0x40086419
)

// deviceSectors uses the disk ioctls for device nodes and the stat size
// for flat image files.
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
	blockSize, err := unix.IoctlGetUint32(int(f.Fd()), dkiocGetBlockSize)
	if err != nil {
		return 0, fmt.Errorf("capacity query failed: %w", err)
	}
	blockCount, err := unix.IoctlGetInt(int(f.Fd()), dkiocGetBlockCount)
	if err != nil {
		return 0, fmt.Errorf("capacity query failed: %w", err)
	}
	return uint64(blockSize) * uint64(blockCount) / sectorSize, nil
}

// openScanTarget opens the device; there is no O_DIRECT here, so direct
// mode sets F_NOCACHE on the open descriptor instead.
func openScanTarget(device string, dc devCommand, direct bool) (*os.File, error) {
	flags := os.O_RDONLY
	if dc != devCheck {
		flags = os.O_RDWR
	}
	f, err := os.OpenFile(device, flags, 0)
	if err != nil {
		return nil, err
	}
	if direct {
		if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
			f.Close()
			return nil, fmt.Errorf("F_NOCACHE: %w", err)
		}
	}
	return f, nil
}

func fillRandom(buf []byte) {
	crand.Read(buf)
}
