package main

import (
	"fmt"
	"io"
	"os"
	"time"
	"unsafe"

	"dmicheck/scanmap"
)

const (
	sectorSize          = 512
	defaultBlockSectors = 8192 // 16 MiB chunks
	bufferAlign         = 8192 // satisfies O_DIRECT on common devices
)

type devCommand int

const (
	devCheck devCommand = iota
	devFix
	devFormat
)

func (dc devCommand) String() string {
	switch dc {
	case devCheck:
		return "check"
	case devFix:
		return "fix"
	case devFormat:
		return "format"
	}
	return "unknown"
}

type scanOptions struct {
	blockSectors uint64
	direct       bool
	randomize    bool
	debug        bool
	ui           *scanmap.UI
}

// target is the device surface the scanner needs. *os.File satisfies it;
// tests substitute fault-injecting fakes.
type target interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
	Close() error
}

// scanSectors sweeps sectors [startSector, devSectors) of device in the
// given mode. Per-sector media errors are reported on the console and do
// not fail the sweep; environment faults abort it with an error.
func scanSectors(device string, startSector, devSectors uint64, dc devCommand, opts scanOptions) error {
	dev, err := openScanTarget(device, dc, opts.direct)
	if err != nil {
		return fmt.Errorf("open %s: %w", device, err)
	}
	defer dev.Close()

	out := io.Writer(os.Stdout)
	if opts.ui != nil {
		// the sector map owns the terminal while it is up
		out = io.Discard
	}
	return sweep(dev, startSector, devSectors, dc, opts, out)
}

func sweep(dev target, offset, devSectors uint64, dc devCommand, opts scanOptions, out io.Writer) error {
	s := &scanner{
		dev:  dev,
		dc:   dc,
		opts: opts,
		out:  out,
		pr:   newProgress(devSectors*sectorSize, out),
	}
	return s.run(offset, devSectors)
}

type scanner struct {
	dev  target
	dc   devCommand
	opts scanOptions
	out  io.Writer
	pr   *progress

	bad   uint64
	wiped uint64
}

func (s *scanner) run(offset, devSectors uint64) error {
	buf := alignedBuffer(int(s.opts.blockSectors)*sectorSize, bufferAlign)

	for offset < devSectors {
		stride := s.opts.blockSectors
		if offset+stride > devSectors {
			stride = devSectors - offset
		}
		chunk := buf[:stride*sectorSize]

		if s.dc == devFormat {
			s.wipeChunk(chunk, offset, stride)
		} else if err := s.readChunk(chunk, offset, stride); err != nil {
			return err
		}

		offset += stride
		if err := s.report(offset * sectorSize); err != nil {
			return err
		}
	}

	if err := s.dev.Sync(); err != nil {
		fmt.Fprintf(s.out, "FSYNC failed (%v).\n", err)
	}
	s.pr.finish(offset * sectorSize)
	return nil
}

func (s *scanner) wipeChunk(chunk []byte, offset, stride uint64) {
	debugf(s.opts.debug, "wipe %d-%d", offset, offset+stride)
	fillContent(chunk, s.opts.randomize)
	if n, err := s.dev.WriteAt(chunk, int64(offset)*sectorSize); err != nil || n != len(chunk) {
		fmt.Fprintf(s.out, "Write error, sector %d.\n", offset)
		s.bad++
		s.mark(offset, stride, scanmap.StateBad)
		return
	}
	s.mark(offset, stride, scanmap.StateHealthy)
}

func (s *scanner) readChunk(chunk []byte, offset, stride uint64) error {
	n, err := s.dev.ReadAt(chunk, int64(offset)*sectorSize)
	if err == nil && n == len(chunk) {
		s.mark(offset, stride, scanmap.StateHealthy)
		return nil
	}
	debugf(s.opts.debug, "bulk read failed at sector %d (%d/%d bytes, %v), rescanning", offset, n, len(chunk), err)
	return s.scanOneByOne(chunk[:sectorSize], offset, stride)
}

// scanOneByOne isolates a failed chunk sector by sector. Media errors are
// reported (and in fix mode overwritten); anything else aborts the sweep,
// since retrying cannot fix a broken handle or a vanished device.
func (s *scanner) scanOneByOne(sec []byte, first, count uint64) error {
	s.pr.clearLine()

	for sector := first; sector < first+count; sector++ {
		n, err := s.dev.ReadAt(sec, int64(sector)*sectorSize)
		if err == nil && n == sectorSize {
			s.mark(sector, 1, scanmap.StateHealthy)
			continue
		}

		if classifyIOError(err) != errKindMedia {
			fmt.Fprintf(s.out, "Error sector %d (%v).\n", sector, errText(err))
			return fmt.Errorf("sector %d: %w", sector, errOrShort(err))
		}

		if s.dc != devFix {
			fmt.Fprintf(s.out, "IO error sector %d.\n", sector)
			s.bad++
			s.mark(sector, 1, scanmap.StateBad)
			continue
		}

		// try to overwrite the sector
		fillContent(sec, s.opts.randomize)
		if n, err := s.dev.WriteAt(sec, int64(sector)*sectorSize); err != nil || n != sectorSize {
			fmt.Fprintf(s.out, "Error sector %d (%v).\n", sector, errText(err))
			s.bad++
			s.mark(sector, 1, scanmap.StateBad)
		} else {
			fmt.Fprintf(s.out, "Bad sector %d wiped.\n", sector)
			s.wiped++
			s.mark(sector, 1, scanmap.StateWiped)
		}
	}
	return nil
}

func (s *scanner) report(bytes uint64) error {
	s.pr.update(bytes)
	if s.opts.ui == nil {
		return nil
	}
	elapsed, rate, eta := s.pr.snapshot(bytes)
	etaStr := "—"
	if rate > 0 {
		etaStr = eta.Truncate(time.Second).String()
	}
	s.opts.ui.SetStatus([]string{
		fmt.Sprintf("Processed: %d / %d MiB", bytes>>20, s.pr.total>>20),
		fmt.Sprintf("Elapsed: %s   Rate: %5.1f MiB/s   ETA: %s", elapsed.Truncate(time.Second), rate, etaStr),
		fmt.Sprintf("Bad sectors: %d   Wiped: %d", s.bad, s.wiped),
	})
	s.opts.ui.Draw()
	if s.opts.ui.IsStopped() {
		return scanmap.ErrInterrupted
	}
	return nil
}

func (s *scanner) mark(sector, count uint64, st scanmap.State) {
	if s.opts.ui != nil {
		s.opts.ui.Mark(sector, count, st)
	}
}

func fillContent(buf []byte, randomize bool) {
	if randomize {
		fillRandom(buf)
		return
	}
	clear(buf)
}

func errText(err error) string {
	if err == nil {
		return "short transfer"
	}
	return err.Error()
}

func errOrShort(err error) error {
	if err == nil {
		return io.ErrUnexpectedEOF
	}
	return err
}

// alignedBuffer returns a size-byte slice whose base address is a multiple
// of align, as direct I/O requires.
func alignedBuffer(size, align int) []byte {
	raw := make([]byte, size+align)
	off := int(uintptr(unsafe.Pointer(&raw[0])) & uintptr(align-1))
	if off != 0 {
		off = align - off
	}
	return raw[off : off+size]
}
