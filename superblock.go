package main

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// dm-integrity superblock, stored at device offset 0.
//
//	magic                    0   8 bytes  "integrt\0"
//	version                  8   1 byte
//	log2_interleave_sectors  9   1 byte   signed
//	integrity_tag_size      10   2 bytes  little-endian
//	journal_sections        12   4 bytes  little-endian
//	provided_data_sectors   16   8 bytes  little-endian
const (
	sbMagic   = "integrt\x00"
	sbVersion = 1
	sbSize    = 24

	sbOffMagic           = 0
	sbOffVersion         = 8
	sbOffLog2Interleave  = 9
	sbOffTagSize         = 10
	sbOffJournalSections = 12
	sbOffProvidedSectors = 16
)

var errNoHeader = errors.New("no header detected")

type superblock struct {
	Log2InterleaveSectors int8
	IntegrityTagSize      uint16
	JournalSections       uint32
	ProvidedDataSectors   uint64
}

// decodeSuperblock validates the magic and version and converts the
// multi-byte fields from their little-endian on-disk order. Anything that
// does not look like a formatted header yields errNoHeader.
func decodeSuperblock(raw []byte) (superblock, error) {
	var sb superblock
	if len(raw) < sbSize {
		return sb, errNoHeader
	}
	if !bytes.Equal(raw[sbOffMagic:sbOffMagic+8], []byte(sbMagic)) {
		return sb, errNoHeader
	}
	if raw[sbOffVersion] != sbVersion {
		return sb, errNoHeader
	}
	sb.Log2InterleaveSectors = int8(raw[sbOffLog2Interleave])
	sb.IntegrityTagSize = binary.LittleEndian.Uint16(raw[sbOffTagSize:])
	sb.JournalSections = binary.LittleEndian.Uint32(raw[sbOffJournalSections:])
	sb.ProvidedDataSectors = binary.LittleEndian.Uint64(raw[sbOffProvidedSectors:])
	return sb, nil
}

// encodeSuperblock is the exact inverse of decodeSuperblock. The tool never
// writes a header to a device; this exists for round-trip verification.
func encodeSuperblock(sb superblock) []byte {
	raw := make([]byte, sbSize)
	copy(raw[sbOffMagic:], sbMagic)
	raw[sbOffVersion] = sbVersion
	raw[sbOffLog2Interleave] = byte(sb.Log2InterleaveSectors)
	binary.LittleEndian.PutUint16(raw[sbOffTagSize:], sb.IntegrityTagSize)
	binary.LittleEndian.PutUint32(raw[sbOffJournalSections:], sb.JournalSections)
	binary.LittleEndian.PutUint64(raw[sbOffProvidedSectors:], sb.ProvidedDataSectors)
	return raw
}

func readSuperblock(device string) (superblock, error) {
	f, err := os.Open(device)
	if err != nil {
		return superblock{}, fmt.Errorf("open %s: %w", device, err)
	}
	defer f.Close()

	raw := make([]byte, sbSize)
	if _, err := io.ReadFull(f, raw); err != nil {
		return superblock{}, errNoHeader
	}
	return decodeSuperblock(raw)
}

func dumpSuperblock(device string, out io.Writer) error {
	sb, err := readSuperblock(device)
	if errors.Is(err, errNoHeader) {
		fmt.Fprintf(out, "No header detected in %s.\n", device)
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Info for integrity device %s.\n", device)
	fmt.Fprintf(out, "log2_interleave_sectors %d\n", sb.Log2InterleaveSectors)
	fmt.Fprintf(out, "integrity_tag_size %d\n", sb.IntegrityTagSize)
	fmt.Fprintf(out, "journal_sections %d\n", sb.JournalSections)
	fmt.Fprintf(out, "provided_data_sectors %d\n", sb.ProvidedDataSectors)
	return nil
}
