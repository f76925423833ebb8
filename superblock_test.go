package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSuperblockRoundTrip(t *testing.T) {
	sb := superblock{
		Log2InterleaveSectors: -3,
		IntegrityTagSize:      4,
		JournalSections:       168,
		ProvidedDataSectors:   1<<41 + 12345,
	}
	raw := encodeSuperblock(sb)
	if len(raw) != sbSize {
		t.Fatalf("encoded size %d, want %d", len(raw), sbSize)
	}
	got, err := decodeSuperblock(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != sb {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, sb)
	}
}

func TestDecodeRejectsCorruptHeader(t *testing.T) {
	valid := encodeSuperblock(superblock{IntegrityTagSize: 8, JournalSections: 32, ProvidedDataSectors: 1 << 20})

	corrupt := func(name string, mutate func([]byte) []byte) {
		raw := mutate(append([]byte(nil), valid...))
		if _, err := decodeSuperblock(raw); !errors.Is(err, errNoHeader) {
			t.Errorf("%s: got %v, want errNoHeader", name, err)
		}
	}
	corrupt("bad magic", func(b []byte) []byte { b[0] ^= 0xff; return b })
	corrupt("bad magic tail", func(b []byte) []byte { b[7] = 'x'; return b })
	corrupt("bad version", func(b []byte) []byte { b[sbOffVersion] = 2; return b })
	corrupt("truncated", func(b []byte) []byte { return b[:sbSize-1] })

	if _, err := decodeSuperblock(valid); err != nil {
		t.Fatalf("valid header rejected: %v", err)
	}
}

func TestDumpFormattedImage(t *testing.T) {
	sb := superblock{
		Log2InterleaveSectors: 15,
		IntegrityTagSize:      4,
		JournalSections:       168,
		ProvidedDataSectors:   2097152,
	}
	img := filepath.Join(t.TempDir(), "dev.img")
	raw := append(encodeSuperblock(sb), make([]byte, sectorSize)...)
	if err := os.WriteFile(img, raw, 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	var out bytes.Buffer
	if err := dumpSuperblock(img, &out); err != nil {
		t.Fatalf("dump: %v", err)
	}
	for _, want := range []string{
		"log2_interleave_sectors 15",
		"integrity_tag_size 4",
		"journal_sections 168",
		"provided_data_sectors 2097152",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("dump output missing %q:\n%s", want, out.String())
		}
	}
}

func TestDumpUnformattedImage(t *testing.T) {
	img := filepath.Join(t.TempDir(), "blank.img")
	if err := os.WriteFile(img, make([]byte, 4*sectorSize), 0o644); err != nil {
		t.Fatalf("write image: %v", err)
	}

	var out bytes.Buffer
	err := dumpSuperblock(img, &out)
	if !errors.Is(err, errNoHeader) {
		t.Fatalf("got %v, want errNoHeader", err)
	}
	if !strings.Contains(out.String(), "No header detected in") {
		t.Errorf("missing negative-result line:\n%s", out.String())
	}
}

func TestDumpMissingDevice(t *testing.T) {
	var out bytes.Buffer
	err := dumpSuperblock(filepath.Join(t.TempDir(), "nope"), &out)
	if err == nil || errors.Is(err, errNoHeader) {
		t.Fatalf("got %v, want open error", err)
	}
}
