//go:build !windows

package main

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

type errKind int

const (
	// errKindMedia covers failures the device reports for a specific
	// location; a per-sector retry or overwrite can address them.
	errKindMedia errKind = iota
	// errKindShortTransfer is a transfer shorter than requested with no
	// errno attached.
	errKindShortTransfer
	// errKindFatal is everything else: handle or device state faults that
	// sector-level retry cannot fix.
	errKindFatal
)

func classifyIOError(err error) errKind {
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errKindShortTransfer
	case errors.Is(err, unix.EIO), errors.Is(err, unix.EILSEQ):
		return errKindMedia
	default:
		return errKindFatal
	}
}
