//go:build windows

package main

import (
	"errors"
	"io"
)

type errKind int

const (
	errKindMedia errKind = iota
	errKindShortTransfer
	errKindFatal
)

// Raw device access is not supported on Windows, so there is no media-level
// errno to recognize; image files either read fully or fail outright.
func classifyIOError(err error) errKind {
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return errKindShortTransfer
	default:
		return errKindFatal
	}
}
