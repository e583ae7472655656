// Package rcos provides the common low-level helpers shared by the
// reducer packages: fatal-exit logging, size constants, and the
// unsafe string/byte conversions used to back strings with
// arena-owned memory without copying.
/*
 * Adapted from aistore's cmn/cos package.
 */
package rcos

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/khalfella/storage-reduce1/rlog"
)

// Exit codes, per the driver's error-handling design.
const (
	ExitConfig   = 1 // configuration / thread-creation failure
	ExitResource = 2 // resource exhaustion / invalid record
	ExitInternal = 1 // internal invariant violation
)

const (
	KiB = 1024
	MiB = 1024 * KiB
)

const fatalPrefix = "FATAL ERROR: "

// Exitf prints a fatal diagnostic to stderr and exits with code.
func Exitf(code int, format string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+format, a...)
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}

// ExitLogf logs the diagnostic through rlog (so it lands in the same
// stream as everything else this run produced) and then exits.
func ExitLogf(code int, format string, a ...any) {
	msg := fmt.Sprintf(fatalPrefix+format, a...)
	rlog.Errorln(msg)
	rlog.Flush()
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(code)
}

// IsPowerOfTwo reports whether x is a positive power of two.
// Mirrors the original's `x && !(x&(x-1))`: zero is not a power of two.
func IsPowerOfTwo(x int) bool {
	return x > 0 && x&(x-1) == 0
}

// DivCeil returns ceil(a/b) for positive a, b.
func DivCeil(a, b int64) int64 {
	return (a + b - 1) / b
}

// UnsafeB converts a string to a byte slice without copying.
// The returned slice must not be mutated.
func UnsafeB(s string) (b []byte) {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// UnsafeS converts a byte slice to a string without copying.
// Callers must guarantee b is not mutated afterwards; this is safe
// for arena-owned, write-once byte slices.
func UnsafeS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}
