// Package arena implements the per-worker bump allocator described in
// spec.md §4.1: a single-threaded, file-backed memory mapping that
// hands out zero-initialized, 8-byte-aligned regions and is never
// individually freed - only unmapped wholesale at process exit.
//
// Owners and Objects (see the reduce package) outlive every
// intermediate scope and move between owners during the tournament
// merge; an arena gives them a stable address for the lifetime of the
// process without requiring a garbage collector to track ownership
// transfers across worker boundaries. This mirrors the mmap idiom used
// throughout the reference pack (e.g. a generic mmap-backed array
// indexing scheme) rather than reinventing one from raw syscalls ad hoc.
/*
 * Adapted from the mmap patterns in aistore's memsys package and the
 * pack's file-backed array stores.
 */
package arena

import (
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/khalfella/storage-reduce1/rcos"
)

const align = 8

// Arena is a single-threaded bump allocator over a file-backed mapping.
// Each worker owns exactly one; there is no locking.
type Arena struct {
	idx  int
	path string
	file *os.File
	mem  []byte
	off  int64
	cap  int64
}

// fileName returns the scratch file name for worker idx, per spec.md §6.
func fileName(idx int) string {
	return fmt.Sprintf("reducer_thread_%d", idx)
}

// New creates (or truncates) the scratch file `reducer_thread_<idx>`
// under dir, sizes it to sizeBytes (sparse), and maps it
// shared/read-write. The mapping is zero-filled by the kernel, which
// satisfies Alloc's zero-initialization contract without an explicit
// memset.
func New(dir string, idx int, sizeBytes int64) (*Arena, error) {
	path := filepath.Join(dir, fileName(idx))

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o660)
	if err != nil {
		return nil, errors.Wrapf(err, "arena: failed to open scratch file %q", path)
	}
	if err := f.Truncate(sizeBytes); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Wrapf(err, "arena: failed to size scratch file %q to %d bytes", path, sizeBytes)
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(sizeBytes), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.Wrapf(err, "arena: failed to mmap scratch file %q", path)
	}

	return &Arena{
		idx:  idx,
		path: path,
		file: f,
		mem:  mem,
		cap:  sizeBytes,
	}, nil
}

// roundUp8 rounds n up to the next multiple of align.
func roundUp8(n int64) int64 {
	return (n + align - 1) / align * align
}

// alloc reserves sz bytes and returns the byte offset of the region.
// Fatal (exit code 2) on exhaustion, per spec.md §7.4 - there is no
// recovery path for an arena that runs out of room mid-scan.
func (a *Arena) alloc(sz int64) int64 {
	off := a.off
	next := roundUp8(off + sz)
	if next >= a.cap {
		rcos.ExitLogf(rcos.ExitResource,
			"arena %d: allocation of %d bytes would exceed capacity %d bytes (scratch file %q)",
			a.idx, sz, a.cap, a.path)
	}
	a.off = next
	return off
}

// AllocBytes returns a zeroed, arena-owned byte slice of exactly n bytes.
func (a *Arena) AllocBytes(n int) []byte {
	if n == 0 {
		return nil
	}
	off := a.alloc(int64(n))
	return a.mem[off : off+int64(n) : off+int64(n)]
}

// AllocString copies s into arena-owned memory and returns a string
// backed by that memory - no subsequent copy is made, so the returned
// string remains valid for the process lifetime without pinning the
// original (possibly reused) line buffer.
func (a *Arena) AllocString(s string) string {
	if s == "" {
		return ""
	}
	b := a.AllocBytes(len(s))
	copy(b, s)
	return rcos.UnsafeS(b)
}

// Alloc reserves space for one T and returns a pointer into the
// arena's mapping. The pointer is valid, and the pointee never moves,
// until the process exits.
func Alloc[T any](a *Arena) *T {
	var zero T
	sz := int64(unsafe.Sizeof(zero))
	off := a.alloc(sz)
	return (*T)(unsafe.Pointer(&a.mem[off]))
}

// Close unmaps the arena and closes (but does not remove) the scratch
// file - per spec.md's Non-goals, scratch files are not durable across
// runs, but removing them is the driver's responsibility, not the
// arena's, since a caller may want to inspect them after a crash.
func (a *Arena) Close() error {
	if a.mem != nil {
		if err := unix.Munmap(a.mem); err != nil {
			return errors.Wrapf(err, "arena %d: munmap failed", a.idx)
		}
		a.mem = nil
	}
	return a.file.Close()
}

// Remove closes the arena and deletes its backing scratch file.
func (a *Arena) Remove() error {
	path := a.path
	if err := a.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// Used returns the number of bytes allocated so far (for diagnostics).
func (a *Arena) Used() int64 { return a.off }

// Cap returns the arena's total capacity in bytes.
func (a *Arena) Cap() int64 { return a.cap }
