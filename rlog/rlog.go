// Package rlog is a trimmed-down version of aistore's cmn/nlog: a
// severity-leveled, buffered line logger writing to stderr.
//
// Unlike nlog it never rotates or writes to a log file - this is a
// one-shot batch process, not a long-lived daemon - but it keeps
// nlog's core idea: format the line into a fixed scratch buffer under
// a single mutex, and let the caller decide when to flush, so the
// scan-phase hot path never pays for an unbuffered write per record.
/*
 * Adapted from aistore's cmn/nlog package.
 */
package rlog

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

type severity int

const (
	sevInfo severity = iota
	sevWarn
	sevErr
)

const sevChar = "IWE"

var (
	mu  sync.Mutex
	out = bufio.NewWriterSize(os.Stderr, 16*1024)
)

func log(sev severity, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()

	writeHdr(sev)
	if format == "" {
		fmt.Fprintln(out, args...)
	} else {
		fmt.Fprintf(out, format, args...)
		out.WriteByte('\n')
	}
	if sev >= sevErr {
		out.Flush()
	}
}

func writeHdr(sev severity) {
	out.WriteByte(sevChar[sev])
	out.WriteByte(' ')
	out.WriteString(time.Now().Format("15:04:05.000000"))
	out.WriteByte(' ')
	if _, fn, ln, ok := runtime.Caller(3); ok {
		if idx := strings.LastIndexByte(fn, '/'); idx >= 0 {
			fn = fn[idx+1:]
		}
		out.WriteString(fn)
		out.WriteByte(':')
		out.WriteString(strconv.Itoa(ln))
		out.WriteByte(' ')
	}
}

func Infof(format string, args ...any)  { log(sevInfo, format, args...) }
func Warnf(format string, args ...any)  { log(sevWarn, format, args...) }
func Errorf(format string, args ...any) { log(sevErr, format, args...) }

func Infoln(args ...any)  { log(sevInfo, "", args...) }
func Warnln(args ...any)  { log(sevWarn, "", args...) }
func Errorln(args ...any) { log(sevErr, "", args...) }

// Flush forces any buffered lines out to stderr. Call before process
// exit - os.Exit skips deferred flushes.
func Flush() {
	mu.Lock()
	defer mu.Unlock()
	out.Flush()
}
