// Package manifest parses one newline-delimited JSON manifest line
// into a normalized Record, per spec.md §4.2. Parsing is a pure
// function: given the same line it always produces the same Record
// or the same error, with no reference to process-wide state.
/*
 * Grounded on aistore's dsort.go choice of jsoniter.ConfigFastest for
 * hot-path decoding, and on the namespace-offset arithmetic of the
 * original khalfella/storage-reduce1 json_to_record().
 */
package manifest

import (
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var js = jsoniter.ConfigFastest

// Type is the kind of entry a record describes.
type Type int

const (
	Directory Type = iota
	Object
)

// MaxNamespaceLen is the maximum byte length of a namespace name
// (spec.md §4.2).
const MaxNamespaceLen = 15

// uuidKeyLen is the length of the uuid-shaped path component that
// precedes the namespace in a record's key, e.g.
// "/639e843a-6519-479e-b8d8-147ebf8f5c1a/public/x".
const uuidKeyLen = 36

// namespaceOffset is the byte offset of the namespace within key,
// accounting for the leading and trailing '/' around the uuid segment.
const namespaceOffset = uuidKeyLen + 2

// Record is the normalized, transient result of parsing one input
// line. It is consumed immediately by a worker and never retained.
type Record struct {
	Owner     string
	Object    string // empty for directories
	Namespace string
	Type      Type
	Sharks    int
	Length    uint64
}

// ParseError reports why a line could not be turned into a Record.
// The offending line is preserved for the diagnostic the driver
// prints before aborting (parsing is fatal-on-error; see spec.md §7.3).
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return "invalid input record: " + e.Reason + ": " + e.Line
}

func fail(line []byte, reason string) error {
	return &ParseError{Line: string(line), Reason: reason}
}

type wireRecord struct {
	Key           string              `json:"key"`
	Type          string              `json:"type"`
	Owner         string              `json:"owner"`
	Sharks        jsoniter.RawMessage `json:"sharks"`
	ContentLength uint64              `json:"contentLength"`
	ObjectID      string              `json:"objectId"`
}

// Parse turns one JSON manifest line into a Record.
func Parse(line []byte) (Record, error) {
	var w wireRecord
	if err := js.Unmarshal(line, &w); err != nil {
		return Record{}, fail(line, errors.Wrap(err, "malformed JSON").Error())
	}
	if w.Key == "" {
		return Record{}, fail(line, "missing required field \"key\"")
	}
	if w.Owner == "" {
		return Record{}, fail(line, "missing required field \"owner\"")
	}

	ns, err := namespace(w.Key)
	if err != nil {
		return Record{}, fail(line, err.Error())
	}

	rec := Record{Owner: w.Owner, Namespace: ns}
	switch w.Type {
	case "directory":
		rec.Type = Directory
		return rec, nil
	case "object":
		rec.Type = Object
	case "":
		return Record{}, fail(line, "missing required field \"type\"")
	default:
		return Record{}, fail(line, "unknown type "+w.Type)
	}

	if len(w.Sharks) == 0 {
		return Record{}, fail(line, "missing required field \"sharks\"")
	}
	var sharks []jsoniter.RawMessage
	if err := js.Unmarshal(w.Sharks, &sharks); err != nil {
		return Record{}, fail(line, "field \"sharks\" is not an array")
	}
	if w.ObjectID == "" {
		return Record{}, fail(line, "missing required field \"objectId\"")
	}

	rec.Sharks = len(sharks)
	rec.Length = w.ContentLength
	rec.Object = w.ObjectID
	return rec, nil
}

// namespace extracts the namespace component of a manifest key, per
// the layout:
//
//	/<36-char uuid>/<namespace>[/...]
//	1              38^
//
// The 36-byte owner path component is taken on faith, per spec.md
// §3/§4.2 and the original json_to_record(): it only needs to be
// exactly 36 bytes wide, not RFC4122-hyphen-shaped, so this only
// checks that it and the surrounding slashes are structurally present
// and that the namespace does not exceed MaxNamespaceLen bytes.
func namespace(key string) (string, error) {
	if len(key) <= namespaceOffset {
		return "", errors.New("invalid key layout: too short to contain a namespace")
	}
	if key[0] != '/' {
		return "", errors.New("invalid key layout: missing leading '/'")
	}
	if key[1+uuidKeyLen] != '/' {
		return "", errors.New("invalid key layout: missing '/' after owner uuid")
	}

	rest := key[namespaceOffset:]
	end := len(rest)
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		end = idx
	}
	ns := rest[:end]
	if len(ns) == 0 {
		return "", errors.New("invalid key layout: empty namespace")
	}
	if len(ns) > MaxNamespaceLen {
		return "", errors.Errorf("namespace %q exceeds max length %d", ns, MaxNamespaceLen)
	}
	return ns, nil
}
