package reduce

import (
	"bufio"
	"io"
	"strconv"
)

// writeOutput prints one JSON line per (owner, namespace) pair in
// merged, in owner-sorted, namespace-configured order, matching the
// fixed six-field schema from spec.md §6. bytes is emitted as a
// quoted decimal string, not a JSON number, so a 64-bit byte count
// round-trips exactly through JSON parsers that decode numbers as
// float64.
func writeOutput(w io.Writer, merged *Worker) error {
	bw := bufio.NewWriterSize(w, 64*1024)

	namespaces := merged.Namespaces()
	for _, own := range merged.Owners() {
		for n, ns := range namespaces {
			bw.WriteString(`{"owner":"`)
			bw.WriteString(own.UUID)
			bw.WriteString(`","namespace":"`)
			bw.WriteString(ns)
			bw.WriteString(`","directories":`)
			bw.WriteString(strconv.FormatUint(own.Dirs[n], 10))
			bw.WriteString(`,"keys":`)
			bw.WriteString(strconv.FormatUint(own.Keys[n], 10))
			bw.WriteString(`,"objects":`)
			bw.WriteString(strconv.FormatUint(own.Objs[n], 10))
			bw.WriteString(`,"bytes":"`)
			bw.WriteString(strconv.FormatUint(own.Bytes[n], 10))
			bw.WriteString("\"}\n")
		}
	}

	return bw.Flush()
}
