// Package metrics tracks the handful of process-lifetime counters a
// reducer run accumulates - lines read, parse errors, merge rounds,
// and bytes accounted - and dumps them in Prometheus text exposition
// format at exit. There is no long-lived scrape endpoint: this is a
// batch tool, so the counters only need to survive one run and print
// once.
/*
 * Grounded on aistore's use of prometheus/client_golang in its stats
 * package, trimmed to a fixed counter set with no registry server.
 */
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Counters holds one run's worth of reducer counters.
type Counters struct {
	reg *prometheus.Registry

	LinesRead   prometheus.Counter
	ParseErrors prometheus.Counter
	MergeRounds prometheus.Counter
	BytesSeen   prometheus.Counter
}

// New registers a fresh counter set in its own registry, so counters
// from unrelated imports of this package (e.g. in tests) never mix.
func New() *Counters {
	reg := prometheus.NewRegistry()

	c := &Counters{
		reg: reg,
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reducer_lines_read_total",
			Help: "Input lines read from stdin.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reducer_parse_errors_total",
			Help: "Input lines that failed to parse as a manifest record.",
		}),
		MergeRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reducer_merge_rounds_total",
			Help: "Tournament merge rounds completed.",
		}),
		BytesSeen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reducer_bytes_accounted_total",
			Help: "Sum of accounted object bytes across all owners and namespaces.",
		}),
	}
	reg.MustRegister(c.LinesRead, c.ParseErrors, c.MergeRounds, c.BytesSeen)
	return c
}

// Dump writes every registered counter to w in Prometheus text
// exposition format.
func (c *Counters) Dump(w io.Writer) error {
	mfs, err := c.reg.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
