package reduce

import (
	"bufio"
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/khalfella/storage-reduce1/arena"
	"github.com/khalfella/storage-reduce1/linebuf"
	"github.com/khalfella/storage-reduce1/manifest"
	"github.com/khalfella/storage-reduce1/metrics"
	"github.com/khalfella/storage-reduce1/rcos"
	"github.com/khalfella/storage-reduce1/rlog"
)

// maxLineLen is the initial capacity of each pooled line buffer. It is
// not a limit: a longer input line is still read in full, and the
// buffer that receives it grows to hold it.
const maxLineLen = 1 << 20

// Config holds the driver's run parameters, equivalent to the -t/-n/-d/-m
// flags of the process this reducer replaces.
type Config struct {
	Workers    int
	Namespaces []string
	ScratchDir string
	ArenaBytes int64
}

// Driver owns one run's arenas and workers from scan through merge to
// output.
type Driver struct {
	cfg     Config
	arenas  []*arena.Arena
	workers []*Worker
	metrics *metrics.Counters
}

// NewDriver validates cfg and allocates one arena per worker.
func NewDriver(cfg Config) (*Driver, error) {
	if !rcos.IsPowerOfTwo(cfg.Workers) {
		return nil, errors.Errorf("worker count %d is not a power of two", cfg.Workers)
	}
	if len(cfg.Namespaces) == 0 || len(cfg.Namespaces) > MaxNamespaces {
		return nil, errors.Errorf("namespace count %d is out of range (1-%d)", len(cfg.Namespaces), MaxNamespaces)
	}

	d := &Driver{cfg: cfg, metrics: metrics.New()}
	d.arenas = make([]*arena.Arena, cfg.Workers)
	d.workers = make([]*Worker, cfg.Workers)

	for i := 0; i < cfg.Workers; i++ {
		a, err := arena.New(cfg.ScratchDir, i, cfg.ArenaBytes)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to initialize mapped memory idx = %d", i)
		}
		d.arenas[i] = a
		d.workers[i] = NewWorker(i, a, cfg.Namespaces)
	}
	return d, nil
}

// Close releases every worker's arena and its backing scratch file.
func (d *Driver) Close() {
	for _, a := range d.arenas {
		if err := a.Remove(); err != nil {
			rlog.Warnf("failed to remove scratch file: %v", err)
		}
	}
}

// Run scans r line by line, fans each line out to the worker pool,
// merges the workers in a tournament, and writes the result to w.
// A malformed input record is fatal (exit code 2), per spec.md §7.3 -
// there is no notion of skipping a bad line and continuing.
func (d *Driver) Run(ctx context.Context, r io.Reader, w io.Writer) error {
	pool := linebuf.New(2*d.cfg.Workers, maxLineLen)

	g, _ := errgroup.WithContext(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		worker := d.workers[i]
		g.Go(func() error {
			return d.scanLoop(worker, pool)
		})
	}

	feedErr := d.feed(r, pool)
	waitErr := g.Wait()
	if feedErr != nil {
		return errors.Wrap(feedErr, "failed to read input")
	}
	if waitErr != nil {
		return waitErr
	}

	for _, worker := range d.workers {
		worker.Finalize()
	}

	merged, err := d.tournament(ctx)
	if err != nil {
		return err
	}

	if err := writeOutput(w, merged); err != nil {
		return errors.Wrap(err, "failed to write output")
	}
	return nil
}

// feed reads newline-delimited records from r and publishes them on
// pool's active list, one free buffer per line, followed by one Done
// sentinel per worker so every scan goroutine observes end of input -
// even when the read loop stops early on error, so a read failure
// never leaves a worker goroutine blocked in pool.GetActive() forever.
func (d *Driver) feed(r io.Reader, pool *linebuf.Pool) error {
	br := bufio.NewReaderSize(r, 1<<20)
	readErr := d.readLines(br, pool)

	for i := 0; i < d.cfg.Workers; i++ {
		sentinel := pool.GetFree()
		sentinel.Done = true
		pool.PutActive(sentinel)
	}
	return readErr
}

func (d *Driver) readLines(br *bufio.Reader, pool *linebuf.Pool) error {
	for {
		buf := pool.GetFree()
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			line = line[:len(line)-1]
		}

		// A genuinely empty line - including true EOF, which
		// ReadBytes reports as a zero-length read - ends input
		// processing early, per spec.md §6; it is not fed to a
		// worker as a (malformed) record.
		if len(line) == 0 {
			pool.PutFree(buf)
			return nil
		}

		buf.Data = append(buf.Data[:0], line...)
		d.metrics.LinesRead.Inc()
		pool.PutActive(buf)

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

// scanLoop drains pool's active list into worker until it receives
// the Done sentinel meant for it.
func (d *Driver) scanLoop(worker *Worker, pool *linebuf.Pool) error {
	for {
		buf := pool.GetActive()
		if buf.Done {
			pool.PutFree(buf)
			return nil
		}

		rec, err := manifest.Parse(buf.Data)
		pool.PutFree(buf)
		if err != nil {
			d.metrics.ParseErrors.Inc()
			rcos.ExitLogf(rcos.ExitResource, "%v", err)
		}
		worker.OnRecord(rec)
	}
}

// tournament merges d.workers pairwise, halving the active count each
// round, until one worker holds the complete result.
func (d *Driver) tournament(ctx context.Context) (*Worker, error) {
	active := d.workers
	for len(active) > 1 {
		half := len(active) / 2
		g, _ := errgroup.WithContext(ctx)
		for i := 0; i < half; i++ {
			dst, src := active[i], active[i+half]
			g.Go(func() error {
				Merge(dst, src)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		d.metrics.MergeRounds.Inc()
		active = active[:half]
	}

	for _, own := range active[0].Owners() {
		for n := 0; n < MaxNamespaces; n++ {
			d.metrics.BytesSeen.Add(float64(own.Bytes[n]))
		}
	}
	return active[0], nil
}

// DumpMetrics writes the run's counters to w.
func (d *Driver) DumpMetrics(w io.Writer) error {
	return d.metrics.Dump(w)
}
