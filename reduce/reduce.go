// Package reduce implements the per-worker aggregation and the
// tournament merge described in spec.md §4.4-4.5: each worker scans a
// disjoint slice of input lines into a sorted owner/object index, and
// pairs of workers are merged pairwise in parallel until one index
// remains.
//
// Owner and Object are allocated out of an arena and never touch the
// garbage collector after creation; they must never hold a pointer,
// slice, or map that refers to ordinary Go-heap memory, since the
// collector does not trace into arena-backed regions. The maps and
// slices used to index them during a scan live on the Go heap in
// Worker itself and merely point at arena memory, which is safe in
// the other direction.
/*
 * Grounded on rjob_process_record/rjob_merge_owners/rjob_merge in the
 * original khalfella/storage-reduce1 reducer.
 */
package reduce

import (
	"sort"

	"github.com/khalfella/storage-reduce1/arena"
	"github.com/khalfella/storage-reduce1/manifest"
)

// MaxNamespaces bounds the number of namespaces a single run tracks,
// per spec.md §5.1.
const MaxNamespaces = 6

// MinObjectSize is the floor applied to an object's reported length
// before it is multiplied by its replica count (spec.md §4.4).
const MinObjectSize = 131072

// Object is one deduplicated object under an Owner, in one namespace.
// Allocated from the owning worker's arena; never mutated after the
// worker that allocated it records its first occurrence, except by a
// later merge moving it under a different Owner.
type Object struct {
	UUID string
	Size uint64
	NSID int
}

// Owner aggregates directory/object/key/byte counters per namespace
// for one owner uuid. Allocated from the owning worker's arena.
type Owner struct {
	UUID  string
	Dirs  [MaxNamespaces]uint64
	Objs  [MaxNamespaces]uint64
	Keys  [MaxNamespaces]uint64
	Bytes [MaxNamespaces]uint64
}

// Worker scans a disjoint share of input records into a sorted index
// of owners and, within each owner, a sorted index of objects. A
// Worker is single-threaded: the scanning goroutine that owns it is
// the only writer, and it is the unit of work a tournament merge
// round operates on.
type Worker struct {
	idx        int
	arena      *arena.Arena
	namespaces []string

	owners    map[string]*Owner
	objects   map[*Owner]map[string]*Object
	ownerList []*Owner             // sorted by UUID after Finalize
	objLists  map[*Owner][]*Object // sorted by UUID after Finalize
}

// NewWorker creates a worker backed by a, indexing only records whose
// namespace is in namespaces.
func NewWorker(idx int, a *arena.Arena, namespaces []string) *Worker {
	return &Worker{
		idx:        idx,
		arena:      a,
		namespaces: namespaces,
		owners:     make(map[string]*Owner),
		objects:    make(map[*Owner]map[string]*Object),
	}
}

// nsid returns the index of ns in the worker's namespace list, or -1
// if the record's namespace is not tracked this run.
func (w *Worker) nsid(ns string) int {
	for i, n := range w.namespaces {
		if n == ns {
			return i
		}
	}
	return -1
}

// OnRecord folds one parsed record into the worker's running totals.
// Records in namespaces outside the configured set are silently
// skipped, per spec.md §4.4.
func (w *Worker) OnRecord(rec manifest.Record) {
	nsid := w.nsid(rec.Namespace)
	if nsid == -1 {
		return
	}

	own, ok := w.owners[rec.Owner]
	if !ok {
		own = arena.Alloc[Owner](w.arena)
		own.UUID = w.arena.AllocString(rec.Owner)
		w.owners[rec.Owner] = own
		w.objects[own] = make(map[string]*Object)
	}

	if rec.Type == manifest.Directory {
		own.Dirs[nsid]++
		return
	}

	objs := w.objects[own]
	if _, ok := objs[rec.Object]; !ok {
		obj := arena.Alloc[Object](w.arena)
		obj.UUID = w.arena.AllocString(rec.Object)
		obj.NSID = nsid
		size := rec.Length
		if size < MinObjectSize {
			size = MinObjectSize
		}
		obj.Size = size * uint64(rec.Sharks)
		objs[rec.Object] = obj

		own.Objs[nsid]++
		own.Bytes[nsid] += obj.Size
	}

	own.Keys[nsid]++
}

// Finalize flattens the worker's scan-time maps into sorted slices,
// freeing the maps. A worker must be finalized exactly once, after
// its scanning goroutine has stopped and before it takes part in any
// merge.
func (w *Worker) Finalize() {
	w.ownerList = make([]*Owner, 0, len(w.owners))
	for _, own := range w.owners {
		w.ownerList = append(w.ownerList, own)
	}
	sort.Slice(w.ownerList, func(i, j int) bool {
		return w.ownerList[i].UUID < w.ownerList[j].UUID
	})

	w.objLists = make(map[*Owner][]*Object, len(w.owners))
	for own, objs := range w.objects {
		list := make([]*Object, 0, len(objs))
		for _, obj := range objs {
			list = append(list, obj)
		}
		sort.Slice(list, func(i, j int) bool {
			return list[i].UUID < list[j].UUID
		})
		w.objLists[own] = list
	}

	w.owners = nil
	w.objects = nil
}

// Owners returns the worker's sorted owner list. Valid only after
// Finalize.
func (w *Worker) Owners() []*Owner { return w.ownerList }

// ObjectsOf returns the sorted object list for own. Valid only after
// Finalize.
func (w *Worker) ObjectsOf(own *Owner) []*Object { return w.objLists[own] }

// Namespaces returns the namespace list this worker was configured
// with, in display order.
func (w *Worker) Namespaces() []string { return w.namespaces }
