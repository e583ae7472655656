package reduce_test

import (
	"os"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/khalfella/storage-reduce1/arena"
	"github.com/khalfella/storage-reduce1/manifest"
	"github.com/khalfella/storage-reduce1/reduce"
)

func newTestArena(idx int) *arena.Arena {
	dir, err := os.MkdirTemp("", "reduce-test-")
	Expect(err).NotTo(HaveOccurred())
	a, err := arena.New(dir, idx, 1<<20)
	Expect(err).NotTo(HaveOccurred())
	return a
}

var _ = Describe("Worker", func() {
	var (
		a *arena.Arena
		w *reduce.Worker
	)

	BeforeEach(func() {
		a = newTestArena(0)
		w = reduce.NewWorker(0, a, []string{"stor", "jobs"})
	})

	AfterEach(func() {
		a.Remove()
	})

	It("skips records outside the configured namespaces", func() {
		w.OnRecord(manifest.Record{Owner: "u1", Namespace: "reports", Type: manifest.Directory})
		w.Finalize()
		Expect(w.Owners()).To(BeEmpty())
	})

	It("counts a directory once per record", func() {
		w.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Directory})
		w.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Directory})
		w.Finalize()

		owners := w.Owners()
		Expect(owners).To(HaveLen(1))
		Expect(owners[0].UUID).To(Equal("u1"))
		Expect(owners[0].Dirs[0]).To(Equal(uint64(2)))
	})

	It("deduplicates repeated keys for the same object", func() {
		rec := manifest.Record{
			Owner: "u1", Namespace: "stor", Type: manifest.Object,
			Object: "o1", Sharks: 3, Length: 1024,
		}
		w.OnRecord(rec)
		w.OnRecord(rec)
		w.Finalize()

		own := w.Owners()[0]
		Expect(own.Objs[0]).To(Equal(uint64(1)), "same object must be counted once")
		Expect(own.Keys[0]).To(Equal(uint64(2)), "each key occurrence is counted")
		Expect(own.Bytes[0]).To(Equal(uint64(reduce.MinObjectSize) * 3))
	})

	It("floors object size at MinObjectSize before multiplying by replica count", func() {
		w.OnRecord(manifest.Record{
			Owner: "u1", Namespace: "stor", Type: manifest.Object,
			Object: "o1", Sharks: 2, Length: 10,
		})
		w.Finalize()

		own := w.Owners()[0]
		Expect(own.Bytes[0]).To(Equal(uint64(reduce.MinObjectSize) * 2))
	})

	It("does not floor object sizes already above MinObjectSize", func() {
		w.OnRecord(manifest.Record{
			Owner: "u1", Namespace: "stor", Type: manifest.Object,
			Object: "o1", Sharks: 1, Length: 1 << 20,
		})
		w.Finalize()

		own := w.Owners()[0]
		Expect(own.Bytes[0]).To(Equal(uint64(1 << 20)))
	})

	It("sorts owners and their objects by uuid after Finalize", func() {
		w.OnRecord(manifest.Record{Owner: "u2", Namespace: "stor", Type: manifest.Object, Object: "z", Sharks: 1, Length: 1})
		w.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Object, Object: "b", Sharks: 1, Length: 1})
		w.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Object, Object: "a", Sharks: 1, Length: 1})
		w.Finalize()

		owners := w.Owners()
		Expect(owners[0].UUID).To(Equal("u1"))
		Expect(owners[1].UUID).To(Equal("u2"))

		objs := w.ObjectsOf(owners[0])
		Expect(objs[0].UUID).To(Equal("a"))
		Expect(objs[1].UUID).To(Equal("b"))
	})
})
