package reduce_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/khalfella/storage-reduce1/arena"
	"github.com/khalfella/storage-reduce1/manifest"
	"github.com/khalfella/storage-reduce1/reduce"
)

var _ = Describe("Merge", func() {
	var (
		a1, a2 *arena.Arena
		w1, w2 *reduce.Worker
	)

	BeforeEach(func() {
		a1 = newTestArena(0)
		a2 = newTestArena(1)
		w1 = reduce.NewWorker(0, a1, []string{"stor"})
		w2 = reduce.NewWorker(1, a2, []string{"stor"})
	})

	AfterEach(func() {
		a1.Remove()
		a2.Remove()
	})

	It("unions owners that appear in only one worker", func() {
		w1.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Directory})
		w2.OnRecord(manifest.Record{Owner: "u2", Namespace: "stor", Type: manifest.Directory})
		w1.Finalize()
		w2.Finalize()

		reduce.Merge(w1, w2)

		owners := w1.Owners()
		Expect(owners).To(HaveLen(2))
		Expect(owners[0].UUID).To(Equal("u1"))
		Expect(owners[1].UUID).To(Equal("u2"))
	})

	It("sums directory counts for an owner seen by both workers", func() {
		w1.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Directory})
		w2.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Directory})
		w2.OnRecord(manifest.Record{Owner: "u1", Namespace: "stor", Type: manifest.Directory})
		w1.Finalize()
		w2.Finalize()

		reduce.Merge(w1, w2)

		owners := w1.Owners()
		Expect(owners).To(HaveLen(1))
		Expect(owners[0].Dirs[0]).To(Equal(uint64(3)))
	})

	It("counts an object split across two workers once, with one key per occurrence", func() {
		rec := manifest.Record{
			Owner: "u1", Namespace: "stor", Type: manifest.Object,
			Object: "o1", Sharks: 2, Length: 1 << 20,
		}
		w1.OnRecord(rec)
		w2.OnRecord(rec)
		w1.Finalize()
		w2.Finalize()

		reduce.Merge(w1, w2)

		owners := w1.Owners()
		Expect(owners).To(HaveLen(1))
		own := owners[0]
		Expect(own.Objs[0]).To(Equal(uint64(1)), "the object must not be double-counted")
		Expect(own.Keys[0]).To(Equal(uint64(2)), "each worker's occurrence still counts as a key")
		Expect(own.Bytes[0]).To(Equal(uint64(2 << 20)), "bytes must be counted exactly once for the object")

		objs := w1.ObjectsOf(own)
		Expect(objs).To(HaveLen(1))
	})

	It("moves an object seen only by the other worker in full", func() {
		w1.OnRecord(manifest.Record{
			Owner: "u1", Namespace: "stor", Type: manifest.Object,
			Object: "a", Sharks: 1, Length: 1 << 20,
		})
		w2.OnRecord(manifest.Record{
			Owner: "u1", Namespace: "stor", Type: manifest.Object,
			Object: "b", Sharks: 1, Length: 1 << 20,
		})
		w1.Finalize()
		w2.Finalize()

		reduce.Merge(w1, w2)

		owners := w1.Owners()
		own := owners[0]
		Expect(own.Objs[0]).To(Equal(uint64(2)))
		Expect(own.Keys[0]).To(Equal(uint64(2)))
		Expect(own.Bytes[0]).To(Equal(uint64(2 << 20)))

		objs := w1.ObjectsOf(own)
		Expect(objs).To(HaveLen(2))
		Expect(objs[0].UUID).To(Equal("a"))
		Expect(objs[1].UUID).To(Equal("b"))
	})
})
