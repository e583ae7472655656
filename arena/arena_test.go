package arena_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/khalfella/storage-reduce1/arena"
)

type point struct {
	X, Y int64
}

var _ = Describe("Arena", func() {
	var dir string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "arena-test-")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(dir)
	})

	It("creates a scratch file named after the worker index", func() {
		a, err := arena.New(dir, 3, 4096)
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		_, err = os.Stat(filepath.Join(dir, "reducer_thread_3"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("hands out zeroed, stable-address structs via Alloc", func() {
		a, err := arena.New(dir, 0, 4096)
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		p := arena.Alloc[point](a)
		Expect(p.X).To(Equal(int64(0)))
		Expect(p.Y).To(Equal(int64(0)))

		p.X, p.Y = 7, 11
		q := arena.Alloc[point](a)
		Expect(q).NotTo(Equal(p))
		Expect(p.X).To(Equal(int64(7)), "earlier allocation must not move or be overwritten")
	})

	It("round-trips a string through AllocString", func() {
		a, err := arena.New(dir, 0, 4096)
		Expect(err).NotTo(HaveOccurred())
		defer a.Close()

		s := a.AllocString("639e843a-6519-479e-b8d8-147ebf8f5c1a")
		Expect(s).To(Equal("639e843a-6519-479e-b8d8-147ebf8f5c1a"))
	})

	It("removes the scratch file on Remove", func() {
		a, err := arena.New(dir, 5, 4096)
		Expect(err).NotTo(HaveOccurred())

		path := filepath.Join(dir, "reducer_thread_5")
		_, err = os.Stat(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.Remove()).To(Succeed())
		_, err = os.Stat(path)
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
