package mesh

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hybridnoc/noc"
)

var _ = Describe("Topology", func() {
	It("should enable only the ports that have a neighbor", func() {
		Expect(ActiveLinks(0, 0, 2, 2)).To(Equal(uint8(1<<noc.East | 1<<noc.South)))
		Expect(ActiveLinks(1, 1, 2, 2)).To(Equal(uint8(1<<noc.North | 1<<noc.West)))
		Expect(ActiveLinks(1, 1, 3, 3)).To(Equal(uint8(0xf)))
		Expect(ActiveLinks(0, 0, 1, 1)).To(BeZero())
	})

	It("should route X first", func() {
		Expect(XYTable(0, 0, 2, 2)).To(Equal([]noc.Port{
			noc.NoPort, noc.East, noc.South, noc.East,
		}))
		Expect(XYTable(1, 1, 2, 2)).To(Equal([]noc.Port{
			noc.West, noc.North, noc.West, noc.NoPort,
		}))
	})

	It("should find neighbors inside the mesh only", func() {
		Expect(neighbor(0, noc.East, 2, 2)).To(Equal(1))
		Expect(neighbor(0, noc.South, 2, 2)).To(Equal(2))
		Expect(neighbor(0, noc.North, 2, 2)).To(Equal(-1))
		Expect(neighbor(3, noc.West, 2, 2)).To(Equal(2))
		Expect(neighbor(3, noc.East, 2, 2)).To(Equal(-1))
	})
})
