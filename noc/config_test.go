package noc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FabricConfig", func() {
	var cfg *FabricConfig

	BeforeEach(func() {
		cfg = NewFabricConfig(4, 2, 3, 4, func(int) uint8 { return 0x6 })
	})

	It("should start empty", func() {
		Expect(cfg.Version()).To(Equal(uint64(0)))
		Expect(cfg.RouterTable(0, South).Entries()).
			To(Equal([]int{Empty, Empty, Empty, Empty}))
		Expect(cfg.PortEnabled(0, North)).To(BeFalse())
		Expect(cfg.PortEnabled(0, East)).To(BeTrue())
		Expect(cfg.PortEnabled(0, Local1)).To(BeTrue())
	})

	It("should apply staged writes on commit only", func() {
		ref := TableRef{Node: 0, Port: int(South)}
		Expect(cfg.Stage(SlotWrite(ref, 1, int(Local0)))).To(Succeed())
		Expect(cfg.RouterTable(0, South).Entry(1)).To(Equal(Empty))

		Expect(cfg.Commit()).To(BeTrue())
		Expect(cfg.RouterTable(0, South).Entry(1)).To(Equal(int(Local0)))
		Expect(cfg.Version()).To(Equal(uint64(1)))
		Expect(cfg.Commit()).To(BeFalse())
	})

	It("should select by cycle modulo depth", func() {
		ref := TableRef{Node: 2, NI: true, Port: 0}
		for s, v := range []int{0, 0, 1, 1} {
			Expect(cfg.Stage(SlotWrite(ref, s, v))).To(Succeed())
		}
		cfg.Commit()

		t := cfg.NIOutTable(2, 0)
		Expect(t.Select(5)).To(Equal(0))
		Expect(t.Select(6)).To(Equal(1))
	})

	It("should address NI in tables after the out tables", func() {
		t, err := cfg.Table(TableRef{Node: 1, NI: true, Port: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(t).To(BeIdenticalTo(cfg.NIInTable(1, 1)))
	})

	It("should reject misuse", func() {
		Expect(cfg.Stage(SlotWrite(TableRef{Node: 9}, 0, 0))).
			To(MatchError(ErrNoSuchNode))
		Expect(cfg.Stage(SlotWrite(TableRef{Node: 0, NI: true, Port: 4}, 0, 0))).
			To(MatchError(ErrNoSuchTable))
		Expect(cfg.Stage(SlotWrite(TableRef{Node: 0}, 4, 0))).
			To(MatchError(ErrSlotOutOfRange))
		Expect(cfg.Stage(SlotWrite(TableRef{Node: 0, NI: true}, 0, 3))).
			To(MatchError(ErrBadSelector))
		Expect(cfg.Stage(EndpointLinkWrite(0, 0, 2, true))).
			To(MatchError(ErrNoSuchLink))
		Expect(cfg.Stage(PortEnableWrite(0, Port(6), true))).
			To(MatchError(ErrNoSuchPort))
		Expect(cfg.Pending()).To(Equal(0))
	})

	It("should track fault injection per link", func() {
		Expect(cfg.Stage(FaultVectorWrite(3, 1<<2|1<<7))).To(Succeed())
		cfg.Commit()

		Expect(cfg.FaultInjected(3, South)).To(BeTrue())
		Expect(cfg.FaultInjected(3, East)).To(BeFalse())
		Expect(cfg.NILinkFaultInjected(3, 1)).To(BeTrue())
		Expect(cfg.NILinkFaultInjected(3, 0)).To(BeFalse())
	})
})
