package ctrl

import (
	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/mesh"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
)

type sentPackets struct {
	packets []Packet
}

func (s *sentPackets) Send(p Packet) error {
	s.packets = append(s.packets, p)
	return nil
}

func (s *sentPackets) Receive() (Packet, bool) {
	return Packet{}, false
}

func routerRef(node int, port noc.Port) noc.TableRef {
	return noc.TableRef{Node: node, Port: int(port)}
}

func niRef(node, table int) noc.TableRef {
	return noc.TableRef{Node: node, NI: true, Port: table}
}

var _ = Describe("ChannelManager", func() {
	var (
		sent *sentPackets
		mgr  *ChannelManager
	)

	BeforeEach(func() {
		sent = &sentPackets{}
		mgr = NewChannelManager(sent, 2, 2, 4, []int{2, 2, 2, 2})
	})

	It("should program both paths of a channel", func() {
		id, err := mgr.CreateChannel(0, 2, 2, true)

		Expect(err).NotTo(HaveOccurred())
		ch, ok := mgr.Channel(id)
		Expect(ok).To(BeTrue())
		Expect(ch.SrcEP).To(Equal(0))
		Expect(ch.DstEP).To(Equal(0))

		a, _ := mgr.Path(ch.Paths[0])
		b, _ := mgr.Path(ch.Paths[1])
		Expect(a.Nodes).To(Equal([]int{0, 2}))
		Expect(b.Nodes).To(Equal([]int{0, 1, 3, 2}))
		Expect(a.Slots).To(Equal([]int{0, 1}))
		Expect(b.Slots).To(Equal([]int{0, 1}))
		Expect(b.Channel).To(Equal(id))
		Expect(b.Index).To(Equal(1))

		Expect(mgr.Entry(niRef(0, 0), 1)).To(Equal(0))
		Expect(mgr.Entry(routerRef(0, noc.South), 0)).To(Equal(int(noc.Local0)))
		Expect(mgr.Entry(routerRef(2, noc.Local0), 1)).To(Equal(int(noc.North)))
		Expect(mgr.Entry(niRef(2, 2), 2)).To(Equal(0))
		Expect(mgr.Entry(routerRef(1, noc.South), 2)).To(Equal(int(noc.West)))
		Expect(mgr.Entry(routerRef(2, noc.Local1), 3)).To(Equal(int(noc.East)))
		Expect(mgr.Entry(niRef(2, 3), 0)).To(Equal(0))

		Expect(sent.packets).To(HaveLen(2*4 + 1 + 2*6 + 1))
		Expect(sent.packets[0]).To(Equal(NewEvent(NCMID, HostID, TDMConfig, 0, 1<<15)))
		Expect(sent.packets[8]).To(Equal(NewEvent(NCMID, HostID, TDMConfig, 1<<4, 1<<14)))
	})

	It("should list the free start slots of a path", func() {
		Expect(mgr.FreeSlots([]int{0, 2}, 0, 0, 0, 1)).To(Equal([]int{0}))
		Expect(mgr.FreeSlots([]int{0, 1, 3, 2}, 1, 0, 0, 4)).To(Equal([]int{0, 1, 2, 3}))

		_, err := mgr.CreateChannel(0, 2, 2, true)
		Expect(err).NotTo(HaveOccurred())

		Expect(mgr.FreeSlots([]int{0, 2}, 0, 0, 0, 2)).To(Equal([]int{2, 3}))
		Expect(mgr.FreeSlots([]int{0, 2}, 0, 0, 0, 3)).To(BeNil())
		Expect(mgr.FreeSlots([]int{0, 3}, 0, 0, 0, 1)).To(BeNil())
	})

	It("should allocate the next free slots and endpoints", func() {
		_, err := mgr.CreateChannel(0, 2, 2, true)
		Expect(err).NotTo(HaveOccurred())

		id, err := mgr.CreateChannel(0, 2, 2, true)
		Expect(err).NotTo(HaveOccurred())

		ch, _ := mgr.Channel(id)
		Expect(ch.SrcEP).To(Equal(1))
		Expect(ch.DstEP).To(Equal(1))

		a, _ := mgr.Path(ch.Paths[0])
		b, _ := mgr.Path(ch.Paths[1])
		Expect(a.Slots).To(Equal([]int{2, 3}))
		Expect(b.Slots).To(Equal([]int{2, 3}))

		_, err = mgr.CreateChannel(0, 2, 1, true)
		Expect(err).To(MatchError(ErrNoEndpoint))
		Expect(mgr.Channels()).To(Equal([]int{0, 1}))
	})

	It("should fail when the slots run out", func() {
		_, err := mgr.CreateChannel(0, 2, 3, true)
		Expect(err).NotTo(HaveOccurred())

		_, err = mgr.CreateChannel(0, 2, 2, true)
		Expect(err).To(MatchError(ErrNoSlots))

		_, err = mgr.CreateChannel(0, 2, 1, true)
		Expect(err).NotTo(HaveOccurred())
	})

	It("should release everything on delete", func() {
		id, _ := mgr.CreateChannel(0, 2, 2, true)
		sent.packets = nil

		Expect(mgr.DeleteChannel(id)).To(Succeed())

		Expect(mgr.Entry(routerRef(0, noc.South), 0)).To(Equal(noc.Empty))
		Expect(mgr.Entry(niRef(2, 3), 1)).To(Equal(noc.Empty))
		Expect(mgr.Channels()).To(BeEmpty())
		Expect(sent.packets[0]).To(Equal(NewEvent(NCMID, HostID, TDMConfig, 0, 1<<14)))

		id, err := mgr.CreateChannel(0, 2, 2, true)
		Expect(err).NotTo(HaveOccurred())
		ch, _ := mgr.Channel(id)
		Expect(ch.SrcEP).To(Equal(0))

		Expect(mgr.DeleteChannel(42)).To(MatchError(ErrNoChannel))
	})

	It("should only accept disjoint alternatives", func() {
		id, err := mgr.CreateChannel(0, 3, 1, false)
		Expect(err).NotTo(HaveOccurred())

		Expect(mgr.AddPath(id, 0, []int{0, 1, 3})).To(Succeed())
		Expect(mgr.AddPath(id, 0, []int{0, 2, 3})).To(MatchError(ErrPathInUse))
		Expect(mgr.AddPath(id, 1, []int{0, 1, 3})).To(MatchError(ErrNotDisjoint))
		Expect(mgr.AddPath(id, 1, []int{1, 3})).To(MatchError(ErrInvalidPath))
		Expect(mgr.AddPath(id, 1, []int{0, 3})).To(MatchError(ErrInvalidPath))
		Expect(mgr.AddPath(id, 1, []int{0, 2, 3})).To(Succeed())

		Expect(mgr.RemovePath(id, 1)).To(Succeed())
		Expect(mgr.Entry(routerRef(0, noc.South), 0)).To(Equal(noc.Empty))
		Expect(mgr.AddPath(id, 1, []int{0, 2, 3})).To(Succeed())
	})

	It("should program raw paths without bookkeeping", func() {
		Expect(mgr.ConfigureRaw([]int{1, 0}, []int{3}, 1, 0, 1)).To(Succeed())

		Expect(mgr.Entry(niRef(1, 1), 3)).To(Equal(1))
		Expect(mgr.Entry(routerRef(1, noc.West), 3)).To(Equal(int(noc.Local1)))
		Expect(mgr.Entry(niRef(0, 3), 1)).To(Equal(0))
		Expect(mgr.Channels()).To(BeEmpty())

		Expect(mgr.ConfigureRaw([]int{1, 2}, []int{0}, 0, 0, 0)).
			To(MatchError(ErrInvalidPath))
	})

	It("should accumulate the fault vector", func() {
		Expect(mgr.SetFault(1, 2, true)).To(Succeed())
		Expect(mgr.SetFault(1, 6, true)).To(Succeed())
		Expect(mgr.SetFault(1, 2, false)).To(Succeed())

		Expect(sent.packets[1]).To(Equal(NewEvent(NCMID, HostID, FaultConfig, 1<<8|0x44)))
		Expect(sent.packets[2]).To(Equal(NewEvent(NCMID, HostID, FaultConfig, 1<<8|0x40)))
		Expect(mgr.SetFault(7, 0, true)).To(MatchError(noc.ErrNoSuchNode))
	})

	It("should wrap the other control events", func() {
		Expect(mgr.SetWindow(0x10002)).To(Succeed())
		Expect(mgr.ClearFaults(3)).To(Succeed())
		Expect(mgr.SetPort(2, noc.East, true)).To(Succeed())
		Expect(mgr.SetEndpoint(1, true, 0, false)).To(Succeed())

		Expect(sent.packets).To(Equal([]Packet{
			NewEvent(NCMID, HostID, ClkConfig, 2, 1),
			NewEvent(NCMID, HostID, FaultClear, 3),
			NewEvent(NCMID, HostID, LinkConfig, 1<<4|uint16(noc.East), 2),
			NewEvent(NCMID, HostID, EPConfig, 1<<8, 1),
		}))
	})

	It("should clear the injection of every node on reset", func() {
		_, _ = mgr.CreateChannel(0, 2, 2, true)
		sent.packets = nil

		Expect(mgr.Reset()).To(Succeed())

		Expect(sent.packets).To(HaveLen(4))
		Expect(sent.packets[3]).To(Equal(NewEvent(NCMID, HostID, FaultConfig, 3<<8)))
		Expect(mgr.Channels()).To(BeEmpty())
		Expect(mgr.Entry(routerRef(0, noc.South), 0)).To(Equal(noc.Empty))
	})
})

var _ = Describe("ChannelManager on a fabric", func() {
	var (
		engine sim.Engine
		fabric *mesh.Fabric
		mgr    *ChannelManager
	)

	BeforeEach(func() {
		engine = sim.NewSerialEngine()
		fabric = mesh.NewBuilder().
			WithEngine(engine).
			WithWidth(2).
			WithHeight(2).
			WithSlotTableDepth(4).
			WithMaxMsgLen(4).
			WithResyncThreshold(2).
			Build("NoC")

		ncm := NewBuilder().
			WithEngine(engine).
			WithFabric(fabric).
			Build("NCM")

		client := NewLocalClient(HostID)
		client.Register(ncm)

		mgr = NewChannelManager(client, 2, 2, 4, []int{2, 2, 2, 2})
	})

	It("should configure the fabric through the NCM", func() {
		_, err := mgr.CreateChannel(0, 2, 2, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(engine.Run()).To(Succeed())

		cfg := fabric.Config()
		Expect(cfg.RouterTable(0, noc.South).Entries()).
			To(Equal([]int{int(noc.Local0), int(noc.Local0), noc.Empty, noc.Empty}))
		Expect(cfg.NIInTable(2, 1).Entries()).
			To(Equal([]int{0, 0, noc.Empty, noc.Empty}))
		Expect(cfg.EndpointLinkEnabled(0, 0, 0)).To(BeTrue())
		Expect(cfg.EndpointLinkEnabled(0, 0, 1)).To(BeTrue())

		data := []uint32{0x501, 0x502, 0x503, 0x504, 0x505, 0x506}
		addr := ni.TDMEndpointAddr(0, ni.RegData)
		Expect(fabric.NI(0).Write(addr, uint32(len(data)))).To(Succeed())
		for _, w := range data {
			Expect(fabric.NI(0).Write(addr, w)).To(Succeed())
		}

		fabric.RunFor(40)
		Expect(engine.Run()).To(Succeed())

		var got []uint32
		for len(got) < len(data) {
			size, err := fabric.NI(2).Read(addr)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).NotTo(BeZero())

			for i := uint32(0); i < size; i++ {
				w, err := fabric.NI(2).Read(addr)
				Expect(err).NotTo(HaveOccurred())
				got = append(got, w)
			}
		}

		Expect(cmp.Diff(data, got)).To(BeEmpty())
	})
})
