package ni

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/hybridnoc/noc"
)

func beFlit(data uint32, last bool) noc.Link {
	return noc.Link{Flit: noc.NewFlit(data, last, noc.ClassBE), Valid: true}
}

var _ = Describe("BE endpoint", func() {
	var (
		cfg   *noc.FabricConfig
		n     *NI
		cycle uint64
	)

	step := func(in ...noc.Link) []noc.Link {
		links := make([]noc.Link, n.NumLinks())
		copy(links, in)
		out := n.Step(cycle, cfg, links)
		cycle++
		return out
	}

	BeforeEach(func() {
		cycle = 0
		cfg = noc.NewFabricConfig(4, 2, 2, 4, func(int) uint8 { return 0 })
		n = NewBuilder().
			WithNode(0, noc.Coord{}).
			WithMeshSize(2, 2).
			WithMaxPacketLen(3).
			WithPacketQueueSize(2).
			Build("NI")
		n.SetCredits(0, 4)
		n.SetCredits(1, 4)
	})

	It("should loop a packet back to itself", func() {
		lb := newLoopback(n, cfg)
		rec := newRecorder()
		n.AcceptHook(rec)
		h := noc.NewDistributedHeader(1, 0, 0, 0).Encode()

		lb.write(BEEndpointAddr(0, RegData), h, 0xa, 0xb)
		lb.run(8)

		Expect(lb.read(BEEndpointAddr(0, RegData))).To(Equal([]uint32{h, 0xa, 0xb}))
		Expect(rec.items[noc.HookPosBESent]).To(ConsistOf(noc.TrafficEvent{
			Node: 0, Endpoint: 0, Peer: 0, Class: noc.ClassBE, Cycle: 0,
		}))
		Expect(rec.items[noc.HookPosBEReceived]).To(ConsistOf(noc.TrafficEvent{
			Node: 0, Endpoint: 0, Peer: 0, Class: noc.ClassBE, Cycle: 3,
		}))
		Expect(n.Credits(0)).To(Equal(4))
	})

	It("should stall on missing credits", func() {
		n.SetCredits(0, 1)
		h := noc.NewDistributedHeader(1, 3, 0, 0).Encode()
		Expect(n.Write(BEEndpointAddr(0, RegData), 2)).To(Succeed())
		Expect(n.Write(BEEndpointAddr(0, RegData), h)).To(Succeed())
		Expect(n.Write(BEEndpointAddr(0, RegData), 0xa)).To(Succeed())

		Expect(step()[0].Valid).To(BeTrue())
		Expect(step()[0].Valid).To(BeFalse())

		out := step(noc.Link{Credit: true})
		Expect(out[0].Valid).To(BeTrue())
		Expect(out[0].Flit.Data).To(Equal(uint32(0xa)))
	})

	Context("control handshake", func() {
		It("should learn that a tile is ready", func() {
			lb := newLoopback(n, cfg)
			req := noc.NewDistributedHeader(noc.ControlClass, 0, 0, 0)
			req.Specific = noc.ControlRequest

			lb.write(BEEndpointAddr(0, RegData), req.Encode())
			lb.run(6)

			Expect(n.TileReady(0, 0)).To(BeTrue())
			Expect(n.Read(ReadyAddr(0, 0))).To(Equal(uint32(1)))
			Expect(lb.read(BEEndpointAddr(0, RegData))).To(BeEmpty())
		})

		It("should answer with swapped tile ids", func() {
			req := noc.NewDistributedHeader(noc.ControlClass, 0, 3, 1)

			out := step(noc.Link{}, beFlit(req.Encode(), true))

			Expect(out[1].Valid).To(BeTrue())
			Expect(out[1].Flit.Last).To(BeTrue())
			reply := noc.DecodeHeader(out[1].Flit.Data, noc.DistributedRouting)
			Expect(reply.IsControl()).To(BeTrue())
			Expect(reply.Specific).To(Equal(noc.ControlReply))
			Expect(reply.Dst).To(Equal(3))
			Expect(reply.Src).To(Equal(0))
			Expect(reply.Link).To(Equal(1))
		})

		It("should not put a reply inside a packet", func() {
			addr := BEEndpointAddr(0, RegData)
			h := noc.NewDistributedHeader(1, 3, 0, 0).Encode()
			Expect(n.Write(addr, 3)).To(Succeed())
			Expect(n.Write(addr, h)).To(Succeed())

			var sent []noc.Flit
			record := func(out []noc.Link) {
				if out[0].Valid {
					sent = append(sent, out[0].Flit)
				}
			}

			record(step())
			req := noc.NewDistributedHeader(noc.ControlClass, 0, 3, 0)
			record(step(beFlit(req.Encode(), true)))
			record(step())

			Expect(n.Write(addr, 0xa)).To(Succeed())
			Expect(n.Write(addr, 0xb)).To(Succeed())
			for i := 0; i < 4; i++ {
				record(step(noc.Link{Credit: true}))
			}

			Expect(sent).To(HaveLen(4))
			Expect(sent[0].Data).To(Equal(h))
			Expect(sent[1].Data).To(Equal(uint32(0xa)))
			Expect(sent[2].Data).To(Equal(uint32(0xb)))
			Expect(sent[2].Last).To(BeTrue())
			reply := noc.DecodeHeader(sent[3].Data, noc.DistributedRouting)
			Expect(reply.Specific).To(Equal(noc.ControlReply))
		})

		It("should not answer while disabled", func() {
			Expect(n.Write(BEEndpointAddr(0, RegEnable), 0)).To(Succeed())
			step()
			Expect(n.Read(BEEndpointAddr(0, RegEnable))).To(Equal(uint32(0)))

			req := noc.NewDistributedHeader(noc.ControlClass, 0, 3, 0)
			step(beFlit(req.Encode(), true))

			for i := 0; i < 4; i++ {
				Expect(step()[0].Valid).To(BeFalse())
			}
		})
	})

	Context("ingress overflow", func() {
		It("should drop a packet longer than the buffer", func() {
			rec := newRecorder()
			n.AcceptHook(rec)
			h := noc.NewDistributedHeader(1, 0, 2, 0).Encode()

			step(beFlit(h, false))
			step(beFlit(1, false))
			step(beFlit(2, false))
			step(beFlit(3, true))
			step(beFlit(h, false))
			step(beFlit(4, true))

			Expect(n.BEDropped(0)).To(Equal(uint64(1)))
			Expect(rec.items[noc.HookPosBEDropped]).To(HaveLen(1))

			status, _ := n.Read(BEEndpointAddr(0, RegStatus))
			Expect(status & StatusDropped).NotTo(BeZero())

			Expect(n.Read(BEEndpointAddr(0, RegData))).To(Equal(uint32(2)))
			Expect(n.Read(BEEndpointAddr(0, RegData))).To(Equal(h))
			Expect(n.Read(BEEndpointAddr(0, RegData))).To(Equal(uint32(4)))
			Expect(n.Read(BEEndpointAddr(0, RegData))).To(Equal(uint32(0)))
		})

		It("should drop whole packets when the queue is full", func() {
			h := noc.NewDistributedHeader(1, 0, 2, 0).Encode()
			for i := 0; i < 3; i++ {
				step(beFlit(h, false))
				out := step(beFlit(uint32(i), true))
				Expect(out[0].Credit).To(BeTrue())
			}

			Expect(n.BEDropped(0)).To(Equal(uint64(1)))
			status, _ := n.Read(BEEndpointAddr(0, RegStatus))
			Expect(status & StatusIngressReady).NotTo(BeZero())
		})

		It("should drop data for a disabled endpoint", func() {
			Expect(n.Write(BEEndpointAddr(0, RegEnable), 0)).To(Succeed())
			step()

			h := noc.NewDistributedHeader(1, 0, 2, 0).Encode()
			step(beFlit(h, true))

			Expect(n.BEDropped(0)).To(Equal(uint64(1)))
		})
	})

	Context("source routing", func() {
		It("should answer along the recorded route", func() {
			n = NewBuilder().
				WithNode(3, noc.Coord{X: 1, Y: 1}).
				WithMeshSize(2, 2).
				WithRouting(noc.SourceRouting).
				Build("NI")
			n.SetCredits(0, 4)

			route := []noc.Port{noc.East, noc.South, noc.Local0}
			h, err := noc.NewSourceHeader(noc.ControlClass, route)
			Expect(err).NotTo(HaveOccurred())
			h.Advance(noc.Local0)
			h.Advance(noc.West)
			h.Advance(noc.North)

			out := step(beFlit(h.Encode(), true))

			Expect(out[0].Valid).To(BeTrue())
			reply := noc.DecodeHeader(out[0].Flit.Data, noc.SourceRouting)
			Expect(reply.Specific).To(Equal(noc.ControlReply))
			Expect(reply.Route[:3]).To(Equal([]noc.Port{noc.North, noc.West, noc.Local0}))
		})
	})
})

var _ = Describe("Registers", func() {
	var n *NI

	BeforeEach(func() {
		n = NewBuilder().
			WithNumTDMEndpoints(3).
			WithMaxMsgLen(8).
			WithMaxPacketLen(4).
			WithQueueSize(2).
			Build("NI")
	})

	It("should describe the endpoints", func() {
		Expect(n.Read(TDMBase)).To(Equal(uint32(3 | 8<<16)))
		Expect(n.Read(BEBase)).To(Equal(uint32(2 | 1<<31)))
	})

	It("should reject unmapped addresses", func() {
		for _, addr := range []uint32{
			0x2, TDMEndpointAddr(3, RegData), TDMEndpointAddr(0, 0xc),
			BEEndpointAddr(2, RegData), ReadyAddr(2, 0), ReadyAddr(0, 32),
		} {
			_, err := n.Read(addr)
			Expect(err).To(MatchError(ErrBadAddress), "address 0x%x", addr)
		}
	})

	It("should reject writes to read-only registers", func() {
		Expect(n.Write(TDMBase, 1)).To(MatchError(ErrReadOnly))
		Expect(n.Write(TDMEndpointAddr(0, RegStatus), 1)).To(MatchError(ErrReadOnly))
		Expect(n.Write(ReadyAddr(0, 0), 1)).To(MatchError(ErrReadOnly))
	})

	It("should reject BE packets that do not fit", func() {
		err := n.Write(BEEndpointAddr(0, RegData), 5)
		Expect(err).To(MatchError(ErrPacketTooLong))
	})

	It("should ask the tile to retry when the egress queue is full", func() {
		addr := TDMEndpointAddr(1, RegData)
		Expect(n.Write(addr, 3)).To(Succeed())
		Expect(n.Write(addr, 1)).To(Succeed())
		Expect(n.Write(addr, 2)).To(Succeed())
		Expect(n.Write(addr, 3)).To(MatchError(ErrWouldBlock))

		status, _ := n.Read(TDMEndpointAddr(1, RegStatus))
		Expect(status & StatusEgressFull).NotTo(BeZero())
	})

	It("should read an empty ingress queue as size zero", func() {
		Expect(n.Read(TDMEndpointAddr(2, RegData))).To(BeZero())
		Expect(n.Read(BEEndpointAddr(1, RegData))).To(BeZero())
	})
})
