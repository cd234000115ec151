package ctrl

import (
	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/noc"
)

var _ = Describe("NCM", func() {
	var (
		mockCtrl *gomock.Controller
		fabric   *MockFabric
		cfg      *noc.FabricConfig
		ncm      *NCM
	)

	request := func(p Packet) Packet {
		Expect(ncm.Deliver(p)).To(BeTrue())
		ncm.Tick()

		resp, ok := ncm.Receive()
		Expect(ok).To(BeTrue())

		return resp
	}

	event := func(payload ...uint16) {
		Expect(ncm.Deliver(NewEvent(NCMID, HostID, payload...))).To(BeTrue())
		ncm.Tick()
	}

	drain := func() []Packet {
		var out []Packet

		for {
			p, ok := ncm.Receive()
			if !ok {
				return out
			}

			out = append(out, p)
		}
	}

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		fabric = NewMockFabric(mockCtrl)
		cfg = noc.NewFabricConfig(4, 2, 2, 4, func(int) uint8 { return 0xf })

		fabric.EXPECT().Config().Return(cfg).AnyTimes()
		fabric.EXPECT().Width().Return(2).AnyTimes()
		fabric.EXPECT().Height().Return(2).AnyTimes()
		fabric.EXPECT().AttachHook(gomock.Any())

		ncm = NewBuilder().
			WithEngine(sim.NewSerialEngine()).
			WithFabric(fabric).
			Build("NCM")
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should identify itself", func() {
		resp := request(NewReadRequest(NCMID, HostID, RegVendor))
		Expect(resp).To(Equal(Packet{
			Dst: HostID, Src: NCMID, Type: TypeReg, TypeSub: RespReadOK,
			Payload: []uint16{VendorTUMLIS, 0},
		}))

		resp = request(NewReadRequest(NCMID, HostID, RegModuleType))
		Expect(resp.Value(0)).To(Equal(uint32(ModuleTypeNCM)))
	})

	It("should report the fabric geometry", func() {
		Expect(request(NewReadRequest(NCMID, HostID, RegSlotTableSize)).Value(0)).
			To(Equal(uint32(4)))
		Expect(request(NewReadRequest(NCMID, HostID, RegDimensions)).Value(0)).
			To(Equal(uint32(0x202)))
		Expect(request(NewReadRequest(NCMID, HostID, RegMaxPorts)).Value(0)).
			To(Equal(uint32(2)))
	})

	It("should reject unknown registers and writes", func() {
		Expect(request(NewReadRequest(NCMID, HostID, 0x999)).TypeSub).
			To(Equal(RespReadErr))
		Expect(request(NewWriteRequest(NCMID, HostID, RegVendor, 1)).TypeSub).
			To(Equal(RespWriteErr))
	})

	It("should stage slot-table writes", func() {
		ref := noc.TableRef{Node: 3, NI: true, Port: 2}
		fabric.EXPECT().Stage(noc.SlotWrite(ref, 1, 0)).Return(nil)

		event(TDMConfig, 1<<8|0<<4|2, 1<<15|3)

		Expect(drain()).To(BeEmpty())
	})

	It("should stage router slot writes", func() {
		ref := noc.TableRef{Node: 1, Port: int(noc.South)}
		fabric.EXPECT().Stage(noc.SlotWrite(ref, 3, int(noc.West))).Return(nil)

		event(TDMConfig, 3<<8|uint16(noc.West)<<4|uint16(noc.South), 1)
	})

	It("should stage endpoint link enables", func() {
		fabric.EXPECT().Stage(noc.EndpointLinkWrite(0, 1, 1, true)).Return(nil)

		event(TDMConfig, 1<<8|1<<4|1, 1<<14)
	})

	It("should answer failed writes with an error", func() {
		fabric.EXPECT().Stage(gomock.Any()).Return(noc.ErrNoSuchNode)

		event(TDMConfig, 0, 9)

		Expect(drain()).To(Equal([]Packet{{
			Dst: HostID, Src: NCMID, Type: TypeReg, TypeSub: RespWriteErr,
			Payload: []uint16{TDMConfig},
		}}))
	})

	It("should reject unknown sub-modules", func() {
		event(9, 0, 0)

		Expect(drain()).To(HaveLen(1))
	})

	It("should configure ports and endpoints", func() {
		fabric.EXPECT().Stage(noc.PortEnableWrite(2, noc.East, false)).Return(nil)
		fabric.EXPECT().SetEndpointEnable(1, true, 0, true).Return(nil)
		fabric.EXPECT().Stage(noc.FaultVectorWrite(3, 0x41)).Return(nil)

		event(LinkConfig, uint16(noc.East), 2)
		event(EPConfig, 1<<8|1<<4, 1)
		event(FaultConfig, 3<<8|0x41)

		Expect(drain()).To(BeEmpty())
	})

	It("should report detected faults once", func() {
		ncm.Func(sim.HookCtx{
			Pos:  noc.HookPosFaultDetected,
			Item: noc.FaultEvent{Node: 1, Bit: 2},
		})
		ncm.Tick()
		ncm.Tick()

		reports := drain()
		Expect(reports).To(Equal([]Packet{
			NewEvent(HostID, NCMID, SubIDFD, 0x0400, 0),
		}))

		mon := NewMonitor(4, 6)
		Expect(mon.Handle(reports[0])).To(Succeed())
		Expect(mon.Faults(1)).To(Equal(uint8(4)))
		Expect(mon.Faults(0)).To(BeZero())
	})

	It("should clear latched faults", func() {
		ncm.Func(sim.HookCtx{
			Pos:  noc.HookPosFaultDetected,
			Item: noc.FaultEvent{Node: 3, Bit: 0},
		})
		ncm.Tick()
		drain()

		fabric.EXPECT().ClearFaults(3)
		event(FaultClear, 3)

		Expect(drain()).To(Equal([]Packet{
			NewEvent(HostID, NCMID, SubIDFD, 0, 0),
		}))
	})

	It("should report utilization per window", func() {
		event(ClkConfig, 2, 0)
		Expect(ncm.Window()).To(Equal(uint32(2)))

		for i := 0; i < 3; i++ {
			ncm.Func(sim.HookCtx{
				Pos:  noc.HookPosFlitForwarded,
				Item: noc.FlitEvent{Node: 0, Port: noc.East, Class: noc.ClassTDM},
			})
		}
		ncm.Func(sim.HookCtx{
			Pos:  noc.HookPosFlitForwarded,
			Item: noc.FlitEvent{Node: 3, Port: noc.Local1, Class: noc.ClassBE},
		})
		ncm.Tick()

		reports := drain()
		Expect(reports).To(HaveLen(16))

		mon := NewMonitor(4, 6)
		for _, p := range reports {
			Expect(mon.Handle(p)).To(Succeed())
		}

		tdm, be := mon.Utilization(0)
		Expect(tdm).To(Equal([]uint32{0, 3, 0, 0, 0, 0}))
		Expect(be).To(Equal([]uint32{0, 0, 0, 0, 0, 0}))

		_, be = mon.Utilization(3)
		Expect(be[noc.Local1]).To(Equal(uint32(1)))
		Expect(mon.Windows()).To(Equal(1))
	})

	It("should not count while monitoring is off", func() {
		ncm.Func(sim.HookCtx{
			Pos:  noc.HookPosFlitForwarded,
			Item: noc.FlitEvent{Node: 0, Port: noc.East, Class: noc.ClassTDM},
		})
		event(ClkConfig, 1, 0)
		drain()
		ncm.Tick()

		mon := NewMonitor(4, 6)
		for _, p := range drain() {
			Expect(mon.Handle(p)).To(Succeed())
		}

		tdm, _ := mon.Utilization(0)
		Expect(tdm[noc.East]).To(BeZero())
		Expect(mon.Windows()).To(Equal(1))
	})
})
