package tile

import (
	"errors"
	"math/rand/v2"

	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/sarchlab/hybridnoc/surveillance"
)

// TrafficClass is the header class of generated messages.
const TrafficClass uint8 = 0

// PingWord is the fixed payload word of a generated message.
const PingWord uint32 = 'p' | 'i'<<8 | 'n'<<16 | 'g'<<24

// messageLen is the length of a received message including the header.
const messageLen = 6

// Bus is the register interface of an NI as seen from the tile.
type Bus interface {
	Read(addr uint32) (uint32, error)
	Write(addr, value uint32) error
}

// A ParamSource provides the generator settings.
type ParamSource interface {
	Params() surveillance.Params
}

// A FaultCounter counts malformed messages.
type FaultCounter interface {
	CountFault()
}

type genState int

const (
	genIdle genState = iota
	genBurst
	genDelay
)

// TrafficGenerator produces BE background traffic. It sends bursts of ping
// messages to random destinations and checks the messages it receives.
type TrafficGenerator struct {
	tile   int
	bus    Bus
	params ParamSource
	faults FaultCounter

	numEP int
	mode  noc.RoutingMode

	rng  *rand.Rand
	seed uint32

	state     genState
	burstLeft int
	delayLeft int
	msg       []uint32
	link      int
	cursor    int

	sent      uint64
	received  uint64
	malformed uint64
}

// NewTrafficGenerator creates a generator for a tile. The number of BE
// endpoints and the routing mode are read from the NI.
func NewTrafficGenerator(
	tile int,
	bus Bus,
	params ParamSource,
	faults FaultCounter,
) *TrafficGenerator {
	info, err := bus.Read(ni.BEBase)
	if err != nil {
		panic(err)
	}

	g := &TrafficGenerator{
		tile:   tile,
		bus:    bus,
		params: params,
		faults: faults,
		numEP:  int(info & 0xff),
		mode:   noc.SourceRouting,
	}

	if info&(1<<31) != 0 {
		g.mode = noc.DistributedRouting
	}

	return g
}

// Sent returns the number of messages written to the NI.
func (g *TrafficGenerator) Sent() uint64 {
	return g.sent
}

// Received returns the number of valid messages received.
func (g *TrafficGenerator) Received() uint64 {
	return g.received
}

// Malformed returns the number of corrupt messages received.
func (g *TrafficGenerator) Malformed() uint64 {
	return g.malformed
}

// Busy tells if the generator is inside a burst.
func (g *TrafficGenerator) Busy() bool {
	return g.state == genBurst
}

// Step advances the generator by one bus cycle. It returns true if it wrote
// to or read from the NI.
func (g *TrafficGenerator) Step() bool {
	madeProgress := g.receive()

	switch g.state {
	case genIdle:
		g.startBurst()
	case genBurst:
		madeProgress = g.sendWords() || madeProgress
	case genDelay:
		g.delayLeft--
		if g.delayLeft <= 0 {
			g.state = genIdle
		}
	}

	return madeProgress
}

func (g *TrafficGenerator) startBurst() {
	p := g.params.Params()
	if p.Seed == 0 || len(p.Destinations) == 0 || p.MaxBurst == 0 || g.numEP == 0 {
		return
	}

	if p.Seed != g.seed {
		g.seed = p.Seed
		g.rng = rand.New(rand.NewPCG(uint64(p.Seed), 0))
	}

	dst := p.Destinations[g.rng.IntN(len(p.Destinations))]
	g.burstLeft = int(between(g.rng, p.MinBurst, p.MaxBurst))
	g.link = g.rng.IntN(g.numEP)

	if g.burstLeft == 0 {
		return
	}

	header, ok := g.header(dst, g.link, int(p.Width), int(p.Height))
	if !ok {
		return
	}

	g.msg = []uint32{
		messageLen,
		header,
		twice(uint32(dst)),
		twice(uint32(g.tile)),
		twice(uint32(g.link)),
		PingWord,
		0,
	}
	g.cursor = 0
	g.state = genBurst
}

func (g *TrafficGenerator) header(dst, link, width, height int) (uint32, bool) {
	if g.mode == noc.DistributedRouting {
		return noc.NewDistributedHeader(TrafficClass, dst, g.tile, link).Encode(), true
	}

	if width <= 0 || height <= 0 {
		return 0, false
	}

	route := noc.XYRoute(noc.CoordOf(g.tile, width), noc.CoordOf(dst, width), link)

	h, err := noc.NewSourceHeader(TrafficClass, route)
	if err != nil {
		return 0, false
	}

	return h.Encode(), true
}

// sendWords writes the current message until the egress queue is full.
func (g *TrafficGenerator) sendWords() bool {
	addr := ni.BEEndpointAddr(g.link, ni.RegData)
	madeProgress := false

	for g.cursor < len(g.msg) {
		err := g.bus.Write(addr, g.msg[g.cursor])
		if errors.Is(err, ni.ErrWouldBlock) {
			return madeProgress
		}

		if err != nil {
			noc.Trace("traffic generator stopped", "tile", g.tile, "err", err)
			g.state = genIdle

			return madeProgress
		}

		g.cursor++
		madeProgress = true
	}

	g.sent++
	g.cursor = 0
	g.burstLeft--

	if g.burstLeft > 0 {
		return madeProgress
	}

	p := g.params.Params()
	g.state = genIdle

	if p.MaxDelay > 0 {
		g.delayLeft = int(between(g.rng, p.MinDelay, p.MaxDelay))
		if g.delayLeft > 0 {
			g.state = genDelay
		}
	}

	return madeProgress
}

// receive drains the ingress queues of all BE endpoints and validates the
// messages of the traffic class.
func (g *TrafficGenerator) receive() bool {
	madeProgress := false

	for ep := 0; ep < g.numEP; ep++ {
		addr := ni.BEEndpointAddr(ep, ni.RegData)

		for {
			size, err := g.bus.Read(addr)
			if err != nil || size == 0 {
				break
			}

			msg := make([]uint32, size)
			for i := range msg {
				msg[i], _ = g.bus.Read(addr)
			}

			madeProgress = true
			g.check(msg)
		}
	}

	return madeProgress
}

func (g *TrafficGenerator) check(msg []uint32) {
	if len(msg) > 0 && noc.DecodeHeader(msg[0], g.mode).Class != TrafficClass {
		return
	}

	if validPing(msg, g.tile) {
		g.received++
		return
	}

	g.malformed++
	noc.Trace("corrupt message", "tile", g.tile, "len", len(msg))

	if g.faults != nil {
		g.faults.CountFault()
	}
}

func validPing(msg []uint32, tile int) bool {
	if len(msg) != messageLen {
		return false
	}

	for _, w := range msg[1:4] {
		if w&0xffff != w>>16 {
			return false
		}
	}

	return int(msg[1]&0xffff) == tile && msg[4] == PingWord && msg[5] == 0
}

func twice(v uint32) uint32 {
	return v&0xffff<<16 | v&0xffff
}

// between returns a value in [lo, hi), or hi if the range is empty.
func between(rng *rand.Rand, lo, hi uint32) uint32 {
	if hi <= lo {
		return hi
	}

	return lo + rng.Uint32N(hi-lo)
}
