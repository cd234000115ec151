package ni

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/noc"
)

// egressWord is a word written by the bus side into an egress queue. Last
// marks the final word of a message.
type egressWord struct {
	data uint32
	last bool
}

// streamItem is one entry of the logical TDM output stream.
type streamItem struct {
	data       uint32
	checkpoint bool
}

// arrival is what one link delivered to an endpoint in one cycle.
type arrival struct {
	valid   bool
	faulted bool
	flit    noc.Flit
}

type linkState int

const (
	linkIdle linkState = iota
	linkWaiting
	linkJoined
)

type tdmEndpoint struct {
	id        int
	maxLen    int
	mask      uint32
	threshold uint32
	windowCap int

	egress  sim.Buffer
	ingress sim.Buffer

	// bus side
	txRemaining int
	rxRemaining int

	enabled   bool
	enableReq bool
	midPacket bool
	dropped   bool

	// egress stream shared by all links
	window    []streamItem
	base      uint64
	sinceCP   int
	sent      uint32
	forceCP   bool
	links     []linkState
	cursor    []uint64

	// ingress resynchronization
	cnt      []uint32
	expected uint32

	checkpoints uint64
	dropCount   uint64
}

func newTDMEndpoint(
	name string,
	id, numLinks, maxLen, width, threshold, queueSize, windowCap int,
) *tdmEndpoint {
	return &tdmEndpoint{
		id:        id,
		maxLen:    maxLen,
		mask:      uint32(1<<width - 1),
		threshold: uint32(threshold),
		windowCap: windowCap,
		egress:    sim.NewBuffer(name+".Egress", queueSize),
		ingress:   sim.NewBuffer(name+".Ingress", queueSize),
		enabled:   true,
		enableReq: true,
		links:     make([]linkState, numLinks),
		cursor:    make([]uint64, numLinks),
		cnt:       make([]uint32, numLinks),
	}
}

func (e *tdmEndpoint) reset() {
	for e.egress.Size() > 0 {
		e.egress.Pop()
	}

	for e.ingress.Size() > 0 {
		e.ingress.Pop()
	}

	e.txRemaining = 0
	e.rxRemaining = 0
	e.enabled = true
	e.enableReq = true
	e.midPacket = false
	e.dropped = false
	e.window = nil
	e.base = 0
	e.sinceCP = 0
	e.sent = 0
	e.forceCP = false
	e.expected = 0
	e.checkpoints = 0
	e.dropCount = 0

	for l := range e.links {
		e.links[l] = linkIdle
		e.cursor[l] = 0
		e.cnt[l] = 0
	}
}

func (e *tdmEndpoint) generated() uint64 {
	return e.base + uint64(len(e.window))
}

// busy tells if a link that takes part in the stream still has items to
// send.
func (e *tdmEndpoint) busy() bool {
	for l, s := range e.links {
		if s == linkIdle {
			continue
		}

		if s == linkJoined && e.cursor[l] < e.generated() {
			return true
		}

		if e.sinceCP >= e.maxLen || e.forceCP {
			return true
		}

		if e.egress.Size() > 0 && (e.midPacket || e.enabled) {
			return true
		}
	}

	return false
}

// updateEnable applies a requested enable change at a message boundary.
func (e *tdmEndpoint) updateEnable() {
	if !e.midPacket {
		e.enabled = e.enableReq
	}
}

// syncLink follows the per-link enable of the configuration. A link joins an
// active stream at the next checkpoint and leaves it at a checkpoint or when
// it has sent everything there is to send.
func (e *tdmEndpoint) syncLink(l int, want bool) {
	switch e.links[l] {
	case linkIdle:
		if want {
			e.join(l)
		}
	case linkWaiting:
		switch {
		case !want:
			e.links[l] = linkIdle
		case !e.othersJoined(l):
			e.links[l] = linkIdle
			e.join(l)
		}
	case linkJoined:
		if !want && e.atBoundary(l) {
			e.links[l] = linkIdle
			e.trim()
		}
	}
}

func (e *tdmEndpoint) othersJoined(l int) bool {
	for k, s := range e.links {
		if k != l && s == linkJoined {
			return true
		}
	}

	return false
}

func (e *tdmEndpoint) join(l int) {
	g := e.generated()

	if e.othersJoined(l) {
		if g == 0 {
			e.links[l] = linkJoined
			e.cursor[l] = 0

			return
		}

		e.links[l] = linkWaiting

		return
	}

	e.window = nil
	e.base = g
	e.links[l] = linkJoined
	e.cursor[l] = g

	if g > 0 || e.sinceCP > 0 {
		e.forceCP = true
	}
}

func (e *tdmEndpoint) atBoundary(l int) bool {
	c := e.cursor[l]
	if c == e.generated() {
		return e.egress.Size() == 0 || e.sinceCP >= e.maxLen || e.forceCP
	}

	return e.window[c-e.base].checkpoint
}

// next returns the stream item the link sends in its slot. fresh is true
// when the item was produced by this call.
func (e *tdmEndpoint) next(l int) (item streamItem, fresh, ok bool) {
	if e.links[l] != linkJoined {
		return streamItem{}, false, false
	}

	if e.cursor[l] == e.generated() {
		if !e.generate() {
			return streamItem{}, false, false
		}

		fresh = true
	}

	item = e.window[e.cursor[l]-e.base]
	e.cursor[l]++
	e.trim()

	return item, fresh, true
}

func (e *tdmEndpoint) generate() bool {
	if e.sinceCP >= e.maxLen || e.forceCP {
		e.emit(streamItem{data: e.sent, checkpoint: true})
		e.sinceCP = 0
		e.forceCP = false
		e.checkpoints++

		return true
	}

	if e.egress.Size() == 0 || !(e.midPacket || e.enabled) {
		return false
	}

	w := e.egress.Pop().(egressWord)
	e.midPacket = !w.last
	e.emit(streamItem{data: w.data})
	e.sent = (e.sent + 1) & e.mask
	e.sinceCP++

	return true
}

func (e *tdmEndpoint) emit(item streamItem) {
	idx := e.generated()
	e.window = append(e.window, item)

	if !item.checkpoint {
		return
	}

	for l, s := range e.links {
		if s == linkWaiting {
			e.links[l] = linkJoined
			e.cursor[l] = idx
		}
	}
}

// trim drops stream items every joined link has sent. A link that falls too
// far behind is parked until the next checkpoint.
func (e *tdmEndpoint) trim() {
	for {
		low := e.generated()
		for l, s := range e.links {
			if s == linkJoined && e.cursor[l] < low {
				low = e.cursor[l]
			}
		}

		e.window = e.window[int(low-e.base):]
		e.base = low

		if len(e.window) <= e.windowCap {
			return
		}

		for l, s := range e.links {
			if s == linkJoined && e.cursor[l] == low {
				e.links[l] = linkWaiting
			}
		}
	}
}

// merge runs the resynchronization algorithm on the flits the links
// delivered in this cycle. It returns the accepted payload word, if any.
func (e *tdmEndpoint) merge(arrivals []arrival) (uint32, bool) {
	okLink := -1

	for l, a := range arrivals {
		if !a.valid || a.flit.Last {
			continue
		}

		if !a.faulted && e.cnt[l] == e.expected && okLink < 0 {
			okLink = l
		}

		e.cnt[l] = (e.cnt[l] + 1) & e.mask
	}

	var (
		data     uint32
		accepted bool
	)

	if okLink >= 0 {
		data = arrivals[okLink].flit.Data
		accepted = true
		e.expected = (e.expected + 1) & e.mask
	}

	for l, a := range arrivals {
		if !a.valid || !a.flit.Last || a.faulted {
			continue
		}

		v := a.flit.Data & e.mask
		e.cnt[l] = v

		if e.wayAhead(v) {
			e.expected = v
		}
	}

	return data, accepted
}

func (e *tdmEndpoint) wayAhead(v uint32) bool {
	distance := (v - e.expected) & e.mask
	return distance > e.threshold && distance < e.mask+1-e.threshold
}

// deliver puts an accepted word into the merged ingress queue. There is no
// backpressure toward the fabric: a full queue loses the word.
func (e *tdmEndpoint) deliver(data uint32) bool {
	if !e.enabled || !e.ingress.CanPush() {
		e.dropped = true
		e.dropCount++

		return false
	}

	e.ingress.Push(data)

	return true
}
