// Package api defines the driver API of the NoC. The driver plays the role
// of the tile software: it streams words into TDM channels, sends BE
// packets, and collects what arrives.
package api

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
)

// ErrIncomplete is returned by Run when tasks are left once the NoC has gone
// quiet.
var ErrIncomplete = errors.New("tasks did not complete")

// Device is the NoC the driver talks to.
type Device interface {
	Width() int
	NumNodes() int
	NI(node int) *ni.NI
	Wake()
}

// Driver provides the interface to control the NoC.
type Driver interface {
	// RegisterDevice registers the NoC the tasks run on.
	RegisterDevice(device Device)

	// FeedIn streams data into the egress queue of a TDM endpoint. The data
	// is split into messages of at most the maximum message length.
	FeedIn(data []uint32, node, ep int)

	// Collect fills data with the words that arrive at a TDM endpoint.
	Collect(data []uint32, node, ep int)

	// SendBE sends one packet from a BE endpoint of src to tile dst. The
	// header is added by the driver.
	SendBE(payload []uint32, src, ep, dst int, class uint8)

	// CollectBE fills packets with the packets that arrive at a BE
	// endpoint. Every packet starts with its header.
	CollectBE(packets [][]uint32, node, ep int)

	// Run will run all the tasks that have been added to the driver.
	Run() error

	// Stats returns the number of words and packets moved so far.
	Stats() Stats
}

// Stats counts the traffic moved by the driver.
type Stats struct {
	FedWords         uint64
	CollectedWords   uint64
	DiscardedWords   uint64
	SentPackets      uint64
	CollectedPackets uint64
}

type driverImpl struct {
	*sim.TickingComponent

	device   Device
	patience int
	idle     int

	feedInTasks    []*feedInTask
	collectTasks   []*collectTask
	sendTasks      []*sendTask
	collectBETasks []*collectBETask

	stats Stats
}

// Tick runs the driver for one cycle.
func (d *driverImpl) Tick() (madeProgress bool) {
	madeProgress = d.doFeedIn() || madeProgress
	madeProgress = d.doSend() || madeProgress
	madeProgress = d.doCollect() || madeProgress
	madeProgress = d.doCollectBE() || madeProgress

	if madeProgress {
		d.idle = 0
		d.device.Wake()

		return true
	}

	if d.pending() == 0 {
		return false
	}

	d.idle++

	return d.idle < d.patience
}

func (d *driverImpl) pending() int {
	return len(d.feedInTasks) + len(d.collectTasks) +
		len(d.sendTasks) + len(d.collectBETasks)
}

// egressKey identifies an egress queue. Only the oldest task of a queue
// writes to it so that messages do not interleave.
type egressKey struct {
	bus  *ni.NI
	addr uint32
}

type feedInTask struct {
	data []uint32
	addr uint32
	bus  *ni.NI

	maxLen    int
	chunkLeft int
	round     int
}

func (t *feedInTask) isFinished() bool {
	return t.round >= len(t.data)
}

func (d *driverImpl) doFeedIn() bool {
	madeProgress := false

	active := make(map[egressKey]bool)

	for _, task := range d.feedInTasks {
		key := egressKey{task.bus, task.addr}
		if active[key] {
			continue
		}

		active[key] = true
		madeProgress = d.doOneFeedInTask(task) || madeProgress
	}

	d.removeFinishedFeedInTasks()

	return madeProgress
}

func (d *driverImpl) removeFinishedFeedInTasks() {
	for i := len(d.feedInTasks) - 1; i >= 0; i-- {
		if d.feedInTasks[i].isFinished() {
			d.feedInTasks = append(
				d.feedInTasks[:i], d.feedInTasks[i+1:]...)
		}
	}
}

func (d *driverImpl) doOneFeedInTask(task *feedInTask) bool {
	madeProgress := false

	for !task.isFinished() {
		if task.chunkLeft == 0 {
			task.chunkLeft = min(task.maxLen, len(task.data)-task.round)
			mustWrite(task.bus, task.addr, uint32(task.chunkLeft))
		}

		err := task.bus.Write(task.addr, task.data[task.round])
		if errors.Is(err, ni.ErrWouldBlock) {
			return madeProgress
		}

		if err != nil {
			panic(err)
		}

		task.chunkLeft--
		task.round++
		d.stats.FedWords++
		madeProgress = true
	}

	return madeProgress
}

type sendTask struct {
	words []uint32
	addr  uint32
	bus   *ni.NI

	sizeWritten bool
	round       int
}

func (t *sendTask) isFinished() bool {
	return t.round >= len(t.words)
}

func (d *driverImpl) doSend() bool {
	madeProgress := false

	active := make(map[egressKey]bool)

	for _, task := range d.sendTasks {
		key := egressKey{task.bus, task.addr}
		if active[key] {
			continue
		}

		active[key] = true
		madeProgress = d.doOneSendTask(task) || madeProgress
	}

	for i := len(d.sendTasks) - 1; i >= 0; i-- {
		if d.sendTasks[i].isFinished() {
			d.sendTasks = append(d.sendTasks[:i], d.sendTasks[i+1:]...)
			d.stats.SentPackets++
		}
	}

	return madeProgress
}

func (d *driverImpl) doOneSendTask(task *sendTask) bool {
	if !task.sizeWritten {
		mustWrite(task.bus, task.addr, uint32(len(task.words)))
		task.sizeWritten = true
	}

	madeProgress := false

	for !task.isFinished() {
		err := task.bus.Write(task.addr, task.words[task.round])
		if errors.Is(err, ni.ErrWouldBlock) {
			return madeProgress
		}

		if err != nil {
			panic(err)
		}

		task.round++
		madeProgress = true
	}

	return madeProgress
}

type collectTask struct {
	data  []uint32
	addr  uint32
	bus   *ni.NI
	round int
}

func (t *collectTask) isFinished() bool {
	return t.round >= len(t.data)
}

func (d *driverImpl) doCollect() bool {
	madeProgress := false

	for _, task := range d.collectTasks {
		madeProgress = d.doOneCollectTask(task) || madeProgress
	}

	d.removeFinishedCollectTasks()

	return madeProgress
}

func (d *driverImpl) doOneCollectTask(task *collectTask) bool {
	if !d.allDataReady(task) {
		return false
	}

	size := mustRead(task.bus, task.addr)

	for i := uint32(0); i < size; i++ {
		w := mustRead(task.bus, task.addr)

		if task.isFinished() {
			d.stats.DiscardedWords++
			noc.Trace("word discarded", "driver", d.Name(), "data", w)

			continue
		}

		task.data[task.round] = w
		task.round++
		d.stats.CollectedWords++
	}

	return size > 0
}

func (*driverImpl) allDataReady(task *collectTask) bool {
	status := mustRead(task.bus, task.addr-ni.RegData+ni.RegStatus)
	return status&ni.StatusIngressReady != 0
}

func (d *driverImpl) removeFinishedCollectTasks() {
	for i := len(d.collectTasks) - 1; i >= 0; i-- {
		if d.collectTasks[i].isFinished() {
			d.collectTasks = append(
				d.collectTasks[:i], d.collectTasks[i+1:]...)
		}
	}
}

type collectBETask struct {
	packets [][]uint32
	addr    uint32
	bus     *ni.NI
	round   int
}

func (t *collectBETask) isFinished() bool {
	return t.round >= len(t.packets)
}

func (d *driverImpl) doCollectBE() bool {
	madeProgress := false

	for _, task := range d.collectBETasks {
		for !task.isFinished() {
			size := mustRead(task.bus, task.addr)
			if size == 0 {
				break
			}

			packet := make([]uint32, size)
			for i := range packet {
				packet[i] = mustRead(task.bus, task.addr)
			}

			task.packets[task.round] = packet
			task.round++
			d.stats.CollectedPackets++
			madeProgress = true
		}
	}

	for i := len(d.collectBETasks) - 1; i >= 0; i-- {
		if d.collectBETasks[i].isFinished() {
			d.collectBETasks = append(
				d.collectBETasks[:i], d.collectBETasks[i+1:]...)
		}
	}

	return madeProgress
}

// RegisterDevice registers the NoC the tasks run on.
func (d *driverImpl) RegisterDevice(device Device) {
	d.device = device
}

func (d *driverImpl) FeedIn(data []uint32, node, ep int) {
	bus := d.device.NI(node)

	task := &feedInTask{
		data:   data,
		addr:   ni.TDMEndpointAddr(ep, ni.RegData),
		bus:    bus,
		maxLen: bus.MaxMsgLen(),
	}

	d.feedInTasks = append(d.feedInTasks, task)
}

func (d *driverImpl) Collect(data []uint32, node, ep int) {
	task := &collectTask{
		data: data,
		addr: ni.TDMEndpointAddr(ep, ni.RegData),
		bus:  d.device.NI(node),
	}

	d.collectTasks = append(d.collectTasks, task)
}

func (d *driverImpl) SendBE(payload []uint32, src, ep, dst int, class uint8) {
	bus := d.device.NI(src)

	h, err := d.header(bus.Routing(), src, ep, dst, class)
	if err != nil {
		panic(err)
	}

	task := &sendTask{
		words: append([]uint32{h.Encode()}, payload...),
		addr:  ni.BEEndpointAddr(ep, ni.RegData),
		bus:   bus,
	}

	d.sendTasks = append(d.sendTasks, task)
}

func (d *driverImpl) header(
	mode noc.RoutingMode,
	src, ep, dst int,
	class uint8,
) (noc.Header, error) {
	if mode == noc.DistributedRouting {
		return noc.NewDistributedHeader(class, dst, src, ep), nil
	}

	width := d.device.Width()
	route := noc.XYRoute(noc.CoordOf(src, width), noc.CoordOf(dst, width), ep)

	h, err := noc.NewSourceHeader(class, route)
	if err != nil {
		return noc.Header{}, fmt.Errorf("route %d->%d: %w", src, dst, err)
	}

	return h, nil
}

func (d *driverImpl) CollectBE(packets [][]uint32, node, ep int) {
	task := &collectBETask{
		packets: packets,
		addr:    ni.BEEndpointAddr(ep, ni.RegData),
		bus:     d.device.NI(node),
	}

	d.collectBETasks = append(d.collectBETasks, task)
}

// Run runs all the tasks in the driver. It returns ErrIncomplete if the NoC
// stays quiet for longer than the patience of the driver while tasks are
// left.
func (d *driverImpl) Run() error {
	d.idle = 0
	d.TickNow()

	if err := d.Engine.Run(); err != nil {
		return err
	}

	if n := d.pending(); n > 0 {
		return fmt.Errorf("%d tasks left: %w", n, ErrIncomplete)
	}

	return nil
}

func (d *driverImpl) Stats() Stats {
	return d.stats
}

func mustWrite(bus *ni.NI, addr, value uint32) {
	if err := bus.Write(addr, value); err != nil {
		panic(err)
	}
}

func mustRead(bus *ni.NI, addr uint32) uint32 {
	v, err := bus.Read(addr)
	if err != nil {
		panic(err)
	}

	return v
}
