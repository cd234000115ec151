package ni

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/noc"
)

// Register map of the tile side of the NI.
const (
	TDMBase   uint32 = 0x00000
	BEBase    uint32 = 0x10000
	ReadyBase uint32 = 0x18000

	EndpointStride uint32 = 0x100

	RegData   uint32 = 0x0
	RegEnable uint32 = 0x4
	RegStatus uint32 = 0x8
)

// Bits of the endpoint status register.
const (
	StatusEgressFull   uint32 = 1 << 0
	StatusIngressReady uint32 = 1 << 1
	StatusDropped      uint32 = 1 << 2
)

// Bus errors.
var (
	ErrBadAddress    = errors.New("bad register address")
	ErrReadOnly      = errors.New("register is read-only")
	ErrWouldBlock    = errors.New("egress queue full")
	ErrPacketTooLong = errors.New("packet too long")
)

// TDMEndpointAddr returns the address of a register of a TDM endpoint.
func TDMEndpointAddr(ep int, reg uint32) uint32 {
	return TDMBase + EndpointStride*uint32(ep+1) + reg
}

// BEEndpointAddr returns the address of a register of a BE endpoint.
func BEEndpointAddr(ep int, reg uint32) uint32 {
	return BEBase + EndpointStride*uint32(ep+1) + reg
}

// ReadyAddr returns the address of the ready bitmask word that covers a
// tile for a BE endpoint.
func ReadyAddr(ep, tile int) uint32 {
	return ReadyBase + EndpointStride*uint32(ep) + 4*uint32(tile/32)
}

type block int

const (
	blockTDM block = iota
	blockBE
	blockReady
)

type regAddr struct {
	block block
	ep    int // -1 for the info register
	reg   uint32
}

func (n *NI) decode(addr uint32) (regAddr, error) {
	bad := fmt.Errorf("address 0x%x: %w", addr, ErrBadAddress)

	if addr%4 != 0 {
		return regAddr{}, bad
	}

	switch {
	case addr >= ReadyBase:
		off := addr - ReadyBase
		ep := int(off / EndpointStride)
		word := int(off%EndpointStride) / 4

		if ep >= len(n.be) || word*32 >= len(n.be[ep].tilesReady) {
			return regAddr{}, bad
		}

		return regAddr{block: blockReady, ep: ep, reg: uint32(word)}, nil
	case addr >= BEBase:
		return n.decodeEndpoint(blockBE, addr-BEBase, len(n.be), bad)
	default:
		return n.decodeEndpoint(blockTDM, addr-TDMBase, len(n.tdm), bad)
	}
}

func (n *NI) decodeEndpoint(
	b block,
	off uint32,
	numEP int,
	bad error,
) (regAddr, error) {
	if off == 0 {
		return regAddr{block: b, ep: -1}, nil
	}

	ep := int(off/EndpointStride) - 1
	reg := off % EndpointStride

	if ep < 0 || ep >= numEP || reg > RegStatus {
		return regAddr{}, bad
	}

	return regAddr{block: b, ep: ep, reg: reg}, nil
}

// Read performs a bus read. Reading the data register of an endpoint first
// returns the size of the next message, 0 if there is none, and then its
// words.
func (n *NI) Read(addr uint32) (uint32, error) {
	a, err := n.decode(addr)
	if err != nil {
		return 0, err
	}

	switch a.block {
	case blockTDM:
		return n.readTDM(a), nil
	case blockBE:
		return n.readBE(a), nil
	default:
		return n.readReady(a), nil
	}
}

func (n *NI) readTDM(a regAddr) uint32 {
	if a.ep < 0 {
		return uint32(len(n.tdm)) | uint32(n.maxMsg)<<16
	}

	ep := n.tdm[a.ep]

	switch a.reg {
	case RegData:
		if ep.rxRemaining == 0 {
			ep.rxRemaining = min(ep.ingress.Size(), ep.maxLen)
			return uint32(ep.rxRemaining)
		}

		ep.rxRemaining--

		return ep.ingress.Pop().(uint32)
	case RegEnable:
		return boolWord(ep.enabled)
	default:
		return status(!ep.egress.CanPush(), ep.ingress.Size() > 0, &ep.dropped)
	}
}

func (n *NI) readBE(a regAddr) uint32 {
	if a.ep < 0 {
		info := uint32(len(n.be))
		if n.mode == noc.DistributedRouting {
			info |= 1 << 31
		}

		return info
	}

	ep := n.be[a.ep]

	switch a.reg {
	case RegData:
		if ep.rxPacket == nil {
			if ep.ingress.Size() == 0 {
				return 0
			}

			ep.rxPacket = ep.ingress.Pop().([]uint32)

			return uint32(len(ep.rxPacket))
		}

		w := ep.rxPacket[0]
		ep.rxPacket = ep.rxPacket[1:]

		if len(ep.rxPacket) == 0 {
			ep.rxPacket = nil
		}

		return w
	case RegEnable:
		return boolWord(ep.enabled)
	default:
		return status(!ep.egress.CanPush(), ep.ingress.Size() > 0, &ep.dropped)
	}
}

func (n *NI) readReady(a regAddr) uint32 {
	var mask uint32

	ready := n.be[a.ep].tilesReady
	for b := 0; b < 32; b++ {
		t := int(a.reg)*32 + b
		if t < len(ready) && ready[t] {
			mask |= 1 << b
		}
	}

	return mask
}

// status builds a status word. The dropped flag is cleared by the read.
func status(full, ready bool, dropped *bool) uint32 {
	var s uint32

	if full {
		s |= StatusEgressFull
	}

	if ready {
		s |= StatusIngressReady
	}

	if *dropped {
		s |= StatusDropped
		*dropped = false
	}

	return s
}

// Write performs a bus write. Writing the data register of an endpoint
// first sets the size of the next message and then appends its words. A
// write that finds the egress queue full returns ErrWouldBlock and must be
// retried.
func (n *NI) Write(addr, value uint32) error {
	a, err := n.decode(addr)
	if err != nil {
		return err
	}

	if a.ep < 0 || a.block == blockReady || a.reg == RegStatus {
		return fmt.Errorf("address 0x%x: %w", addr, ErrReadOnly)
	}

	switch a.block {
	case blockTDM:
		ep := n.tdm[a.ep]
		if a.reg == RegEnable {
			ep.enableReq = value&1 != 0
			return nil
		}

		return n.writeEgress(&ep.txRemaining, ep.egress, value, 0)
	default:
		ep := n.be[a.ep]
		if a.reg == RegEnable {
			ep.enableReq = value&1 != 0
			return nil
		}

		return n.writeEgress(&ep.txRemaining, ep.egress, value, ep.maxPacketLen)
	}
}

func (n *NI) writeEgress(
	remaining *int,
	egress sim.Buffer,
	value uint32,
	maxLen int,
) error {
	if *remaining == 0 {
		if maxLen > 0 && int(value) > maxLen {
			return fmt.Errorf("%d words, limit %d: %w", value, maxLen, ErrPacketTooLong)
		}

		*remaining = int(value)

		return nil
	}

	if !egress.CanPush() {
		return ErrWouldBlock
	}

	*remaining--
	egress.Push(egressWord{data: value, last: *remaining == 0})

	return nil
}

func boolWord(b bool) uint32 {
	if b {
		return 1
	}

	return 0
}
