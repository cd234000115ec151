// Package ctrl implements the management plane of the NoC: the packet
// format of the debug channel, the NoC Control Module that configures the
// fabric, and the host-side channel manager.
package ctrl

import (
	"errors"
	"fmt"
)

// PacketType is the type field of a management packet.
type PacketType uint8

// Packet types.
const (
	TypeReg   PacketType = 0
	TypePlain PacketType = 1
	TypeEvent PacketType = 2
)

// Subtypes of register access packets.
const (
	ReqRead      uint8 = 0
	ReqWrite     uint8 = 4
	RespReadOK   uint8 = 8
	RespReadErr  uint8 = 12
	RespWriteOK  uint8 = 14
	RespWriteErr uint8 = 15
)

// Module addresses on the management channel.
const (
	HostID uint16 = 0
	NCMID  uint16 = 1
)

// SurveillanceID returns the address of the surveillance module of a tile.
func SurveillanceID(tile int) uint16 {
	return uint16(0x10 + tile)
}

// MaxPayload is the largest payload of a single packet in words.
const MaxPayload = 8

const headerWords = 3

// Decode errors.
var (
	ErrShortPacket   = errors.New("packet shorter than its header")
	ErrBadType       = errors.New("invalid packet type")
	ErrPayloadTooBig = errors.New("payload too large")
)

// Packet is a message on the management channel.
type Packet struct {
	Dst     uint16
	Src     uint16
	Type    PacketType
	TypeSub uint8
	Payload []uint16
}

// Encode returns the wire words of the packet.
func (p Packet) Encode() []uint16 {
	words := make([]uint16, 0, headerWords+len(p.Payload))
	flags := uint16(p.Type)<<14 | uint16(p.TypeSub&0xf)<<10
	words = append(words, p.Dst, p.Src, flags)

	return append(words, p.Payload...)
}

// Decode parses the wire words of a packet.
func Decode(words []uint16) (Packet, error) {
	if len(words) < headerWords {
		return Packet{}, fmt.Errorf("%d words: %w", len(words), ErrShortPacket)
	}

	if len(words)-headerWords > MaxPayload {
		return Packet{}, fmt.Errorf("%d payload words: %w",
			len(words)-headerWords, ErrPayloadTooBig)
	}

	p := Packet{
		Dst:     words[0],
		Src:     words[1],
		Type:    PacketType(words[2] >> 14),
		TypeSub: uint8(words[2]>>10) & 0xf,
	}

	if p.Type > TypeEvent {
		return Packet{}, fmt.Errorf("type %d: %w", p.Type, ErrBadType)
	}

	if len(words) > headerWords {
		p.Payload = append([]uint16(nil), words[headerWords:]...)
	}

	return p, nil
}

// NewReadRequest creates a register read request.
func NewReadRequest(dst, src, addr uint16) Packet {
	return Packet{Dst: dst, Src: src, Type: TypeReg, TypeSub: ReqRead,
		Payload: []uint16{addr}}
}

// NewWriteRequest creates a 32-bit register write request.
func NewWriteRequest(dst, src, addr uint16, value uint32) Packet {
	return Packet{Dst: dst, Src: src, Type: TypeReg, TypeSub: ReqWrite,
		Payload: []uint16{addr, uint16(value), uint16(value >> 16)}}
}

// NewEvent creates an event packet.
func NewEvent(dst, src uint16, payload ...uint16) Packet {
	return Packet{Dst: dst, Src: src, Type: TypeEvent, Payload: payload}
}

// Reply creates a response to a packet with the given subtype.
func (p Packet) Reply(sub uint8, payload ...uint16) Packet {
	return Packet{Dst: p.Src, Src: p.Dst, Type: TypeReg, TypeSub: sub,
		Payload: payload}
}

// Value returns the 32-bit value carried in a read response or a write
// request starting at payload word i.
func (p Packet) Value(i int) uint32 {
	var v uint32

	if i < len(p.Payload) {
		v = uint32(p.Payload[i])
	}

	if i+1 < len(p.Payload) {
		v |= uint32(p.Payload[i+1]) << 16
	}

	return v
}
