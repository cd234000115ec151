package noc

import "math/bits"

// Class is the traffic class of a flit.
type Class uint8

const (
	ClassBE Class = iota
	ClassTDM
)

// Name returns the name of the traffic class.
func (c Class) Name() string {
	switch c {
	case ClassBE:
		return "BE"
	case ClassTDM:
		return "TDM"
	default:
		panic("invalid class")
	}
}

// Flit is the unit that travels over a link in one cycle.
type Flit struct {
	Data   uint32
	Parity uint8
	Last   bool
	Class  Class
}

// NewFlit creates a flit with a matching parity side channel.
func NewFlit(data uint32, last bool, class Class) Flit {
	return Flit{
		Data:   data,
		Parity: ParityOf(data),
		Last:   last,
		Class:  class,
	}
}

// WithData returns a copy of the flit carrying new data and fresh parity.
func (f Flit) WithData(data uint32) Flit {
	f.Data = data
	f.Parity = ParityOf(data)
	return f
}

// ParityOf computes one parity bit per byte of the word. Each bit is the
// XNOR-reduce of its byte, so it is set when the byte has an even number of
// ones.
func ParityOf(data uint32) uint8 {
	var p uint8

	for i := 0; i < 4; i++ {
		b := uint8(data >> (8 * i))
		if bits.OnesCount8(b)%2 == 0 {
			p |= 1 << i
		}
	}

	return p
}

// ParityOK tells if the parity side channel matches the payload.
func (f Flit) ParityOK() bool {
	return ParityOf(f.Data) == f.Parity
}

// Link is the value driven on a directed link for one cycle. Credit flows in
// the opposite direction of the flit and returns one BE buffer slot to the
// receiver of this link.
type Link struct {
	Flit   Flit
	Valid  bool
	Credit bool
}

// HasTDM tells if the link carries a TDM flit.
func (l Link) HasTDM() bool {
	return l.Valid && l.Flit.Class == ClassTDM
}

// HasBE tells if the link carries a BE flit.
func (l Link) HasBE() bool {
	return l.Valid && l.Flit.Class == ClassBE
}
