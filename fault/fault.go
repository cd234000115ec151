// Package fault provides per-link parity checking and error injection.
package fault

import "github.com/sarchlab/hybridnoc/noc"

// Detector checks the parity side channel of the flits arriving on one
// link.
type Detector struct {
	// Permanent keeps the error flag raised until Clear is called.
	Permanent bool

	err     bool
	latched bool
	count   uint64
}

// Check inspects the link value of the current cycle. It returns true if the
// incoming flit is faulty. Invalid cycles never raise an error.
func (d *Detector) Check(l noc.Link) bool {
	d.err = false

	if !l.Valid || l.Flit.ParityOK() {
		return false
	}

	d.err = true
	d.count++

	if d.Permanent {
		d.latched = true
	}

	return true
}

// Error reports the out_error signal of the link.
func (d *Detector) Error() bool {
	return d.err || d.latched
}

// Count returns how many faulty flits the detector has seen.
func (d *Detector) Count() uint64 {
	return d.count
}

// Clear drops a latched error.
func (d *Detector) Clear() {
	d.latched = false
	d.err = false
}

// Reset returns the detector to its initial state.
func (d *Detector) Reset() {
	*d = Detector{Permanent: d.Permanent}
}

// Inject corrupts a flit in flight when enabled. The payload bit 0 is
// flipped and the parity side channel is left untouched so the receiving
// detector fires. Disabled injection returns the link unchanged.
func Inject(l noc.Link, enabled bool) noc.Link {
	if !enabled || !l.Valid {
		return l
	}

	l.Flit.Data ^= 1

	return l
}
