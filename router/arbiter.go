package router

// roundRobin grants one output to one of several requesting inputs. The
// grant is held until release is called; afterwards the search starts at
// the input following the last grant.
type roundRobin struct {
	n     int
	grant int
	next  int
}

func newRoundRobin(n int) roundRobin {
	return roundRobin{n: n, grant: -1}
}

// arbitrate returns the current grant. If no input holds the grant, the
// first requesting input in rotating order receives it.
func (a *roundRobin) arbitrate(requesting func(i int) bool) int {
	if a.grant >= 0 {
		return a.grant
	}

	for k := 0; k < a.n; k++ {
		i := (a.next + k) % a.n
		if requesting(i) {
			a.grant = i
			a.next = (i + 1) % a.n

			return i
		}
	}

	return -1
}

func (a *roundRobin) release() {
	a.grant = -1
}

func (a *roundRobin) reset() {
	a.grant = -1
	a.next = 0
}
