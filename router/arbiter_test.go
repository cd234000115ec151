package router

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Round robin arbiter", func() {
	It("should rotate priority past the last grant", func() {
		a := newRoundRobin(4)
		all := func(int) bool { return true }

		grants := []int{}
		for i := 0; i < 6; i++ {
			grants = append(grants, a.arbitrate(all))
			a.release()
		}

		Expect(grants).To(Equal([]int{0, 1, 2, 3, 0, 1}))
	})

	It("should hold the grant until released", func() {
		a := newRoundRobin(3)
		Expect(a.arbitrate(func(i int) bool { return i == 2 })).To(Equal(2))
		Expect(a.arbitrate(func(i int) bool { return i == 0 })).To(Equal(2))

		a.release()
		Expect(a.arbitrate(func(i int) bool { return i == 0 })).To(Equal(0))
	})

	It("should report no grant without requests", func() {
		a := newRoundRobin(3)
		Expect(a.arbitrate(func(int) bool { return false })).To(Equal(-1))
	})
})
