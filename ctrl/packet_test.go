package ctrl

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Packet", func() {
	It("should encode the header", func() {
		p := NewWriteRequest(NCMID, HostID, 0x202, 0x12345)

		Expect(p.Encode()).To(Equal([]uint16{1, 0, 4 << 10, 0x202, 0x2345, 0x1}))
	})

	It("should decode what it encodes", func() {
		p := NewEvent(SurveillanceID(3), HostID, 0x300, 2, 0)

		got, err := Decode(p.Encode())

		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(p))
		Expect(got.Dst).To(Equal(uint16(0x13)))
	})

	It("should reject short packets", func() {
		_, err := Decode([]uint16{1, 0})

		Expect(err).To(MatchError(ErrShortPacket))
	})

	It("should reject oversized payloads", func() {
		_, err := Decode(make([]uint16, headerWords+MaxPayload+1))

		Expect(err).To(MatchError(ErrPayloadTooBig))
	})

	It("should reject type 3", func() {
		_, err := Decode([]uint16{1, 0, 3 << 14})

		Expect(err).To(MatchError(ErrBadType))
	})

	It("should build replies", func() {
		req := NewReadRequest(NCMID, HostID, RegVendor)
		resp := req.Reply(RespReadOK, 0x5678, 0x1234)

		Expect(resp.Dst).To(Equal(HostID))
		Expect(resp.Src).To(Equal(NCMID))
		Expect(resp.Type).To(Equal(TypeReg))
		Expect(resp.Value(0)).To(Equal(uint32(0x12345678)))
		Expect(resp.Value(1)).To(Equal(uint32(0x1234)))
		Expect(resp.Value(2)).To(BeZero())
	})
})
