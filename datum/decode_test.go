package datum_test

import (
	"encoding/binary"
	"math"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mirvladiandr/t-pg/datum"
)

func be16(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var _ = Describe("Decode", func() {
	Describe("fixed-width numerics", func() {
		It("round-trips big-endian encodings of exactly sizeof(T) bytes", func() {
			Expect(datum.Decode[int16](be16(0x1234), false)).Should(Equal(int16(0x1234)))
			Expect(datum.Decode[int32](be32(0xDEADBEEF), false)).Should(Equal(int32(-559038737)))
			Expect(datum.Decode[int64](be64(uint64(1)<<40), false)).Should(Equal(int64(1) << 40))
			Expect(datum.Decode[uint16](be16(65535), false)).Should(Equal(uint16(65535)))
			Expect(datum.Decode[uint32](be32(7), false)).Should(Equal(uint32(7)))
			Expect(datum.Decode[uint64](be64(42), false)).Should(Equal(uint64(42)))
			Expect(datum.Decode[float32](be32(math.Float32bits(1.5)), false)).Should(Equal(float32(1.5)))
			Expect(datum.Decode[float64](be64(math.Float64bits(-2.25)), false)).Should(Equal(-2.25))
		})

		It("round-trips the binary encoder", func() {
			b, err := datum.EncodeBinary(datum.DInt(-12345))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(datum.Decode[int64](b, false)).Should(Equal(int64(-12345)))

			b, err = datum.EncodeBinary(datum.DFloat(3.75))
			Expect(err).ShouldNot(HaveOccurred())
			Expect(datum.Decode[float64](b, false)).Should(Equal(3.75))
		})

		It("treats a length mismatch as absent, not as an error", func() {
			Expect(datum.Decode[int64]([]byte{1, 2, 3}, false)).Should(Equal(int64(0)))
			Expect(datum.Decode[int16](be32(9), false)).Should(Equal(int16(0)))
		})

		It("decodes a null cell to zero", func() {
			Expect(datum.Decode[int32](nil, true)).Should(Equal(int32(0)))
		})
	})

	Describe("bool", func() {
		It("reads the first byte only", func() {
			Expect(datum.Decode[bool]([]byte{0}, false)).Should(BeFalse())
			Expect(datum.Decode[bool]([]byte{1}, false)).Should(BeTrue())
			Expect(datum.Decode[bool]([]byte{0xFF}, false)).Should(BeTrue())
			Expect(datum.Decode[bool]([]byte{1, 0}, false)).Should(BeTrue())
		})

		It("reads a null cell as false without consulting the null flag", func() {
			Expect(datum.Decode[bool](nil, true)).Should(BeFalse())
		})
	})

	Describe("text", func() {
		It("decodes client-encoding bytes", func() {
			raw := []byte{0xCF, 0xF0, 0xE8, 0xE2, 0xE5, 0xF2}
			Expect(datum.Decode[string](raw, false)).Should(Equal("Привет"))
		})

		It("decodes a null cell to the empty string", func() {
			Expect(datum.Decode[string]([]byte("x"), true)).Should(Equal(""))
		})
	})

	Describe("bytes", func() {
		It("aliases the raw cell without transformation", func() {
			raw := []byte{0, 1, 2, 0xFF}
			Expect(datum.Decode[[]byte](raw, false)).Should(Equal(raw))
		})

		It("decodes a null cell to an empty blob", func() {
			Expect(datum.Decode[[]byte]([]byte{1}, true)).Should(BeNil())
		})
	})

	Describe("timestamps", func() {
		epoch := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

		It("round-trips to millisecond precision", func() {
			d := time.Date(2024, time.May, 17, 10, 30, 15, 123456789, time.UTC)
			b, err := datum.EncodeBinary(datum.DTimestamp{Time: d})
			Expect(err).ShouldNot(HaveOccurred())

			got := datum.Decode[time.Time](b, false)
			want := d.Truncate(time.Millisecond)
			Expect(got.Equal(want)).Should(BeTrue())
		})

		It("decodes a null cell to the epoch instant", func() {
			got := datum.Decode[time.Time](nil, true)
			Expect(got.Equal(epoch)).Should(BeTrue())
		})

		It("counts microseconds since 2000-01-01", func() {
			b := be64(uint64(1500000)) // 1.5 seconds
			got := datum.Decode[time.Time](b, false)
			Expect(got.Equal(epoch.Add(1500 * time.Millisecond))).Should(BeTrue())
		})
	})
})

var _ = Describe("Text codec", func() {
	It("round-trips through the client encoding", func() {
		raw := datum.EncodeText("Привет")
		Expect(raw).Should(HaveLen(6))
		Expect(datum.DecodeText(raw)).Should(Equal("Привет"))
	})

	It("substitutes unmappable runes instead of failing", func() {
		raw := datum.EncodeText("漢")
		Expect(raw).ShouldNot(BeEmpty())
	})
})
