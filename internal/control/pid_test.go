package control

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dctl/internal/dynamo"
)

func mustPID(kc, ti, ts, umin, umax float64) *PID {
	c, err := NewPID(kc, ti, ts, umin, umax)
	Expect(err).NotTo(HaveOccurred())
	return c
}

var _ = Describe("NewPID", func() {
	DescribeTable("rejects bad parameters",
		func(kc, ti, ts, umin, umax float64) {
			_, err := NewPID(kc, ti, ts, umin, umax)
			Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
		},
		Entry("zero ts", 1.0, 1.0, 0.0, -1.0, 1.0),
		Entry("negative ts", 1.0, 1.0, -0.1, -1.0, 1.0),
		Entry("zero ti", 1.0, 0.0, 0.1, -1.0, 1.0),
		Entry("inverted bounds", 1.0, 1.0, 0.1, 1.0, -1.0),
		Entry("NaN gain", math.NaN(), 1.0, 0.1, -1.0, 1.0),
	)

	It("starts in auto without freeze", func() {
		c := mustPID(1, 1, 0.1, -1, 1)
		Expect(c.Mode()).To(Equal(Auto))
		Expect(c.FreezeMode()).To(Equal(NoFreeze))
		Expect(c.Integral()).To(BeZero())
	})

	It("treats NewP as an infinite integral time", func() {
		c, err := NewP(0.8, 0.01, -10, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Params().HasIntegral()).To(BeFalse())
		Expect(c.GetParams()).NotTo(HaveKey("Ti"))
	})
})

var _ = Describe("PID in auto", func() {
	It("computes the proportional action inside the bounds", func() {
		c, _ := NewP(0.8, 0.01, -10, 10)
		Expect(c.Evaluate(0, 1, 0)).To(Equal(0.8))
		Expect(c.Evaluate(4, 5, 0)).To(Equal(0.8))
		Expect(c.Integral()).To(BeZero())
	})

	It("advances the integral before computing the output", func() {
		c := mustPID(2, 1, 0.1, -100, 100)
		Expect(c.Evaluate(0, 1, 0)).To(BeNumerically("~", 2*(1+0.1), 1e-12))
		Expect(c.Evaluate(0, 1, 0)).To(BeNumerically("~", 2*(1+0.2), 1e-12))
		Expect(c.Integral()).To(BeNumerically("~", 0.2, 1e-12))
	})

	It("keeps the output inside the bounds for any error sequence", func() {
		c := mustPID(3, 0.5, 0.01, -2, 5)
		for k := 0; k < 2000; k++ {
			sp := 40 * math.Sin(float64(k)/37)
			u := c.Evaluate(0, sp, 0)
			Expect(u).To(BeNumerically(">=", -2))
			Expect(u).To(BeNumerically("<=", 5))
		}
	})

	It("back-corrects the integral on saturation without freeze", func() {
		c := mustPID(1, 0.1, 0.1, -1, 1)
		for k := 0; k < 50; k++ {
			u := c.Evaluate(0, 3, 0)
			Expect(u).To(Equal(1.0))
			Expect(1 * (3 + c.Integral())).To(BeNumerically("~", 1.0, 1e-12))
		}
	})

	It("holds the integral under FreezeUp while the output is pushed above umax", func() {
		c := mustPID(1, 0.5, 0.1, -1, 1)
		c.SetControlSignalState(FreezeUp)
		c.Evaluate(0, 0.5, 0)
		prev := c.Integral()
		for k := 0; k < 20; k++ {
			Expect(c.Evaluate(0, 2, 0)).To(Equal(1.0))
			Expect(c.Integral()).To(BeNumerically("<=", prev))
			prev = c.Integral()
		}
	})

	It("holds the integral under FreezeDown while the output is pushed below umin", func() {
		c := mustPID(1, 0.5, 0.1, -1, 1)
		c.SetControlSignalState(FreezeDown)
		prev := c.Integral()
		for k := 0; k < 20; k++ {
			Expect(c.Evaluate(0, -2, 0)).To(Equal(-1.0))
			Expect(c.Integral()).To(BeNumerically(">=", prev))
			prev = c.Integral()
		}
	})

	It("keeps integrating under FreezeUp until the output reaches umax", func() {
		c := mustPID(1, 1, 0.1, -10, 1)
		c.SetControlSignalState(FreezeUp)
		Expect(c.Evaluate(0, 0.95, 0)).To(Equal(1.0))
		Expect(c.Integral()).To(BeNumerically("~", 0.095, 1e-12))
		for k := 0; k < 5; k++ {
			Expect(c.Evaluate(0, 0.95, 0)).To(Equal(1.0))
			Expect(c.Integral()).To(BeNumerically("~", 0.095, 1e-12))
		}
	})

	It("keeps integrating under FreezeDown until the output reaches umin", func() {
		c := mustPID(1, 1, 0.1, -1, 10)
		c.SetControlSignalState(FreezeDown)
		Expect(c.Evaluate(0, -0.95, 0)).To(Equal(-1.0))
		for k := 0; k < 5; k++ {
			Expect(c.Evaluate(0, -0.95, 0)).To(Equal(-1.0))
			Expect(c.Integral()).To(BeNumerically("~", -0.095, 1e-12))
		}
	})

	It("lets the integral unwind under FreezeUp once the error reverses", func() {
		c := mustPID(1, 0.5, 0.1, -10, 1)
		c.SetControlSignalState(FreezeUp)
		for k := 0; k < 5; k++ {
			c.Evaluate(0, 2, 0)
		}
		before := c.Integral()
		c.Evaluate(0, -0.5, 0)
		Expect(c.Integral()).To(BeNumerically("<", before))
	})

	It("propagates NaN measurements", func() {
		c := mustPID(1, 1, 0.1, -1, 1)
		Expect(math.IsNaN(c.Evaluate(math.NaN(), 0, 0))).To(BeTrue())
	})
})

var _ = Describe("PID mode switching", func() {
	It("forces the output to the tracking signal", func() {
		c := mustPID(0.8, 2, 0.01, -10, 10)
		c.SetControllerState(Tracking)
		Expect(c.Evaluate(1, 3, 4.2)).To(Equal(4.2))
		Expect(0.8 * (2 + c.Integral())).To(BeNumerically("~", 4.2, 1e-12))
	})

	It("passes out-of-range tracking signals through unclamped", func() {
		c := mustPID(0.8, 2, 0.01, -10, 10)
		c.SetControllerState(Tracking)
		Expect(c.Evaluate(0, 0, 12)).To(Equal(12.0))
	})

	It("transfers from tracking back to auto without a bump", func() {
		c := mustPID(0.8, 2, 0.01, -10, 10)
		for k := 0; k < 10; k++ {
			c.Evaluate(0.5, 1, 0)
		}
		c.SetControllerState(Tracking)
		c.Evaluate(0.5, 1, 3.7)
		c.SetControllerState(Auto)
		Expect(math.Abs(c.Evaluate(0.5, 1, 0) - 3.7)).To(BeNumerically("<", 1e-9))
	})

	It("resumes integration on the cycle after the transfer", func() {
		c := mustPID(1, 1, 0.1, -10, 10)
		c.SetControllerState(Tracking)
		c.Evaluate(0, 1, 2)
		c.SetControllerState(Auto)
		c.Evaluate(0, 1, 0)
		Expect(c.Evaluate(0, 1, 0)).To(BeNumerically("~", 2.1, 1e-12))
	})

	It("holds the last output in manual without integrating", func() {
		c := mustPID(1, 1, 0.1, -10, 10)
		u := c.Evaluate(0, 1, 0)
		integral := c.Integral()
		c.SetControllerState(Manual)
		for k := 0; k < 5; k++ {
			Expect(c.Evaluate(0, 7, 3)).To(Equal(u))
		}
		Expect(c.Integral()).To(Equal(integral))
	})

	It("lets an operator move the manual output", func() {
		c := mustPID(1, 1, 0.1, -10, 10)
		c.SetControllerState(Manual)
		c.SetManualOutput(2.5)
		Expect(c.Evaluate(0, 0, 0)).To(Equal(2.5))
	})

	It("latches freeze flags outside auto", func() {
		c := mustPID(1, 0.5, 0.1, -1, 1)
		c.SetControllerState(Manual)
		c.SetControlSignalState(FreezeUp)
		c.Evaluate(0, 5, 0)
		Expect(c.FreezeMode()).To(Equal(FreezeUp))

		c.SetControllerState(Auto)
		c.Evaluate(0, 5, 0)
		Expect(c.Integral()).To(BeZero())
	})

	It("clears state on Reset", func() {
		c := mustPID(1, 1, 0.1, -10, 10)
		c.Evaluate(0, 1, 0)
		c.Reset()
		Expect(c.Integral()).To(BeZero())
		Expect(c.Output()).To(BeZero())
	})
})

var _ = Describe("Mode names", func() {
	It("round-trips through text", func() {
		for _, m := range []Mode{Auto, Manual, Tracking} {
			text, err := m.MarshalText()
			Expect(err).NotTo(HaveOccurred())
			var back Mode
			Expect(back.UnmarshalText(text)).To(Succeed())
			Expect(back).To(Equal(m))
		}
	})

	It("parses freeze modes case-insensitively", func() {
		f, err := ParseFreezeMode("FREEZE_DOWN")
		Expect(err).NotTo(HaveOccurred())
		Expect(f).To(Equal(FreezeDown))
		_, err = ParseFreezeMode("sideways")
		Expect(err).To(HaveOccurred())
	})
})
