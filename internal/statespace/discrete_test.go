package statespace

import (
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dctl/internal/dynamo"
)

func integrator() *Discrete {
	s, err := New(
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{0}),
		[]float64{0},
	)
	Expect(err).NotTo(HaveOccurred())
	return s
}

func randomDense(r *rand.Rand, rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = r.NormFloat64() * 0.4
	}
	return mat.NewDense(rows, cols, data)
}

var _ = Describe("New", func() {
	DescribeTable("rejects inconsistent shapes",
		func(a, b, c, d mat.Matrix, x0 []float64, operand string) {
			s, err := New(a, b, c, d, x0)
			Expect(s).To(BeNil())
			Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
			var de *dynamo.DimensionError
			Expect(errors.As(err, &de)).To(BeTrue())
			Expect(de.Operand).To(Equal(operand))
		},
		Entry("A not square", mat.NewDense(2, 3, nil), mat.NewDense(2, 1, nil), mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), []float64{0, 0}, "A"),
		Entry("B rows differ from n", mat.NewDense(2, 2, nil), mat.NewDense(3, 1, nil), mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), []float64{0, 0}, "B"),
		Entry("C columns differ from n", mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), mat.NewDense(1, 3, nil), mat.NewDense(1, 1, nil), []float64{0, 0}, "C"),
		Entry("D rows differ from C rows", mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), mat.NewDense(1, 2, nil), mat.NewDense(2, 1, nil), []float64{0, 0}, "D"),
		Entry("D columns differ from B columns", mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), mat.NewDense(1, 2, nil), mat.NewDense(1, 2, nil), []float64{0, 0}, "D"),
		Entry("initial state length", mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), []float64{0}, "x0"),
		Entry("nil matrix", mat.NewDense(2, 2, nil), nil, mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), []float64{0, 0}, "B"),
		Entry("typed nil dense matrix", mat.NewDense(2, 2, nil), mat.NewDense(2, 1, nil), (*mat.Dense)(nil), mat.NewDense(1, 1, nil), []float64{0, 0}, "C"),
		Entry("typed nil symmetric matrix", (*mat.SymDense)(nil), mat.NewDense(2, 1, nil), mat.NewDense(1, 2, nil), mat.NewDense(1, 1, nil), []float64{0, 0}, "A"),
	)

	It("copies the matrices it is given", func() {
		a := mat.NewDense(1, 1, []float64{1})
		s, err := New(a, mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, nil), []float64{0})
		Expect(err).NotTo(HaveOccurred())
		a.Set(0, 0, 100)
		_, err = s.Step(dynamo.Vector{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.State()).To(Equal(dynamo.Vector{1}))
	})

	It("reports the initial output as C*x0", func() {
		s, err := New(
			mat.NewDense(2, 2, []float64{1, 0, 0, 1}),
			mat.NewDense(2, 1, []float64{1, 1}),
			mat.NewDense(1, 2, []float64{2, 3}),
			mat.NewDense(1, 1, []float64{5}),
			[]float64{1, 1},
		)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Output()).To(Equal(dynamo.Vector{5}))
		n, m, p := s.Dims()
		Expect([]int{n, m, p}).To(Equal([]int{2, 1, 1}))
	})
})

var _ = Describe("Step", func() {
	It("computes the output from the state before the update", func() {
		s := integrator()
		var outputs, states []float64
		for _, u := range []float64{1, 1, 1} {
			y, err := s.Step(dynamo.Vector{u})
			Expect(err).NotTo(HaveOccurred())
			outputs = append(outputs, y[0])
			states = append(states, s.State()[0])
		}
		Expect(outputs).To(Equal([]float64{0, 1, 2}))
		Expect(states).To(Equal([]float64{1, 2, 3}))
	})

	It("adds the feedthrough term", func() {
		s, err := New(
			mat.NewDense(1, 1, []float64{0.5}),
			mat.NewDense(1, 1, []float64{1}),
			mat.NewDense(1, 1, []float64{2}),
			mat.NewDense(1, 1, []float64{3}),
			[]float64{4},
		)
		Expect(err).NotTo(HaveOccurred())
		y, err := s.Step(dynamo.Vector{1})
		Expect(err).NotTo(HaveOccurred())
		Expect(y).To(Equal(dynamo.Vector{2*4 + 3*1}))
		Expect(s.State()).To(Equal(dynamo.Vector{0.5*4 + 1}))
	})

	It("rejects an input of the wrong length without touching the state", func() {
		s := integrator()
		_, err := s.Step(dynamo.Vector{1, 2})
		Expect(errors.Is(err, dynamo.ErrDimensionMismatch)).To(BeTrue())
		Expect(s.State()).To(Equal(dynamo.Vector{0}))
		Expect(s.Evaluate(nil)).To(MatchError(dynamo.ErrDimensionMismatch))
		Expect(s.Evaluate((*mat.VecDense)(nil))).To(MatchError(dynamo.ErrDimensionMismatch))
		Expect(s.State()).To(Equal(dynamo.Vector{0}))
	})

	It("is bit-for-bit deterministic", func() {
		run := func() ([]dynamo.Vector, []dynamo.Vector) {
			r := rand.New(rand.NewSource(7))
			s, err := New(randomDense(r, 4, 4), randomDense(r, 4, 2), randomDense(r, 3, 4), randomDense(r, 3, 2), []float64{1, -1, 0.5, 2})
			Expect(err).NotTo(HaveOccurred())
			var ys, xs []dynamo.Vector
			for k := 0; k < 200; k++ {
				y, err := s.Step(dynamo.Vector{math.Sin(float64(k)), math.Cos(float64(k) / 3)})
				Expect(err).NotTo(HaveOccurred())
				ys = append(ys, y)
				xs = append(xs, s.State())
			}
			return ys, xs
		}
		y1, x1 := run()
		y2, x2 := run()
		Expect(y1).To(Equal(y2))
		Expect(x1).To(Equal(x2))
	})

	It("lets NaN propagate", func() {
		s := integrator()
		_, err := s.Step(dynamo.Vector{math.NaN()})
		Expect(err).NotTo(HaveOccurred())
		Expect(math.IsNaN(s.State()[0])).To(BeTrue())
	})

	It("returns copies from the accessors", func() {
		s := integrator()
		x := s.State()
		x[0] = 42
		Expect(s.State()).To(Equal(dynamo.Vector{0}))
	})
})

var _ = Describe("Peek", func() {
	It("evaluates the output equation without stepping", func() {
		s, err := New(
			mat.NewDense(1, 1, []float64{2}),
			mat.NewDense(1, 1, []float64{1}),
			mat.NewDense(1, 1, []float64{1}),
			mat.NewDense(1, 1, []float64{0.5}),
			[]float64{3},
		)
		Expect(err).NotTo(HaveOccurred())
		y, err := s.Peek(dynamo.Vector{2})
		Expect(err).NotTo(HaveOccurred())
		Expect(y).To(Equal(dynamo.Vector{4}))
		Expect(s.State()).To(Equal(dynamo.Vector{3}))
		Expect(s.Output()).To(Equal(dynamo.Vector{3}))

		_, err = s.Peek(dynamo.Vector{})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})

var _ = Describe("Reset", func() {
	It("reloads the state explicitly", func() {
		s := integrator()
		_, _ = s.Step(dynamo.Vector{1})
		Expect(s.Reset([]float64{5})).To(Succeed())
		Expect(s.State()).To(Equal(dynamo.Vector{5}))
		Expect(s.Output()).To(Equal(dynamo.Vector{5}))
		Expect(s.Reset([]float64{1, 2})).To(MatchError(dynamo.ErrDimensionMismatch))
	})
})
