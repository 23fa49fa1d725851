package statespace

import (
	"fmt"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dctl/internal/dynamo"
)

// Discrete is a linear, discrete-time plant.
type Discrete struct {
	a, b, c, d *mat.Dense

	x *mat.VecDense
	y *mat.VecDense

	// scratch for the state update
	next *mat.VecDense
	bu   *mat.VecDense
	du   *mat.VecDense
}

// New validates the matrix shapes and copies A, B, C, D and x0.
// Shapes must satisfy A n×n, B n×m, C p×n, D p×m and len(x0) = n.
func New(a, b, c, d mat.Matrix, x0 []float64) (*Discrete, error) {
	if err := checkDims(a, b, c, d, len(x0)); err != nil {
		return nil, err
	}
	n, _ := a.Dims()
	p, _ := c.Dims()

	s := &Discrete{
		a:    mat.DenseCopyOf(a),
		b:    mat.DenseCopyOf(b),
		c:    mat.DenseCopyOf(c),
		d:    mat.DenseCopyOf(d),
		x:    mat.NewVecDense(n, nil),
		y:    mat.NewVecDense(p, nil),
		next: mat.NewVecDense(n, nil),
		bu:   mat.NewVecDense(n, nil),
		du:   mat.NewVecDense(p, nil),
	}
	s.load(x0)
	return s, nil
}

func checkDims(a, b, c, d mat.Matrix, nx int) error {
	for _, op := range []struct {
		name string
		m    mat.Matrix
	}{{"A", a}, {"B", b}, {"C", c}, {"D", d}} {
		if isNil(op.m) {
			return &dynamo.DimensionError{Operand: op.name, Want: "a non-nil matrix"}
		}
		if r, c := op.m.Dims(); r == 0 || c == 0 {
			return &dynamo.DimensionError{Operand: op.name, Rows: r, Cols: c, Want: "a non-empty matrix"}
		}
	}
	ar, ac := a.Dims()
	br, bc := b.Dims()
	cr, cc := c.Dims()
	dr, dc := d.Dims()

	switch {
	case ar != ac:
		return &dynamo.DimensionError{Operand: "A", Rows: ar, Cols: ac, Want: "a square matrix"}
	case br != ar:
		return &dynamo.DimensionError{Operand: "B", Rows: br, Cols: bc, Want: fmt.Sprintf("%d rows", ar)}
	case cc != ar:
		return &dynamo.DimensionError{Operand: "C", Rows: cr, Cols: cc, Want: fmt.Sprintf("%d columns", ar)}
	case dr != cr || dc != bc:
		return &dynamo.DimensionError{Operand: "D", Rows: dr, Cols: dc, Want: fmt.Sprintf("%dx%d", cr, bc)}
	case nx != ar:
		return &dynamo.DimensionError{Operand: "x0", Rows: nx, Cols: 1, Want: fmt.Sprintf("%d elements", ar)}
	}
	return nil
}

// isNil also catches typed nil pointers such as a nil *mat.Dense held in a
// mat.Matrix, whose methods would panic.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// load sets the state and the output it implies with a zero input.
func (s *Discrete) load(x0 []float64) {
	for i, v := range x0 {
		s.x.SetVec(i, v)
	}
	s.y.MulVec(s.c, s.x)
}

// Evaluate computes y = C*x + D*u from the current state, then advances
// x <- A*x + B*u. An input of the wrong length leaves the plant untouched.
func (s *Discrete) Evaluate(u mat.Vector) error {
	_, m := s.b.Dims()
	if isNil(u) || u.Len() != m {
		got := 0
		if !isNil(u) {
			got = u.Len()
		}
		return &dynamo.DimensionError{Operand: "u", Rows: got, Cols: 1, Want: fmt.Sprintf("%d elements", m)}
	}

	s.y.MulVec(s.c, s.x)
	s.du.MulVec(s.d, u)
	s.y.AddVec(s.y, s.du)

	s.next.MulVec(s.a, s.x)
	s.bu.MulVec(s.b, u)
	s.next.AddVec(s.next, s.bu)
	s.x.CopyVec(s.next)
	return nil
}

// Step is Evaluate on a plain slice; it returns a copy of the new output.
func (s *Discrete) Step(u dynamo.Vector) (dynamo.Vector, error) {
	_, m := s.b.Dims()
	if len(u) != m {
		return nil, &dynamo.DimensionError{Operand: "u", Rows: len(u), Cols: 1, Want: fmt.Sprintf("%d elements", m)}
	}
	if err := s.Evaluate(mat.NewVecDense(m, u.Clone())); err != nil {
		return nil, err
	}
	return s.Output(), nil
}

// Peek returns C*x + D*u for the current state without advancing it.
func (s *Discrete) Peek(u dynamo.Vector) (dynamo.Vector, error) {
	_, m := s.b.Dims()
	p, _ := s.c.Dims()
	if len(u) != m {
		return nil, &dynamo.DimensionError{Operand: "u", Rows: len(u), Cols: 1, Want: fmt.Sprintf("%d elements", m)}
	}
	y := mat.NewVecDense(p, nil)
	y.MulVec(s.c, s.x)
	du := mat.NewVecDense(p, nil)
	du.MulVec(s.d, mat.NewVecDense(m, u.Clone()))
	y.AddVec(y, du)
	return vecData(y), nil
}

// State returns a copy of x.
func (s *Discrete) State() dynamo.Vector {
	return vecData(s.x)
}

// Output returns a copy of the most recent y.
func (s *Discrete) Output() dynamo.Vector {
	return vecData(s.y)
}

// Dims returns the state, input and output orders.
func (s *Discrete) Dims() (n, m, p int) {
	n, _ = s.a.Dims()
	_, m = s.b.Dims()
	p, _ = s.c.Dims()
	return n, m, p
}

// Reset reinitializes the state explicitly.
func (s *Discrete) Reset(x0 []float64) error {
	n, _ := s.a.Dims()
	if len(x0) != n {
		return &dynamo.DimensionError{Operand: "x0", Rows: len(x0), Cols: 1, Want: fmt.Sprintf("%d elements", n)}
	}
	s.load(x0)
	return nil
}

func vecData(v *mat.VecDense) dynamo.Vector {
	out := make(dynamo.Vector, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
