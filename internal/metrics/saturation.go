package metrics

import "github.com/san-kum/dctl/internal/dynamo"

// Saturation is the fraction of cycles whose output sat on a bound.
type Saturation struct {
	name      string
	saturated int
	samples   int
}

func NewSaturation() *Saturation {
	return &Saturation{
		name: "saturation_ratio",
	}
}

func (s *Saturation) Name() string {
	return s.name
}

func (s *Saturation) Observe(sample dynamo.Sample) {
	s.samples++
	if sample.Saturated {
		s.saturated++
	}
}

func (s *Saturation) Value() float64 {
	if s.samples == 0 {
		return 0
	}
	return float64(s.saturated) / float64(s.samples)
}

func (s *Saturation) Reset() {
	s.saturated = 0
	s.samples = 0
}
