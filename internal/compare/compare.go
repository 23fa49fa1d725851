// Package compare scores a recorded trace against a reference trace.
//
// For every sample i the error is the sum over channels of
// |(a_i - r_i) / r_i| * 100 / N, where N is the number of samples; the
// trace error is the maximum of that sum over all samples. A sample where
// both values are zero contributes nothing. Any NaN aborts the comparison.
package compare

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dctl/internal/storage"
)

// DefaultThreshold is the passing bound on the trace error, in percent.
const DefaultThreshold = 1.0

var (
	ErrNaN           = errors.New("compare: NaN in trace")
	ErrInf           = errors.New("compare: error is infinite")
	ErrLength        = errors.New("compare: traces differ in length")
	ErrMissingColumn = errors.New("compare: missing column")
)

type Report struct {
	Channels  []string
	Samples   int
	Threshold float64
	// Error is the trace error in percent.
	Error float64
	// PerChannel is each channel's largest single-sample contribution.
	PerChannel map[string]float64
	MaxAbsDiff map[string]float64
	Pass       bool
}

// Series compares channel-major data: actual[c][i] is channel c at sample i.
func Series(names []string, actual, reference [][]float64, threshold float64) (*Report, error) {
	if len(actual) != len(names) || len(reference) != len(names) {
		return nil, fmt.Errorf("%w: %d names for %d/%d channels", ErrLength, len(names), len(actual), len(reference))
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrMissingColumn)
	}

	n := len(reference[0])
	for c, name := range names {
		if len(actual[c]) != n || len(reference[c]) != n {
			return nil, fmt.Errorf("%w: channel %s has %d/%d samples, want %d", ErrLength, name, len(actual[c]), len(reference[c]), n)
		}
		if floats.HasNaN(actual[c]) {
			return nil, fmt.Errorf("%w: recorded %s", ErrNaN, name)
		}
		if floats.HasNaN(reference[c]) {
			return nil, fmt.Errorf("%w: reference %s", ErrNaN, name)
		}
	}

	report := &Report{
		Channels:   names,
		Samples:    n,
		Threshold:  threshold,
		PerChannel: make(map[string]float64, len(names)),
		MaxAbsDiff: make(map[string]float64, len(names)),
	}
	if n == 0 {
		report.Pass = true
		return report, nil
	}

	perSample := make([]float64, n)
	term := make([]float64, n)
	for c, name := range names {
		for i := range term {
			term[i] = relative(actual[c][i], reference[c][i]) * 100 / float64(n)
		}
		floats.Add(perSample, term)
		report.PerChannel[name] = floats.Max(term)
		report.MaxAbsDiff[name] = floats.Distance(actual[c], reference[c], math.Inf(1))
	}

	report.Error = floats.Max(perSample)
	if math.IsInf(report.Error, 0) {
		return report, ErrInf
	}
	report.Pass = report.Error <= threshold
	return report, nil
}

func relative(a, r float64) float64 {
	if a == r {
		return 0
	}
	return math.Abs((a - r) / r)
}

// Tables compares the named numeric columns of two CSV tables.
func Tables(actual, reference *storage.Table, columns []string, threshold float64) (*Report, error) {
	a := make([][]float64, len(columns))
	r := make([][]float64, len(columns))
	for i, col := range columns {
		var ok bool
		if a[i], ok = actual.Data[col]; !ok {
			return nil, fmt.Errorf("%w: recorded %s", ErrMissingColumn, col)
		}
		if r[i], ok = reference.Data[col]; !ok {
			return nil, fmt.Errorf("%w: reference %s", ErrMissingColumn, col)
		}
	}
	return Series(columns, a, r, threshold)
}

// SharedColumns lists the numeric columns of reference that actual also has,
// in reference order, skipping the given keys.
func SharedColumns(actual, reference *storage.Table, skip ...string) []string {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}
	var cols []string
	for _, col := range reference.Columns {
		if skipped[col] {
			continue
		}
		if _, ok := reference.Data[col]; !ok {
			continue
		}
		if _, ok := actual.Data[col]; ok {
			cols = append(cols, col)
		}
	}
	return cols
}
