package compare

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dctl/internal/storage"
)

func TestSeries_Identical(t *testing.T) {
	data := [][]float64{{1, 2, 3}, {0, -1, 4}}
	report, err := Series([]string{"x0", "x1"}, data, data, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, report.Pass)
	assert.Zero(t, report.Error)
	assert.Equal(t, 3, report.Samples)
}

func TestSeries_RelativeError(t *testing.T) {
	actual := [][]float64{{1.1, 2, 4}, {1, 1, 1}}
	ref := [][]float64{{1, 2, 4}, {1, 1, 0.5}}

	report, err := Series([]string{"y", "x"}, actual, ref, DefaultThreshold)
	require.NoError(t, err)

	// sample 0: 10% / 3 from y; sample 2: 100% / 3 from x
	assert.InDelta(t, 100.0/3, report.Error, 1e-9)
	assert.InDelta(t, 10.0/3, report.PerChannel["y"], 1e-9)
	assert.InDelta(t, 0.5, report.MaxAbsDiff["x"], 1e-12)
	assert.False(t, report.Pass)

	report, err = Series([]string{"y", "x"}, actual, ref, 50)
	require.NoError(t, err)
	assert.True(t, report.Pass)
}

func TestSeries_Errors(t *testing.T) {
	tests := []struct {
		name   string
		actual [][]float64
		ref    [][]float64
		want   error
	}{
		{"nan recorded", [][]float64{{1, math.NaN()}}, [][]float64{{1, 1}}, ErrNaN},
		{"nan reference", [][]float64{{1, 1}}, [][]float64{{math.NaN(), 1}}, ErrNaN},
		{"length", [][]float64{{1}}, [][]float64{{1, 1}}, ErrLength},
		{"zero reference", [][]float64{{1, 1}}, [][]float64{{0, 1}}, ErrInf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Series([]string{"y"}, tt.actual, tt.ref, DefaultThreshold)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Series([]string{"a", "b"}, [][]float64{{1}}, [][]float64{{1}}, 1)
	assert.ErrorIs(t, err, ErrLength)
}

func TestTables(t *testing.T) {
	actual, err := storage.ReadTable(strings.NewReader("step,time,measurement,mode\n1,0.01,1.0,auto\n2,0.02,2.0,auto\n"))
	require.NoError(t, err)
	ref, err := storage.ReadTable(strings.NewReader("time,measurement,other\n0.01,1.0,5\n0.02,2.02,6\n"))
	require.NoError(t, err)

	cols := SharedColumns(actual, ref, "time")
	assert.Equal(t, []string{"measurement"}, cols)

	report, err := Tables(actual, ref, cols, DefaultThreshold)
	require.NoError(t, err)
	assert.InDelta(t, (0.02/2.02)*100/2, report.Error, 1e-9)
	assert.True(t, report.Pass)

	_, err = Tables(actual, ref, []string{"other"}, DefaultThreshold)
	assert.ErrorIs(t, err, ErrMissingColumn)
}
