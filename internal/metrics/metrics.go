// Package metrics accumulates figures of merit over a closed-loop run.
package metrics

import "github.com/san-kum/dctl/internal/dynamo"

// Default returns the metric set recorded for every closed-loop run.
func Default(ts float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewIAE(ts),
		NewMaxError(),
		NewControlEffort(),
		NewSaturation(),
	}
}
