package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs independent loops concurrently. Results keep the order of
// loops; the first error cancels the others and is returned.
func RunAll(ctx context.Context, loops []*Loop) ([]*Result, error) {
	results := make([]*Result, len(loops))

	g, ctx := errgroup.WithContext(ctx)
	for i, l := range loops {
		g.Go(func() error {
			res, err := l.Run(ctx)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
