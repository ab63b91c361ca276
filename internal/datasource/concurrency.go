package datasource

import (
	"context"
	"sync"
)

// runBounded runs fn once per index in [0, n) with at most maxInFlight
// goroutines active at a time, collecting the first error encountered.
// Results are written into the slot the caller's fn closure owns; ordering
// across goroutines is not otherwise guaranteed, matching the "collect
// (i, s, v) preserving pairing but not order" fan-out model used for
// embedding and per-document search work.
func runBounded(ctx context.Context, n, maxInFlight int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}

	sem := make(chan struct{}, maxInFlight)
	var wg sync.WaitGroup
	errCh := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}

			if err := fn(ctx, i); err != nil {
				errCh <- err
			}
		}(i)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

const (
	// maxInFlightEmbeds bounds concurrent embed requests during upsert.
	maxInFlightEmbeds = 24
	// maxInFlightDocumentTasks bounds concurrent per-document work
	// (metadata load, optional expansion) during search.
	maxInFlightDocumentTasks = 16
)
