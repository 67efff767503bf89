// Package checks implements the independent audit routines that inspect a
// connected directory session and produce findings. Checks are pure
// functions of connector query results: they share no state and may run in
// parallel against one serialized session.
package checks

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adsecurecheck/adaudit/internal/audit"
	"github.com/adsecurecheck/adaudit/internal/directory"
)

// Check is one audit routine. Run returns nil when nothing was flagged.
type Check struct {
	Name string
	Run  func(ctx context.Context, conn directory.Connector) (*audit.Finding, error)
}

// Runner executes checks with bounded concurrency, pacing directory traffic
// with a rate limiter. Per-check failures are logged and skipped so one bad
// query never aborts the run; findings land in the accumulator in catalog
// order regardless of completion order.
type Runner struct {
	Concurrency int
	RateLimit   int // queries started per second, 0 disables pacing
	Logger      *zap.SugaredLogger
}

// Run executes every check of the given families concurrently and appends
// the surviving findings to acc, family by family, catalog order within a
// family. The returned error is only ever a context cancellation.
func (r *Runner) Run(ctx context.Context, conn directory.Connector, acc *audit.Accumulator, families ...[]Check) error {
	concurrency := r.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var limiter *rate.Limiter
	if r.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.RateLimit), r.RateLimit)
	}

	var familyWG sync.WaitGroup
	results := make([][]*audit.Finding, len(families))

	for fi, family := range families {
		familyWG.Add(1)
		go func(fi int, family []Check) {
			defer familyWG.Done()
			results[fi] = r.runFamily(ctx, conn, family, concurrency, limiter)
		}(fi, family)
	}
	familyWG.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, family := range results {
		for _, finding := range family {
			if finding == nil {
				continue
			}
			if err := acc.Append(*finding); err != nil {
				r.Logger.Errorw("dropping malformed finding", "title", finding.Title, "error", err)
			}
		}
	}
	return nil
}

func (r *Runner) runFamily(ctx context.Context, conn directory.Connector, family []Check, concurrency int, limiter *rate.Limiter) []*audit.Finding {
	sem := make(chan struct{}, concurrency)
	findings := make([]*audit.Finding, len(family))
	var wg sync.WaitGroup

	for i, check := range family {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
			}
			if ctx.Err() != nil {
				return
			}

			finding, err := check.Run(ctx, conn)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				// Query failures stay inside their originating check.
				r.Logger.Warnw("check failed, skipping", "check", check.Name, "error", err)
				return
			}
			findings[i] = finding
		}(i, check)
	}
	wg.Wait()
	return findings
}

// parseUAC converts a userAccountControl attribute to its bitmask. Returns
// ok=false for the unset/ambiguous encodings directories hand back.
func parseUAC(raw string) (int, bool) {
	if raw == "" || raw == "0" || raw == "[]" {
		return 0, raw == "0"
	}
	value := 0
	for _, ch := range raw {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		value = value*10 + int(ch-'0')
	}
	return value, true
}
