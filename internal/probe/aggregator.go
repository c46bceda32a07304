package probe

import "sync"

// aggregator collects one terminal ProbeResult per candidate. Results are
// stored by original input position, so the finalized report is deterministic
// no matter which worker finished first.
type aggregator struct {
	mu      sync.Mutex
	tenant  string
	total   int
	results []*ProbeResult
}

func newAggregator(tenant string, total int) *aggregator {
	return &aggregator{
		tenant:  tenant,
		total:   total,
		results: make([]*ProbeResult, total),
	}
}

// record stores the result for the candidate at the given input position.
// Called concurrently from the collector; a position is recorded at most once
// by construction of the dispatch loop.
func (a *aggregator) record(pos int, res ProbeResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.results[pos] = &res
}

// finalize builds the report. Candidates with no recorded result (possible
// only after cancellation) are excluded and mark the report incomplete.
func (a *aggregator) finalize() *Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	rep := &Report{
		Tenant:       a.tenant,
		TotalChecked: a.total,
	}

	for _, res := range a.results {
		if res == nil {
			continue
		}
		rep.Resolved++
		rep.Results = append(rep.Results, *res)
		switch res.Outcome {
		case Exists:
			rep.Found = append(rep.Found, *res)
		case DoesNotExist:
			rep.NotFoundCount++
		default:
			rep.IndeterminateCount++
		}
	}

	rep.Incomplete = rep.Resolved < rep.TotalChecked
	return rep
}
