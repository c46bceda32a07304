package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/seclith/aadprobe/internal/httpx"
)

// ErrInvalidConfig marks configuration errors that must stop a run before any
// network activity.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	DefaultConcurrency = 10
	DefaultDelay       = 500 * time.Millisecond
	DefaultTimeout     = 15 * time.Second
)

type Config struct {
	Tenant      string
	Concurrency int
	Delay       time.Duration
	Timeout     time.Duration

	// Authority, ClientSecret and Scope override the probe constants; empty
	// means default. Tests point Authority at a local server.
	Authority    string
	ClientSecret string
	Scope        string
}

// Detector runs the concurrent probing engine: a fixed pool of workers pulls
// candidates from a shared queue, paces itself through the Governor, probes,
// classifies, and feeds an input-position-indexed aggregator.
type Detector struct {
	prober *Prober
	cfg    Config
	log    logrus.FieldLogger
}

func NewDetector(client httpx.Doer, cfg Config, log logrus.FieldLogger) (*Detector, error) {
	if cfg.Tenant == "" {
		return nil, fmt.Errorf("%w: tenant must not be empty", ErrInvalidConfig)
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalidConfig, cfg.Concurrency)
	}
	if cfg.Delay < 0 {
		return nil, fmt.Errorf("%w: delay must not be negative, got %s", ErrInvalidConfig, cfg.Delay)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must not be negative, got %s", ErrInvalidConfig, cfg.Timeout)
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	return &Detector{
		prober: NewProber(client, cfg.Authority, cfg.Tenant, cfg.ClientSecret, cfg.Scope),
		cfg:    cfg,
		log:    log,
	}, nil
}

type job struct {
	pos  int
	cand Candidate
}

type indexedResult struct {
	pos int
	res ProbeResult
}

// Run probes every candidate and returns the aggregated report. onResult, if
// non-nil, is invoked from a single goroutine as results complete, in
// completion order; the report itself is ordered by input position.
//
// On cancellation in-flight probes are aborted at the transport layer,
// unresolved candidates are left out of the report, and the report is marked
// incomplete; the returned error is ctx.Err().
func (d *Detector) Run(ctx context.Context, candidates []Candidate, onResult func(ProbeResult)) (*Report, error) {
	agg := newAggregator(d.cfg.Tenant, len(candidates))

	workers := d.cfg.Concurrency
	if workers > len(candidates) {
		workers = len(candidates)
	}
	if workers == 0 {
		return agg.finalize(), nil
	}

	governor := NewGovernor(workers, d.cfg.Delay)
	jobs := make(chan job)
	results := make(chan indexedResult, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for id := 0; id < workers; id++ {
		id := id
		go func() {
			defer wg.Done()
			d.worker(ctx, id, governor, jobs, results)
		}()
	}

	// Close results once every worker has drained out.
	go func() {
		defer close(results)
		wg.Wait()
	}()

	go func() {
		defer close(jobs)
		for pos, cand := range candidates {
			select {
			case <-ctx.Done():
				return
			case jobs <- job{pos: pos, cand: cand}:
			}
		}
	}()

	for ir := range results {
		agg.record(ir.pos, ir.res)
		if onResult != nil {
			onResult(ir.res)
		}
	}

	return agg.finalize(), ctx.Err()
}

func (d *Detector) worker(ctx context.Context, id int, governor *Governor, jobs <-chan job, results chan<- indexedResult) {
	for j := range jobs {
		if err := governor.Wait(ctx, id); err != nil {
			return
		}

		res := d.probeOne(ctx, j.cand)
		if res == nil {
			// Aborted by run-level cancellation; the candidate stays
			// unresolved rather than getting a synthetic outcome.
			return
		}

		results <- indexedResult{pos: j.pos, res: *res}
	}
}

// probeOne resolves a single candidate to its terminal result. Transport
// failures become Indeterminate; only run-level cancellation returns nil.
func (d *Detector) probeOne(ctx context.Context, cand Candidate) *ProbeResult {
	raw, terr := d.prober.Do(ctx, cand.ClientID, d.cfg.Timeout)
	if terr != nil {
		if ctx.Err() != nil {
			return nil
		}
		d.log.WithFields(logrus.Fields{
			"client_id": cand.ClientID,
			"kind":      terr.Kind.String(),
		}).Debugf("probe failed: %v", terr.Err)

		return &ProbeResult{
			Candidate: cand,
			Outcome:   Indeterminate,
			Detail:    terr.Error(),
			Err:       terr,
		}
	}

	outcome, detail := Classify(raw)
	d.log.WithFields(logrus.Fields{
		"client_id":   cand.ClientID,
		"status":      raw.StatusCode,
		"error_codes": detail.ErrorCodes,
		"outcome":     outcome.String(),
	}).Debug("probe classified")

	return &ProbeResult{
		Candidate:  cand,
		Outcome:    outcome,
		HTTPStatus: raw.StatusCode,
		ErrorCodes: detail.ErrorCodes,
		Detail:     detail.Description,
	}
}
