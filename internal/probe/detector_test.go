package probe

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// fixture describes the canned token-endpoint behavior for one client ID.
type fixture struct {
	codes   string        // error_codes JSON array
	status  int           // 0 means 400
	latency time.Duration // artificial response latency
	hang    bool          // never answer (forces a client-side timeout)
}

func fixtureServer(t *testing.T, fixtures map[string]fixture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		id := r.PostForm.Get("client_id")

		fx, ok := fixtures[id]
		if !ok {
			t.Errorf("unexpected client_id %q", id)
			fx = fixture{codes: "[]"}
		}

		if fx.hang {
			<-r.Context().Done()
			return
		}
		if fx.latency > 0 {
			time.Sleep(fx.latency)
		}

		status := fx.status
		if status == 0 {
			status = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write(errBody(fx.codes))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testDetector(t *testing.T, srv *httptest.Server, cfg Config) *Detector {
	t.Helper()
	cfg.Authority = srv.URL
	if cfg.Tenant == "" {
		cfg.Tenant = "contoso.onmicrosoft.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	d, err := NewDetector(srv.Client(), cfg, nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	return d
}

func candidateList(ids ...string) []Candidate {
	out := make([]Candidate, len(ids))
	for i, id := range ids {
		out[i] = Candidate{ClientID: id}
	}
	return out
}

func TestDetectorScenario(t *testing.T) {
	// A does not exist, B exists, C times out.
	srv := fixtureServer(t, map[string]fixture{
		"A": {codes: "[700016]"},
		"B": {codes: "[7000215]", status: http.StatusUnauthorized},
		"C": {hang: true},
	})
	d := testDetector(t, srv, Config{Concurrency: 1, Timeout: 200 * time.Millisecond})

	rep, err := d.Run(context.Background(), candidateList("A", "B", "C"), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if rep.TotalChecked != 3 || rep.Resolved != 3 {
		t.Errorf("TotalChecked/Resolved = %d/%d, want 3/3", rep.TotalChecked, rep.Resolved)
	}
	if rep.Incomplete {
		t.Error("completed run marked incomplete")
	}
	if len(rep.Found) != 1 || rep.Found[0].Candidate.ClientID != "B" {
		t.Errorf("Found = %+v, want exactly B", rep.Found)
	}
	if rep.NotFoundCount != 1 {
		t.Errorf("NotFoundCount = %d, want 1 (A)", rep.NotFoundCount)
	}
	if rep.IndeterminateCount != 1 {
		t.Errorf("IndeterminateCount = %d, want 1 (C)", rep.IndeterminateCount)
	}

	// C's result must carry the transport failure.
	var c *ProbeResult
	for i := range rep.Results {
		if rep.Results[i].Candidate.ClientID == "C" {
			c = &rep.Results[i]
		}
	}
	if c == nil {
		t.Fatal("C missing from Results")
	}
	if c.Err == nil || c.Err.Kind != TransportTimeout {
		t.Errorf("C.Err = %v, want timeout transport error", c.Err)
	}
}

func TestDetectorNoLossNoDuplicationAcrossConcurrency(t *testing.T) {
	const n = 40
	fixtures := make(map[string]fixture, n)
	cands := make([]Candidate, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("app-%02d", i)
		cands[i] = Candidate{ClientID: id}
		switch i % 3 {
		case 0:
			fixtures[id] = fixture{codes: "[7000215]"}
		case 1:
			fixtures[id] = fixture{codes: "[700016]"}
		default:
			fixtures[id] = fixture{codes: "[50126]"}
		}
	}
	srv := fixtureServer(t, fixtures)

	for _, workers := range []int{1, 2, 7, 10, 64} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			d := testDetector(t, srv, Config{Concurrency: workers})
			rep, err := d.Run(context.Background(), cands, nil)
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			if rep.TotalChecked != n || rep.Resolved != n {
				t.Errorf("TotalChecked/Resolved = %d/%d, want %d/%d", rep.TotalChecked, rep.Resolved, n, n)
			}
			sum := len(rep.Found) + rep.NotFoundCount + rep.IndeterminateCount
			if sum != n {
				t.Errorf("outcome counts sum to %d, want %d", sum, n)
			}

			seen := make(map[string]int)
			for _, res := range rep.Results {
				seen[res.Candidate.ClientID]++
			}
			for _, c := range cands {
				if seen[c.ClientID] != 1 {
					t.Errorf("candidate %s resolved %d times", c.ClientID, seen[c.ClientID])
				}
			}
		})
	}
}

func TestDetectorFoundOrderDeterministic(t *testing.T) {
	// Random latencies shuffle completion order; the found list must still
	// come out in input order on every run.
	rng := rand.New(rand.NewSource(1))
	const n = 20
	fixtures := make(map[string]fixture, n)
	cands := make([]Candidate, n)
	var wantFound []string
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("app-%02d", i)
		cands[i] = Candidate{ClientID: id}
		fx := fixture{codes: "[700016]", latency: time.Duration(rng.Intn(30)) * time.Millisecond}
		if i%2 == 0 {
			fx.codes = "[7000215]"
			wantFound = append(wantFound, id)
		}
		fixtures[id] = fx
	}
	srv := fixtureServer(t, fixtures)

	for run := 0; run < 3; run++ {
		d := testDetector(t, srv, Config{Concurrency: 8})
		rep, err := d.Run(context.Background(), cands, nil)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if len(rep.Found) != len(wantFound) {
			t.Fatalf("run %d: found %d, want %d", run, len(rep.Found), len(wantFound))
		}
		for i, res := range rep.Found {
			if res.Candidate.ClientID != wantFound[i] {
				t.Errorf("run %d: Found[%d] = %s, want %s", run, i, res.Candidate.ClientID, wantFound[i])
			}
		}
	}
}

func TestDetectorEmptyInput(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	t.Cleanup(srv.Close)

	d := testDetector(t, srv, Config{})
	rep, err := d.Run(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep.TotalChecked != 0 || rep.Resolved != 0 || rep.Incomplete {
		t.Errorf("report = %+v, want empty complete report", rep)
	}
	if requests.Load() != 0 {
		t.Errorf("%d probes issued for empty input", requests.Load())
	}
}

func TestDetectorCancellation(t *testing.T) {
	const n = 10
	fixtures := make(map[string]fixture, n)
	cands := make([]Candidate, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("app-%02d", i)
		cands[i] = Candidate{ClientID: id}
		fixtures[id] = fixture{codes: "[700016]", latency: 30 * time.Millisecond}
	}
	srv := fixtureServer(t, fixtures)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d := testDetector(t, srv, Config{Concurrency: 2})

	completedBeforeCancel := 3
	var seen int
	rep, err := d.Run(ctx, cands, func(ProbeResult) {
		seen++
		if seen == completedBeforeCancel {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	if !rep.Incomplete {
		t.Error("cancelled run not marked incomplete")
	}
	if rep.Resolved < completedBeforeCancel {
		t.Errorf("Resolved = %d, want >= %d", rep.Resolved, completedBeforeCancel)
	}
	if rep.Resolved >= n {
		t.Errorf("Resolved = %d, want < %d after cancellation", rep.Resolved, n)
	}
	if rep.TotalChecked != n {
		t.Errorf("TotalChecked = %d, want %d", rep.TotalChecked, n)
	}
}

func TestDetectorIdempotentAgainstStaticFixtures(t *testing.T) {
	srv := fixtureServer(t, map[string]fixture{
		"A": {codes: "[7000215]"},
		"B": {codes: "[700016]"},
		"C": {codes: "[90002]"},
	})
	cands := candidateList("A", "B", "C")

	var first *Report
	for run := 0; run < 2; run++ {
		d := testDetector(t, srv, Config{Concurrency: 3})
		rep, err := d.Run(context.Background(), cands, nil)
		if err != nil {
			t.Fatalf("run %d: %v", run, err)
		}
		if first == nil {
			first = rep
			continue
		}
		if rep.Resolved != first.Resolved ||
			len(rep.Found) != len(first.Found) ||
			rep.NotFoundCount != first.NotFoundCount ||
			rep.IndeterminateCount != first.IndeterminateCount {
			t.Errorf("run %d report differs: %+v vs %+v", run, rep, first)
		}
	}
}

func TestNewDetectorValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty tenant", Config{}},
		{"negative concurrency", Config{Tenant: "t", Concurrency: -1}},
		{"negative delay", Config{Tenant: "t", Delay: -time.Second}},
		{"negative timeout", Config{Tenant: "t", Timeout: -time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDetector(http.DefaultClient, tt.cfg, nil)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestNewDetectorDefaults(t *testing.T) {
	d, err := NewDetector(http.DefaultClient, Config{Tenant: "contoso.onmicrosoft.com"}, nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if d.cfg.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", d.cfg.Concurrency, DefaultConcurrency)
	}
	if d.cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %s, want %s", d.cfg.Timeout, DefaultTimeout)
	}
}
