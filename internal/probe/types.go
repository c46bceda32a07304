package probe

// Candidate is one application (client) ID to probe, plus the optional display
// name carried over from the input file.
type Candidate struct {
	ClientID    string
	DisplayName string
}

// Outcome is the tri-state classification of a single probe.
type Outcome int

const (
	// Indeterminate covers everything that is neither of the two known
	// signatures: transport failures, unexpected error codes, malformed
	// bodies, and (conservatively) successful token responses.
	Indeterminate Outcome = iota
	Exists
	DoesNotExist
)

func (o Outcome) String() string {
	switch o {
	case Exists:
		return "exists"
	case DoesNotExist:
		return "not_found"
	default:
		return "indeterminate"
	}
}

// ProbeResult is the terminal state of one candidate. Exactly one is produced
// per dispatched candidate.
type ProbeResult struct {
	Candidate  Candidate
	Outcome    Outcome
	HTTPStatus int   // 0 when the request never completed
	ErrorCodes []int // AAD error_codes from the response body, in body order
	Detail     string
	Err        *TransportError // set only when the request itself failed
}

// Report is the aggregated outcome of a run. On a completed run
// Resolved == TotalChecked and the three counters sum to it; a cancelled run
// has Incomplete set and Resolved < TotalChecked.
type Report struct {
	Tenant             string
	TotalChecked       int
	Resolved           int
	Found              []ProbeResult // Exists only, in input order
	Results            []ProbeResult // every resolved candidate, in input order
	NotFoundCount      int
	IndeterminateCount int
	Incomplete         bool
}

func (r *Report) FoundCount() int { return len(r.Found) }
