package output

import (
	"encoding/json"
	"os"

	"github.com/seclith/aadprobe/internal/probe"
)

// reportJSON is the file shape: a summary header plus one entry per resolved
// candidate, in input order.
type reportJSON struct {
	Tenant        string       `json:"tenant"`
	TotalChecked  int          `json:"total_checked"`
	Resolved      int          `json:"resolved"`
	Found         int          `json:"found"`
	NotFound      int          `json:"not_found"`
	Indeterminate int          `json:"indeterminate"`
	Incomplete    bool         `json:"incomplete,omitempty"`
	Results       []resultJSON `json:"results"`
}

type resultJSON struct {
	ClientID    string `json:"client_id"`
	DisplayName string `json:"display_name,omitempty"`
	Status      string `json:"status"`
	HTTPStatus  int    `json:"http_status,omitempty"`
	ErrorCodes  []int  `json:"error_codes,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// WriteReport writes the report as JSON, atomically (write to a temp file in
// place, then rename).
func WriteReport(path string, rep *probe.Report) error {
	out := reportJSON{
		Tenant:        rep.Tenant,
		TotalChecked:  rep.TotalChecked,
		Resolved:      rep.Resolved,
		Found:         rep.FoundCount(),
		NotFound:      rep.NotFoundCount,
		Indeterminate: rep.IndeterminateCount,
		Incomplete:    rep.Incomplete,
		Results:       make([]resultJSON, 0, len(rep.Results)),
	}

	for _, res := range rep.Results {
		out.Results = append(out.Results, resultJSON{
			ClientID:    res.Candidate.ClientID,
			DisplayName: res.Candidate.DisplayName,
			Status:      res.Outcome.String(),
			HTTPStatus:  res.HTTPStatus,
			ErrorCodes:  res.ErrorCodes,
			Detail:      res.Detail,
		})
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
