package output

import (
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"

	"github.com/seclith/aadprobe/internal/probe"
)

type Printer struct {
	noColor bool
	verbose bool

	logger *log.Logger
}

func NewPrinter(stdout io.Writer, noColor, verbose bool) *Printer {
	return &Printer{
		noColor: noColor,
		verbose: verbose,
		logger:  log.New(stdout, "", 0),
	}
}

// Result streams one probe result. Hits always print; misses and errors only
// with verbose on.
func (p *Printer) Result(res probe.ProbeResult) {
	name := res.Candidate.DisplayName
	if name == "" {
		name = "Unknown"
	}

	switch res.Outcome {
	case probe.Exists:
		if p.noColor {
			p.logger.Printf("[%s] %s: %s", "+", res.Candidate.ClientID, name)
		} else {
			p.logger.Printf("[%s] %s: %s",
				color.HiGreenString("+"),
				color.HiWhiteString(res.Candidate.ClientID),
				name,
			)
		}

	case probe.DoesNotExist:
		if !p.verbose {
			return
		}
		if p.noColor {
			p.logger.Printf("[%s] %s: %s", "-", res.Candidate.ClientID, "Not Found!")
		} else {
			p.logger.Printf("[%s] %s: %s",
				color.HiRedString("-"),
				res.Candidate.ClientID,
				color.HiYellowString("Not Found!"),
			)
		}

	default:
		if !p.verbose {
			return
		}
		detail := res.Detail
		if detail == "" {
			detail = "unrecognized response"
		}
		if p.noColor {
			p.logger.Printf("[%s] %s: INDETERMINATE: %s", "!", res.Candidate.ClientID, detail)
		} else {
			p.logger.Printf("[%s] %s: %s: %s",
				color.HiRedString("!"),
				res.Candidate.ClientID,
				color.HiMagentaString("INDETERMINATE"),
				color.HiRedString(detail),
			)
		}
	}
}

// Summary prints the final report block.
func (p *Printer) Summary(rep *probe.Report) {
	p.logger.Println()
	p.logger.Printf("[RESULT] Total applications checked: %d", rep.TotalChecked)
	p.logger.Printf("[RESULT] Found existing applications: %d", rep.FoundCount())
	if rep.IndeterminateCount > 0 {
		p.logger.Printf("[RESULT] Indeterminate: %d", rep.IndeterminateCount)
	}

	if rep.Incomplete {
		msg := fmt.Sprintf("Run interrupted: %d of %d candidates resolved", rep.Resolved, rep.TotalChecked)
		if p.noColor {
			p.logger.Printf("[!] %s", msg)
		} else {
			p.logger.Printf("[%s] %s", color.HiRedString("!"), color.HiYellowString(msg))
		}
	}

	if len(rep.Found) == 0 {
		return
	}

	p.logger.Println()
	p.logger.Println("Existing application list:")
	for _, res := range rep.Found {
		name := res.Candidate.DisplayName
		if name == "" {
			name = "Unknown"
		}
		p.logger.Printf("- Name: %s, ID: %s", name, res.Candidate.ClientID)
	}
}
