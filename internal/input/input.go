package input

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/seclith/aadprobe/internal/probe"
)

// LoadCandidates reads the candidate client-ID list from path. The format is
// picked by extension: .txt is one ID per line, .csv/.tsv is a delimited table
// with an appId column and an optional displayName column. Anything else is
// sniffed from the first line, matching how exports from the Graph CLI and
// plain wordlists show up in practice.
//
// IDs that are not UUID-shaped are kept (the remote side rejects them like
// any unknown app) but flagged at debug level.
func LoadCandidates(path string, log logrus.FieldLogger) ([]probe.Candidate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var candidates []probe.Candidate

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		candidates, err = parseLines(f)
	case ".csv", ".tsv":
		candidates, err = parseTable(f)
	default:
		candidates, err = parseSniffed(f)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no application IDs found in %s", path)
	}

	if log != nil {
		for _, c := range candidates {
			if _, err := uuid.Parse(c.ClientID); err != nil {
				log.WithField("client_id", c.ClientID).Debug("ID is not UUID-shaped; probing anyway")
			}
		}
	}

	return candidates, nil
}

func parseLines(f *os.File) ([]probe.Candidate, error) {
	var out []probe.Candidate
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		id := strings.TrimSpace(sc.Text())
		if id == "" {
			continue
		}
		out = append(out, probe.Candidate{ClientID: id})
	}
	return out, sc.Err()
}

// parseTable reads a delimited table with a header row. Tab beats comma when
// both appear in the header, matching tenant exports that are TSV with commas
// inside display names.
func parseTable(f *os.File) ([]probe.Candidate, error) {
	br := bufio.NewReader(f)
	header, err := br.Peek(4096)
	if err != nil && len(header) == 0 {
		return nil, err
	}

	firstLine := string(header)
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	r := csv.NewReader(br)
	if strings.Contains(firstLine, "\t") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	idCol, nameCol := -1, -1
	for i, name := range records[0] {
		switch strings.TrimSpace(name) {
		case "appId":
			idCol = i
		case "displayName":
			nameCol = i
		}
	}
	if idCol < 0 {
		return nil, fmt.Errorf("no appId column in header %q", firstLine)
	}

	var out []probe.Candidate
	for _, rec := range records[1:] {
		if idCol >= len(rec) {
			continue
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			continue
		}
		c := probe.Candidate{ClientID: id}
		if nameCol >= 0 && nameCol < len(rec) {
			c.DisplayName = strings.TrimSpace(rec[nameCol])
		}
		out = append(out, c)
	}
	return out, nil
}

// parseSniffed guesses the format from the first line for files with unknown
// extensions.
func parseSniffed(f *os.File) ([]probe.Candidate, error) {
	peek := make([]byte, 4096)
	n, _ := f.Read(peek)
	firstLine := string(peek[:n])
	if i := strings.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	tabular := strings.Contains(firstLine, "\t") ||
		(strings.Contains(firstLine, ",") &&
			(strings.Contains(firstLine, "appId") || strings.Contains(firstLine, "displayName")))
	if tabular {
		return parseTable(f)
	}
	return parseLines(f)
}
