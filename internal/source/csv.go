package source

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/lendsight/engage-cli/internal/model"
)

// ReadLeadsCSV loads a lead list from a CSV file. The first row is the
// header. An empty file is a run-fatal ingestion failure.
func ReadLeadsCSV(path string) ([]model.Lead, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open lead csv")
	}
	defer f.Close() //nolint:errcheck

	return parseLeadsCSV(f)
}

// parseLeadsCSV parses lead CSV content from any reader, shared by the
// file and FTP sources.
func parseLeadsCSV(r io.Reader) ([]model.Lead, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows

	records, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "source: parse lead csv")
	}
	if len(records) < 2 {
		return nil, ErrNoLeads
	}

	leads := leadsFromRows(records[0], records[1:])
	if len(leads) == 0 {
		return nil, ErrNoLeads
	}
	return leads, nil
}
