package output

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
)

// WriteCSV writes the run's UTF-8 CSV artifact: one header row equal to
// the declared columns, then one row per lead in input order. Rows for
// canceled leads are simply absent, so a partial file is still valid.
func WriteCSV(path string, columns []string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "output: create csv")
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "output: write csv header")
	}
	for _, rec := range records {
		if err := w.Write(rec.Values); err != nil {
			return eris.Wrap(err, "output: write csv row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "output: flush csv")
	}
	return f.Sync()
}
