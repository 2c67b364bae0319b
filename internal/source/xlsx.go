package source

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/lendsight/engage-cli/internal/model"
)

// ReadLeadsXLSX loads a lead list from the first sheet of an XLSX
// workbook. The first row is the header.
func ReadLeadsXLSX(path string) ([]model.Lead, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "source: open lead xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, ErrNoLeads
	}

	sheet := f.Sheets[0]
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		rows = append(rows, cells)
	}
	if len(rows) < 2 {
		return nil, ErrNoLeads
	}

	leads := leadsFromRows(rows[0], rows[1:])
	if len(leads) == 0 {
		return nil, ErrNoLeads
	}
	return leads, nil
}
