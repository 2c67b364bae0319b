// Package source provides the data-input adapters that feed a run:
// lead lists from CSV, XLSX, a warehouse query, or an FTP drop, plus
// the per-lead transcript files. Every adapter applies the shared
// phone/email normalization so joins match the originating queries.
package source

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/lendsight/engage-cli/internal/model"
)

// ErrNoLeads is the run-fatal ingestion failure: the source was
// reachable but produced zero leads.
var ErrNoLeads = eris.New("source: no leads found")

// leadColumns are the recognized lead-list header names, lowercased.
var leadColumns = map[string]func(*model.Lead, string){
	"id":           func(l *model.Lead, v string) { l.ID = v },
	"lead_id":      func(l *model.Lead, v string) { l.ID = v },
	"name":         func(l *model.Lead, v string) { l.Name = v },
	"full_name":    func(l *model.Lead, v string) { l.Name = v },
	"phone":        func(l *model.Lead, v string) { l.Phone = v },
	"phone_number": func(l *model.Lead, v string) { l.Phone = v },
	"email":        func(l *model.Lead, v string) { l.Email = v },
	"product":      func(l *model.Lead, v string) { l.Product = v },
	"amount":       func(l *model.Lead, v string) { l.Amount = v },
	"stage":        func(l *model.Lead, v string) { l.Stage = v },
	"assigned_to":  func(l *model.Lead, v string) { l.AssignedTo = v },
}

// leadsFromRows converts a header row plus data rows into normalized
// leads. Unknown columns are ignored; rows with neither phone nor email
// are skipped since they can never join a transcript.
func leadsFromRows(header []string, rows [][]string) []model.Lead {
	setters := make([]func(*model.Lead, string), len(header))
	for i, col := range header {
		setters[i] = leadColumns[strings.ToLower(strings.TrimSpace(col))]
	}

	var leads []model.Lead
	for _, row := range rows {
		var lead model.Lead
		for i, cell := range row {
			if i < len(setters) && setters[i] != nil {
				setters[i](&lead, strings.TrimSpace(cell))
			}
		}
		lead.Phone = model.NormalizePhone(lead.Phone)
		lead.Email = model.NormalizeEmail(lead.Email)
		if lead.Phone == "" && lead.Email == "" {
			continue
		}
		if lead.ID == "" {
			lead.ID = lead.Phone
			if lead.ID == "" {
				lead.ID = lead.Email
			}
		}
		leads = append(leads, lead)
	}
	return leads
}
