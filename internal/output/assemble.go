// Package output projects finished lead contexts onto the recipe's
// declared column layout and writes the run artifacts.
package output

import (
	"github.com/lendsight/engage-cli/internal/model"
)

// Record is one output row: values aligned with the declared columns,
// duplicates included.
type Record struct {
	Columns []string
	Values  []string
}

// Assemble freezes a lead context into a Record following columns in
// declared order. A column may legitimately appear twice (trailing
// metadata duplicates); each occurrence is emitted. An absent key
// becomes the blank sentinel. Assemble never fails.
func Assemble(leadCtx *model.Context, columns []string) Record {
	values := make([]string, len(columns))
	for i, col := range columns {
		if v, ok := leadCtx.Get(col); ok {
			values[i] = model.Stringify(v)
		}
	}
	return Record{Columns: columns, Values: values}
}
