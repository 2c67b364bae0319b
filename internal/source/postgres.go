package source

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/lendsight/engage-cli/internal/model"
)

// Querier is the slice of pgxpool the query source needs; pgxmock
// satisfies it in tests.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// QuerySource pulls the lead list from the warehouse with the recipe's
// SQL. The query must return the columns id, name, phone, email,
// product, amount, stage in that order; the warehouse query is treated
// as already-correct input, but normalization is still re-applied here
// so the join keys match the transcript index.
type QuerySource struct {
	db    Querier
	query string
}

// NewQuerySource connects a pgx pool to the warehouse.
func NewQuerySource(ctx context.Context, databaseURL, query string) (*QuerySource, func(), error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "source: connect warehouse")
	}
	return &QuerySource{db: pool, query: query}, pool.Close, nil
}

// NewQuerySourceWithDB wires an existing querier, used by tests.
func NewQuerySourceWithDB(db Querier, query string) *QuerySource {
	return &QuerySource{db: db, query: query}
}

// Leads runs the recipe query and returns normalized leads.
func (s *QuerySource) Leads(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.Query(ctx, s.query)
	if err != nil {
		return nil, eris.Wrap(err, "source: warehouse query")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var lead model.Lead
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &lead.Product, &lead.Amount, &lead.Stage); err != nil {
			return nil, eris.Wrap(err, "source: scan lead row")
		}
		lead.Phone = model.NormalizePhone(lead.Phone)
		lead.Email = model.NormalizeEmail(lead.Email)
		if lead.Phone == "" && lead.Email == "" {
			continue
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "source: iterate lead rows")
	}
	if len(leads) == 0 {
		return nil, ErrNoLeads
	}
	return leads, nil
}
