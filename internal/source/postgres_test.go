package source

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadQuery = `SELECT id, name, phone, email, product, amount, stage FROM leads WHERE stage = 'offer_sent'`

func TestQuerySourceLeads(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, name, phone, email, product, amount, stage FROM leads`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "product", "amount", "stage"}).
			AddRow("L-001", "Maria Lopez", "+52 55 1234 5678", "Maria+x@Example.com", "credito_personal", "50000", "offer_sent").
			AddRow("L-002", "Sin Contacto", "", "", "credito_pyme", "10000", "new"))

	src := NewQuerySourceWithDB(mock, leadQuery)
	leads, err := src.Leads(context.Background())
	require.NoError(t, err)

	// The contactless row is dropped; normalization re-applied.
	require.Len(t, leads, 1)
	assert.Equal(t, "5512345678", leads[0].Phone)
	assert.Equal(t, "maria@example.com", leads[0].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuerySourceEmptyResult(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "phone", "email", "product", "amount", "stage"}))

	src := NewQuerySourceWithDB(mock, leadQuery)
	_, err = src.Leads(context.Background())
	assert.ErrorIs(t, err, ErrNoLeads)
}

func TestQuerySourceQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT`).WillReturnError(assert.AnError)

	src := NewQuerySourceWithDB(mock, leadQuery)
	_, err = src.Leads(context.Background())
	assert.Error(t, err)
}
