package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/fara-crawler/internal/fara"
)

func testRecord() fara.Record {
	return fara.Record{
		URL:              "https://efile.fara.gov/ords/f?p=171:200:::NO:RP,200:P200_REG_NUMBER,P200_DOC_TYPE,P200_COUNTRY:6065,Exhibit%20AB,AUSTRALIA",
		ForeignPrincipal: "Tourism Australia",
		FPRegDate:        "2012-05-23T00:00:00",
		Address:          "Level 18 Darling Park Tower 2",
		Country:          "AUSTRALIA",
		Registrant:       "Edelman Public Relations Worldwide ",
		RegNum:           "3634",
		RegDate:          "1984-11-06T00:00:00",
		Exhibits: []fara.Exhibit{
			{URL: "https://efile.fara.gov/docs/3634-Exhibit-AB-20120523-16.pdf", Date: "2012-05-23T00:00:00"},
		},
	}
}

func TestStoreInsertsDocument(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewSinkWithPool(mock, "", "run-1")
	require.NoError(t, err)
	assert.Equal(t, "postgres", sink.Name())

	rec := testRecord()
	document, err := json.Marshal(rec)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO foreign_principals").
		WithArgs("run-1", rec.URL, document).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, sink.Store(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreWrapsExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewSinkWithPool(mock, "afp_records", "run-1")
	require.NoError(t, err)

	boom := errors.New("connection refused")
	mock.ExpectExec("INSERT INTO afp_records").WillReturnError(boom)

	err = sink.Store(context.Background(), testRecord())
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	sink, err := NewSinkWithPool(mock, "foreign_principals", "run-1")
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS foreign_principals").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, sink.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewSinkWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewSinkWithPool(nil, "", "run-1")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewSinkWithPool(mock, "records; DROP TABLE x", "run-1")
	require.Error(t, err)
}

func TestNewSinkRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewSink(context.Background(), Config{})
	require.Error(t, err)
}
