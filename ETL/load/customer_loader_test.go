package load

import (
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

const customerUpsertPattern = "INSERT INTO dim_customer"

func TestCustomerUpsertReturnsSurrogateKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewCustomerLoader(db, utils.NewETLLogger(false))

	// tx.Stmt переиспользует выражение, уже подготовленное на соединении
	prep := mock.ExpectPrepare(customerUpsertPattern)
	mock.ExpectBegin()
	prep.ExpectExec().
		WithArgs("CUST-001", "Alice", "alice@example.com", "Москва", "Центр", "SMB").
		WillReturnResult(sqlmock.NewResult(7, 1))
	prep.ExpectExec().
		WithArgs("CUST-002", "Bob", "bob@example.com", "Тверь", "Центр", "Enterprise").
		WillReturnResult(sqlmock.NewResult(8, 1))
	mock.ExpectCommit()

	keys, err := loader.Upsert([]models.CustomerDimension{
		{Code: "CUST-001", Name: "Alice", Email: "alice@example.com", City: "Москва", Region: "Центр", Segment: "SMB"},
		{Code: "CUST-002", Name: "Bob", Email: "bob@example.com", City: "Тверь", Region: "Центр", Segment: "Enterprise"},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"CUST-001": 7, "CUST-002": 8}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerUpsertExistingRowKeepsKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewCustomerLoader(db, utils.NewETLLogger(false))

	prep := mock.ExpectPrepare(customerUpsertPattern)
	mock.ExpectBegin()
	// Обновление существующей строки: LAST_INSERT_ID(customer_id)
	// возвращает прежний суррогатный ключ, rows affected = 2
	prep.ExpectExec().
		WithArgs("CUST-001", "Alice Updated", "alice@example.com", "Москва", "Центр", "SMB").
		WillReturnResult(sqlmock.NewResult(7, 2))
	mock.ExpectCommit()

	keys, err := loader.Upsert([]models.CustomerDimension{
		{Code: "CUST-001", Name: "Alice Updated", Email: "alice@example.com", City: "Москва", Region: "Центр", Segment: "SMB"},
	})

	require.NoError(t, err)
	assert.Equal(t, int64(7), keys["CUST-001"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerUpsertRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewCustomerLoader(db, utils.NewETLLogger(false))

	prep := mock.ExpectPrepare(customerUpsertPattern)
	mock.ExpectBegin()
	prep.ExpectExec().
		WithArgs("CUST-001", "Alice", "alice@example.com", "Москва", "Центр", "SMB").
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	_, err = loader.Upsert([]models.CustomerDimension{
		{Code: "CUST-001", Name: "Alice", Email: "alice@example.com", City: "Москва", Region: "Центр", Segment: "SMB"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CUST-001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCustomerUpsertEmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewCustomerLoader(db, utils.NewETLLogger(false))

	keys, err := loader.Upsert(nil)
	require.NoError(t, err)
	assert.Empty(t, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupDimensionKeys(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"customer_code", "customer_id"}).
		AddRow("CUST-001", int64(7)).
		AddRow("CUST-003", int64(12))
	mock.ExpectQuery("SELECT customer_code, customer_id FROM dim_customer").
		WithArgs("CUST-001", "CUST-003").
		WillReturnRows(rows)

	loader := NewCustomerLoader(db, utils.NewETLLogger(false))
	keys, err := loader.LookupKeys([]string{"CUST-001", "CUST-003"})

	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"CUST-001": 7, "CUST-003": 12}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}
