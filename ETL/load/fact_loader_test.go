package load

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

func testSale(orderNumber string) models.CleanSale {
	return models.CleanSale{
		OrderNumber:   orderNumber,
		CustomerCode:  "CUST-001",
		ProductCode:   "PROD-001",
		RepCode:       "REP-01",
		DateID:        20240315,
		Quantity:      2,
		UnitPrice:     10.00,
		Subtotal:      20.00,
		Discount:      0,
		Tax:           1.60,
		Total:         21.60,
		Cost:          12.00,
		Profit:        9.60,
		Margin:        44.44,
		PaymentMethod: "Card",
	}
}

func testKeys() *SurrogateKeys {
	return &SurrogateKeys{
		Customers: map[string]int64{"CUST-001": 1},
		Products:  map[string]int64{"PROD-001": 2},
		SalesReps: map[string]int64{"REP-01": 3},
	}
}

func TestFactLoadSkipsDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-1", "ORD-2", "ORD-3").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}).AddRow("ORD-2"))
	mock.ExpectExec("INSERT INTO fact_sales").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	inserted, skipped, err := loader.Load(context.Background(),
		[]models.CleanSale{testSale("ORD-1"), testSale("ORD-2"), testSale("ORD-3")},
		testKeys())

	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadSkipsIntraBatchDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	// Хранилище пусто, но батч содержит два одинаковых номера заказа:
	// вторая строка пропускается, а не ломает вставку на UNIQUE
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-1", "ORD-1", "ORD-2").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	mock.ExpectExec("INSERT INTO fact_sales").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	inserted, skipped, err := loader.Load(context.Background(),
		[]models.CleanSale{testSale("ORD-1"), testSale("ORD-1"), testSale("ORD-2")},
		testKeys())

	require.NoError(t, err)
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 1, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadAllDuplicates(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	// Чанк целиком из дубликатов фиксируется без вставки
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-1", "ORD-2").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}).
			AddRow("ORD-1").AddRow("ORD-2"))
	mock.ExpectCommit()

	inserted, skipped, err := loader.Load(context.Background(),
		[]models.CleanSale{testSale("ORD-1"), testSale("ORD-2")},
		testKeys())

	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
	assert.Equal(t, 2, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadChunkFailureReportsBoundaries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 2)

	// Первый чанк (ORD-1, ORD-2) фиксируется
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-1", "ORD-2").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	mock.ExpectExec("INSERT INTO fact_sales").
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectCommit()

	// Второй чанк (ORD-3) нарушает внешний ключ и откатывается
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-3").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	mock.ExpectExec("INSERT INTO fact_sales").
		WillReturnError(&mysql.MySQLError{Number: 1452, Message: "Cannot add or update a child row"})
	mock.ExpectRollback()

	inserted, skipped, err := loader.Load(context.Background(),
		[]models.CleanSale{testSale("ORD-1"), testSale("ORD-2"), testSale("ORD-3")},
		testKeys())

	// Первый чанк уже зафиксирован, ошибка описывает границы второго
	assert.Equal(t, 2, inserted)
	assert.Equal(t, 0, skipped)

	var chunkErr *models.ChunkError
	require.ErrorAs(t, err, &chunkErr)
	assert.Equal(t, 1, chunkErr.Chunk)
	assert.Equal(t, 2, chunkErr.Offset)
	assert.Equal(t, 1, chunkErr.Size)
	assert.True(t, models.IsIntegrityViolation(err))
	assert.False(t, models.IsTransient(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadUnresolvedSurrogateKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	mock.ExpectRollback()

	keys := testKeys()
	delete(keys.Products, "PROD-001")

	_, _, err = loader.Load(context.Background(), []models.CleanSale{testSale("ORD-1")}, keys)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "PROD-001")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadNullableRep(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_number FROM fact_sales").
		WithArgs("ORD-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_number"}))
	mock.ExpectExec("INSERT INTO fact_sales").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	sale := testSale("ORD-1")
	sale.RepCode = ""

	inserted, skipped, err := loader.Load(context.Background(), []models.CleanSale{sale}, testKeys())

	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.Equal(t, 0, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadCancelledContext(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = loader.Load(ctx, []models.CleanSale{testSale("ORD-1")}, testKeys())

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactLoadEmptyBatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	loader := NewFactLoader(db, utils.NewETLLogger(false), 10)

	inserted, skipped, err := loader.Load(context.Background(), nil, testKeys())

	require.NoError(t, err)
	assert.Zero(t, inserted)
	assert.Zero(t, skipped)
	assert.NoError(t, mock.ExpectationsWereMet())
}
