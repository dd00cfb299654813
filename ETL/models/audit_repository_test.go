package models

import (
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

func newAuditMock(t *testing.T) (*MySQLAuditRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewMySQLAuditRepository(db), mock, func() { db.Close() }
}

func TestAuditBegin(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	start := time.Now()
	mock.ExpectExec("INSERT INTO etl_audit_log").
		WithArgs("sales_analytics_etl", StageExtract, start).
		WillReturnResult(sqlmock.NewResult(42, 1))

	id, err := repo.Begin("sales_analytics_etl", StageExtract, start)

	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditComplete(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	start := time.Now().Add(-3 * time.Second)
	end := time.Now()

	mock.ExpectQuery("SELECT start_time FROM etl_audit_log").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(start))
	mock.ExpectExec("UPDATE etl_audit_log").
		WithArgs(StatusSuccess, 1500, "", end, end.Sub(start).Seconds(), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Complete(42, StatusSuccess, 1500, "", end)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditCompleteAlreadyClosed(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	start := time.Now().Add(-time.Second)

	mock.ExpectQuery("SELECT start_time FROM etl_audit_log").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(start))
	// Терминальная запись неизменяема: обновление не затрагивает строк
	mock.ExpectExec("UPDATE etl_audit_log").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(42, StatusFailed, 0, "boom", time.Now())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "уже закрыта")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditCompleteRejectsNonTerminalStatus(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	err := repo.Complete(42, StatusStarted, 0, "", time.Now())

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLastFailure(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	start := mustDate(t, "2026-08-20")
	end := start.Add(5 * time.Second)
	rows := sqlmock.NewRows([]string{
		"audit_id", "pipeline_name", "stage", "status",
		"records_processed", "error_message", "start_time", "end_time", "duration_seconds",
	}).AddRow(int64(9), "sales_analytics_etl", StageLoad, StatusFailed, 0, "deadlock", start, end, 5.0)

	mock.ExpectQuery("SELECT").WithArgs("sales_analytics_etl").WillReturnRows(rows)

	entry, err := repo.LastFailure("sales_analytics_etl")

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, StageLoad, entry.Stage)
	assert.Equal(t, "deadlock", entry.ErrorMessage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditLastFailureNoRows(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	mock.ExpectQuery("SELECT").WithArgs("sales_analytics_etl").WillReturnError(sql.ErrNoRows)

	entry, err := repo.LastFailure("sales_analytics_etl")

	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunsForDaysSortKey(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	rows := sqlmock.NewRows([]string{
		"audit_id", "pipeline_name", "stage", "status",
		"records_processed", "error_message", "start_time", "end_time", "duration_seconds",
	}).AddRow(int64(1), "sales_analytics_etl", StageExtract, StatusSuccess, 100,
		"", mustDate(t, "2026-08-25"), mustDate(t, "2026-08-25"), 1.5)

	mock.ExpectQuery("ORDER BY duration_seconds DESC").WithArgs(7).WillReturnRows(rows)

	entries, err := repo.RunsForDays(7, "duration_seconds")

	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRunsForDaysRejectsUnknownSortKey(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	// Ключ сортировки - закрытое перечисление, а не подстановка из запроса
	_, err := repo.RunsForDays(7, "1; DROP TABLE etl_audit_log")

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditPurge(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	mock.ExpectExec("DELETE FROM etl_audit_log").
		WithArgs(90).
		WillReturnResult(sqlmock.NewResult(0, 17))

	deleted, err := repo.Purge(90)

	require.NoError(t, err)
	assert.Equal(t, int64(17), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditPurgeRejectsNonPositiveRetention(t *testing.T) {
	repo, mock, closeDB := newAuditMock(t)
	defer closeDB()

	_, err := repo.Purge(0)

	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
