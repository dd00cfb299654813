package models

import (
	"database/sql"
	"fmt"
	"time"
)

// MySQLAuditRepository реализация AuditRepository для MySQL
type MySQLAuditRepository struct {
	db *sql.DB
}

// NewMySQLAuditRepository создает новый экземпляр MySQLAuditRepository
func NewMySQLAuditRepository(db *sql.DB) *MySQLAuditRepository {
	return &MySQLAuditRepository{
		db: db,
	}
}

// Разрешенные ключи сортировки для RunsForDays. Закрытое перечисление
// вместо подстановки имени колонки из запроса вызывающей стороны.
var auditSortKeys = map[string]string{
	"start_time":       "start_time",
	"end_time":         "end_time",
	"duration_seconds": "duration_seconds",
	"pipeline_name":    "pipeline_name",
}

// CreateAuditTable создает таблицу журнала аудита, если она не существует
func (r *MySQLAuditRepository) CreateAuditTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS etl_audit_log (
		audit_id BIGINT AUTO_INCREMENT PRIMARY KEY,
		pipeline_name VARCHAR(100) NOT NULL,
		stage ENUM('Extract', 'Transform', 'Load') NOT NULL,
		status ENUM('Started', 'Success', 'Failed') NOT NULL DEFAULT 'Started',
		records_processed INT DEFAULT 0,
		error_message TEXT,
		start_time TIMESTAMP NOT NULL,
		end_time TIMESTAMP NULL,
		duration_seconds FLOAT,
		INDEX idx_audit_pipeline (pipeline_name, start_time)
	);
	`

	_, err := r.db.Exec(query)
	if err != nil {
		return fmt.Errorf("ошибка при создании таблицы etl_audit_log: %w", err)
	}

	return nil
}

// Begin создает запись о начале фазы со статусом Started
func (r *MySQLAuditRepository) Begin(pipelineName, stage string, startTime time.Time) (int64, error) {
	query := `
	INSERT INTO etl_audit_log (pipeline_name, stage, status, start_time)
	VALUES (?, ?, 'Started', ?)
	`

	result, err := r.db.Exec(query, pipelineName, stage, startTime)
	if err != nil {
		return 0, fmt.Errorf("ошибка при создании записи аудита для фазы %s: %w", stage, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении ID записи аудита: %w", err)
	}

	return id, nil
}

// Complete закрывает запись аудита терминальным статусом.
// Обновляются только записи со статусом Started: терминальная запись неизменяема.
func (r *MySQLAuditRepository) Complete(id int64, status string, recordsProcessed int, errorMessage string, endTime time.Time) error {
	if status != StatusSuccess && status != StatusFailed {
		return fmt.Errorf("недопустимый терминальный статус аудита: %q", status)
	}

	// Рассчитываем длительность фазы по времени начала
	var startTime time.Time
	err := r.db.QueryRow("SELECT start_time FROM etl_audit_log WHERE audit_id = ?", id).Scan(&startTime)
	if err != nil {
		return fmt.Errorf("ошибка при получении времени начала фазы: %w", err)
	}

	duration := endTime.Sub(startTime).Seconds()

	query := `
	UPDATE etl_audit_log
	SET
		status = ?,
		records_processed = ?,
		error_message = ?,
		end_time = ?,
		duration_seconds = ?
	WHERE audit_id = ? AND status = 'Started'
	`

	result, err := r.db.Exec(query, status, recordsProcessed, errorMessage, endTime, duration, id)
	if err != nil {
		return fmt.Errorf("ошибка при завершении записи аудита %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка при проверке обновления записи аудита %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("запись аудита %d не найдена или уже закрыта", id)
	}

	return nil
}

// RunsForDays возвращает записи аудита за последние N дней
func (r *MySQLAuditRepository) RunsForDays(days int, sortKey string) ([]AuditEntry, error) {
	column, ok := auditSortKeys[sortKey]
	if !ok {
		if sortKey != "" {
			return nil, fmt.Errorf("недопустимый ключ сортировки: %q", sortKey)
		}
		column = "start_time"
	}

	query := fmt.Sprintf(`
	SELECT
		audit_id, pipeline_name, stage, status,
		records_processed, IFNULL(error_message, ''),
		start_time, IFNULL(end_time, start_time), IFNULL(duration_seconds, 0)
	FROM etl_audit_log
	WHERE start_time >= DATE_SUB(NOW(), INTERVAL ? DAY)
	ORDER BY %s DESC
	`, column)

	rows, err := r.db.Query(query, days)
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении записей аудита: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var entry AuditEntry
		err := rows.Scan(
			&entry.ID, &entry.PipelineName, &entry.Stage, &entry.Status,
			&entry.RecordsProcessed, &entry.ErrorMessage,
			&entry.StartTime, &entry.EndTime, &entry.DurationSeconds,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка при сканировании записи аудита: %w", err)
		}
		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по записям аудита: %w", err)
	}

	return entries, nil
}

// LastFailure возвращает последнюю неудачную фазу указанного пайплайна
func (r *MySQLAuditRepository) LastFailure(pipelineName string) (*AuditEntry, error) {
	query := `
	SELECT
		audit_id, pipeline_name, stage, status,
		records_processed, IFNULL(error_message, ''),
		start_time, IFNULL(end_time, start_time), IFNULL(duration_seconds, 0)
	FROM etl_audit_log
	WHERE pipeline_name = ? AND status = 'Failed'
	ORDER BY end_time DESC
	LIMIT 1
	`

	var entry AuditEntry
	err := r.db.QueryRow(query, pipelineName).Scan(
		&entry.ID, &entry.PipelineName, &entry.Stage, &entry.Status,
		&entry.RecordsProcessed, &entry.ErrorMessage,
		&entry.StartTime, &entry.EndTime, &entry.DurationSeconds,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Сбоев не было
		}
		return nil, fmt.Errorf("ошибка при получении последнего сбоя пайплайна: %w", err)
	}

	return &entry, nil
}

// Purge удаляет терминальные записи аудита старше retentionDays дней.
// Данные хранилища при этом не затрагиваются.
func (r *MySQLAuditRepository) Purge(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, fmt.Errorf("срок хранения должен быть положительным, получено: %d", retentionDays)
	}

	query := `
	DELETE FROM etl_audit_log
	WHERE start_time < DATE_SUB(NOW(), INTERVAL ? DAY)
	  AND status IN ('Success', 'Failed')
	`

	result, err := r.db.Exec(query, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("ошибка при очистке журнала аудита: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ошибка при подсчете удаленных записей аудита: %w", err)
	}

	return deleted, nil
}
