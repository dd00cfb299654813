package models

import (
	"time"
)

// Фазы пайплайна, записываемые в журнал аудита
const (
	StageExtract   = "Extract"
	StageTransform = "Transform"
	StageLoad      = "Load"
)

// Статусы записи аудита. Started - фаза начата; Success и Failed -
// терминальные статусы, после которых запись не изменяется.
const (
	StatusStarted = "Started"
	StatusSuccess = "Success"
	StatusFailed  = "Failed"
)

// AuditEntry представляет запись журнала аудита для одной фазы запуска.
// Создается при входе в фазу (Started) и закрывается ровно один раз
// при ее завершении или сбое.
type AuditEntry struct {
	ID               int64     `json:"id"`
	PipelineName     string    `json:"pipeline_name"`
	Stage            string    `json:"stage"`
	Status           string    `json:"status"`
	RecordsProcessed int       `json:"records_processed"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	DurationSeconds  float64   `json:"duration_seconds"`
}

// AuditRepository - журнал аудита ETL. Каждый переход фазы оркестратора
// записывает ровно один Begin и ровно один Complete.
type AuditRepository interface {
	// Begin создает запись о начале фазы и возвращает ее идентификатор
	Begin(pipelineName, stage string, startTime time.Time) (int64, error)

	// Complete закрывает запись терминальным статусом
	Complete(id int64, status string, recordsProcessed int, errorMessage string, endTime time.Time) error

	// RunsForDays возвращает записи аудита за последние N дней,
	// отсортированные по разрешенному ключу (start_time по умолчанию)
	RunsForDays(days int, sortKey string) ([]AuditEntry, error)

	// LastFailure возвращает последнюю неудачную фазу пайплайна
	// или nil, если сбоев не было
	LastFailure(pipelineName string) (*AuditEntry, error)

	// Purge удаляет терминальные записи старше retentionDays дней
	// и возвращает количество удаленных
	Purge(retentionDays int) (int64, error)
}
