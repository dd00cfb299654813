package models

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"github.com/go-sql-driver/mysql"
)

// Ошибки уровня запуска ETL
var (
	// ErrSourceUnavailable - источник отсутствует или нечитаем, запуск прерывается
	ErrSourceUnavailable = errors.New("источник данных недоступен")

	// ErrSourceEmpty - источник не содержит строк; предупреждение, не ошибка запуска
	ErrSourceEmpty = errors.New("источник данных не содержит записей")

	// ErrRunInProgress - запуск пайплайна с таким именем уже выполняется
	ErrRunInProgress = errors.New("запуск пайплайна уже выполняется")
)

// ChunkError описывает ошибку транзакции одного чанка фазы Load.
// Границы чанка позволяют оркестратору определить, какие строки уже
// зафиксированы: все чанки до Chunk применены полностью, сам чанк откатан.
type ChunkError struct {
	Chunk  int // порядковый номер чанка (с нуля)
	Offset int // смещение первой строки чанка в логическом батче
	Size   int // количество строк в чанке
	Err    error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("ошибка в чанке %d (строки %d-%d): %v",
		e.Chunk, e.Offset, e.Offset+e.Size-1, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Коды ошибок MySQL, классифицируемые пайплайном
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
	mysqlDupEntry        = 1062
	mysqlNoReferencedRow = 1452
	mysqlRowIsReferenced = 1451
	mysqlCheckViolated   = 3819
)

// IsTransient сообщает, является ли ошибка временной (таймаут, обрыв
// соединения, взаимная блокировка). Такие ошибки повторяются на уровне
// фазы с ограниченным числом попыток.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock:
			return true
		}
	}
	return false
}

// IsIntegrityViolation сообщает, является ли ошибка нарушением ограничений
// целостности схемы. Такие ошибки не повторяются: чанк откатывается,
// запуск помечается как Failed.
func IsIntegrityViolation(err error) bool {
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return false
	}
	switch mysqlErr.Number {
	case mysqlDupEntry, mysqlNoReferencedRow, mysqlRowIsReferenced, mysqlCheckViolated:
		return true
	}
	return false
}
