// Package setup инициализирует схему хранилища: таблицы звезды,
// аналитические представления и измерение дат.
package setup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// Диапазон дат, которым заполняется dim_date
var (
	dimDateFrom = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	dimDateTo   = time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
)

// SetupWarehouse выполняет SQL-файлы схемы и заполняет измерение дат.
// Все операторы выполняются на одном соединении, чтобы оператор USE
// действовал на последующие операторы и заполнение dim_date.
func SetupWarehouse(ctx context.Context, db *sql.DB, logger *utils.ETLLogger, sqlFiles ...string) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("ошибка при получении соединения для установки: %w", err)
	}
	defer conn.Close()

	for _, path := range sqlFiles {
		if err := executeSQLFile(ctx, conn, logger, path); err != nil {
			return err
		}
	}

	if err := populateDateDimension(ctx, conn, logger); err != nil {
		return err
	}

	logger.Info("Инициализация хранилища завершена")
	return nil
}

// executeSQLFile выполняет операторы SQL-файла по одному
func executeSQLFile(ctx context.Context, conn *sql.Conn, logger *utils.ETLLogger, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ошибка при чтении SQL-файла %s: %w", path, err)
	}

	statements := strings.Split(string(content), ";")
	executed := 0

	for _, statement := range statements {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}

		if _, err := conn.ExecContext(ctx, statement); err != nil {
			// Повторное создание индекса не считается ошибкой установки
			if models.IsIntegrityViolation(err) || strings.Contains(err.Error(), "Duplicate key name") {
				logger.Debug("Пропущен оператор (объект уже существует): %v", err)
				continue
			}
			return fmt.Errorf("ошибка при выполнении оператора из %s: %w", path, err)
		}
		executed++
	}

	logger.Info("Выполнен SQL-файл %s (%d операторов)", path, executed)
	return nil
}

// populateDateDimension заполняет dim_date датами 2020–2030.
// Повторный запуск безопасен: существующие даты не изменяются.
func populateDateDimension(ctx context.Context, conn *sql.Conn, logger *utils.ETLLogger) error {
	startTime := time.Now()
	logger.Info("Заполнение измерения дат (%s - %s)",
		dimDateFrom.Format("2006-01-02"), dimDateTo.Format("2006-01-02"))

	const batchSize = 1000
	var (
		values strings.Builder
		args   []interface{}
		rows   int
		total  int
	)

	flush := func() error {
		if rows == 0 {
			return nil
		}
		query := `
			INSERT INTO dim_date
			(date_id, full_date, year, quarter, month, month_name, week,
			day_of_month, day_of_week, day_name, is_weekend)
			VALUES ` + values.String() + `
			ON DUPLICATE KEY UPDATE date_id = date_id`

		if _, err := conn.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("ошибка при заполнении dim_date: %w", err)
		}
		total += rows
		values.Reset()
		args = args[:0]
		rows = 0
		return nil
	}

	for day := dimDateFrom; !day.After(dimDateTo); day = day.AddDate(0, 0, 1) {
		if rows > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")

		_, week := day.ISOWeek()
		weekday := int(day.Weekday()) + 1 // 1 = воскресенье, как в MySQL DAYOFWEEK
		args = append(args,
			models.DateID(day),
			day.Format("2006-01-02"),
			day.Year(),
			(int(day.Month())+2)/3,
			int(day.Month()),
			day.Month().String(),
			week,
			day.Day(),
			weekday,
			day.Weekday().String(),
			day.Weekday() == time.Saturday || day.Weekday() == time.Sunday,
		)
		rows++

		if rows == batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := flush(); err != nil {
		return err
	}

	logger.Info("Измерение дат заполнено: %d дат. Длительность: %v", total, time.Since(startTime))
	return nil
}
