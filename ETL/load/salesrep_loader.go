package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// SalesRepLoader отвечает за загрузку измерения торговых представителей
type SalesRepLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewSalesRepLoader создает новый экземпляр SalesRepLoader
func NewSalesRepLoader(db *sql.DB, logger *utils.ETLLogger) *SalesRepLoader {
	return &SalesRepLoader{
		db:     db,
		logger: logger,
	}
}

// Upsert загружает торговых представителей в dim_sales_rep по натуральному ключу
func (l *SalesRepLoader) Upsert(reps []models.SalesRepDimension) (map[string]int64, error) {
	keys := make(map[string]int64, len(reps))
	if len(reps) == 0 {
		l.logger.Debug("Нет данных торговых представителей для загрузки")
		return keys, nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки измерения торговых представителей (всего: %d)", len(reps))

	stmt, err := l.db.Prepare(`
		INSERT INTO dim_sales_rep
		(rep_code, rep_name, region, hire_date, last_updated)
		VALUES (?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
		rep_name = VALUES(rep_name),
		region = VALUES(region),
		hire_date = VALUES(hire_date),
		last_updated = NOW(),
		rep_id = LAST_INSERT_ID(rep_id)
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка при подготовке запроса: %w", err)
	}
	defer stmt.Close()

	tx, err := l.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("ошибка при начале транзакции: %w", err)
	}

	txStmt := tx.Stmt(stmt)
	defer txStmt.Close()

	for _, rep := range reps {
		var hireDate interface{}
		if !rep.HireDate.IsZero() {
			hireDate = rep.HireDate.Format("2006-01-02")
		}

		result, err := txStmt.Exec(
			rep.Code,
			rep.Name,
			rep.Region,
			hireDate,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("ошибка при upsert торгового представителя %s: %w", rep.Code, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("ошибка при получении суррогатного ключа представителя %s: %w", rep.Code, err)
		}
		keys[rep.Code] = id
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка при фиксации транзакции торговых представителей: %w", err)
	}

	l.logger.Info("Загрузка измерения торговых представителей завершена. Записей: %d. Длительность: %v",
		len(reps), time.Since(startTime))

	return keys, nil
}

// LookupKeys возвращает суррогатные ключи существующих представителей
func (l *SalesRepLoader) LookupKeys(codes []string) (map[string]int64, error) {
	return lookupDimensionKeys(l.db, "dim_sales_rep", "rep_id", "rep_code", codes)
}
