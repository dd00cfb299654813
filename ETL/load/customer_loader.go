package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// CustomerLoader отвечает за загрузку измерения покупателей
type CustomerLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewCustomerLoader создает новый экземпляр CustomerLoader
func NewCustomerLoader(db *sql.DB, logger *utils.ETLLogger) *CustomerLoader {
	return &CustomerLoader{
		db:     db,
		logger: logger,
	}
}

// Upsert загружает покупателей в dim_customer по натуральному ключу.
// Все записи применяются в одной транзакции; при любой ошибке транзакция
// откатывается целиком. Возвращает соответствие код → суррогатный ключ.
func (l *CustomerLoader) Upsert(customers []models.CustomerDimension) (map[string]int64, error) {
	keys := make(map[string]int64, len(customers))
	if len(customers) == 0 {
		l.logger.Debug("Нет данных покупателей для загрузки")
		return keys, nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки измерения покупателей (всего: %d)", len(customers))

	stmt, err := l.db.Prepare(`
		INSERT INTO dim_customer
		(customer_code, customer_name, email, city, region, segment, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
		customer_name = VALUES(customer_name),
		email = VALUES(email),
		city = VALUES(city),
		region = VALUES(region),
		segment = VALUES(segment),
		last_updated = NOW(),
		customer_id = LAST_INSERT_ID(customer_id)
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

	for _, customer := range customers {
		result, err := txStmt.Exec(
			customer.Code,
			customer.Name,
			customer.Email,
			customer.City,
			customer.Region,
			customer.Segment,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("ошибка при upsert покупателя %s: %w", customer.Code, err)
		}

		// LAST_INSERT_ID(customer_id) возвращает суррогатный ключ
		// и при вставке, и при обновлении существующей записи
		id, err := result.LastInsertId()
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("ошибка при получении суррогатного ключа покупателя %s: %w", customer.Code, err)
		}
		keys[customer.Code] = id
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка при фиксации транзакции покупателей: %w", err)
	}

	l.logger.Info("Загрузка измерения покупателей завершена. Записей: %d. Длительность: %v",
		len(customers), time.Since(startTime))

	return keys, nil
}

// LookupKeys возвращает суррогатные ключи для уже существующих в хранилище
// покупателей по их натуральным ключам
func (l *CustomerLoader) LookupKeys(codes []string) (map[string]int64, error) {
	return lookupDimensionKeys(l.db, "dim_customer", "customer_id", "customer_code", codes)
}
