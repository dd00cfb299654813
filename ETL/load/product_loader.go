package load

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// ProductLoader отвечает за загрузку измерения товаров
type ProductLoader struct {
	db     *sql.DB
	logger *utils.ETLLogger
}

// NewProductLoader создает новый экземпляр ProductLoader
func NewProductLoader(db *sql.DB, logger *utils.ETLLogger) *ProductLoader {
	return &ProductLoader{
		db:     db,
		logger: logger,
	}
}

// Upsert загружает товары в dim_product по натуральному ключу.
// Натуральный и суррогатный ключи никогда не обновляются.
func (l *ProductLoader) Upsert(products []models.ProductDimension) (map[string]int64, error) {
	keys := make(map[string]int64, len(products))
	if len(products) == 0 {
		l.logger.Debug("Нет данных товаров для загрузки")
		return keys, nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки измерения товаров (всего: %d)", len(products))

	stmt, err := l.db.Prepare(`
		INSERT INTO dim_product
		(product_code, product_name, category, unit_price, unit_cost, last_updated)
		VALUES (?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE
		product_name = VALUES(product_name),
		category = VALUES(category),
		unit_price = VALUES(unit_price),
		unit_cost = VALUES(unit_cost),
		last_updated = NOW(),
		product_id = LAST_INSERT_ID(product_id)
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

	for _, product := range products {
		result, err := txStmt.Exec(
			product.Code,
			product.Name,
			product.Category,
			product.UnitPrice,
			product.UnitCost,
		)
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("ошибка при upsert товара %s: %w", product.Code, err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("ошибка при получении суррогатного ключа товара %s: %w", product.Code, err)
		}
		keys[product.Code] = id
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("ошибка при фиксации транзакции товаров: %w", err)
	}

	l.logger.Info("Загрузка измерения товаров завершена. Записей: %d. Длительность: %v",
		len(products), time.Since(startTime))

	return keys, nil
}

// LookupKeys возвращает суррогатные ключи существующих товаров
func (l *ProductLoader) LookupKeys(codes []string) (map[string]int64, error) {
	return lookupDimensionKeys(l.db, "dim_product", "product_id", "product_code", codes)
}
