package load

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// SurrogateKeys содержит суррогатные ключи измерений, разрешенные
// в текущем запуске, для подстановки в строки фактов
type SurrogateKeys struct {
	Customers map[string]int64
	Products  map[string]int64
	SalesReps map[string]int64
}

// FactLoader отвечает за идемпотентную загрузку фактов продаж.
// Батч делится на чанки; каждый чанк применяется в отдельной транзакции
// целиком или откатывается целиком. Повторная загрузка того же номера
// заказа не создает дубликат: строка пропускается и учитывается отдельно.
type FactLoader struct {
	db        *sql.DB
	logger    *utils.ETLLogger
	chunkSize int
}

// NewFactLoader создает новый экземпляр FactLoader
func NewFactLoader(db *sql.DB, logger *utils.ETLLogger, chunkSize int) *FactLoader {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	return &FactLoader{
		db:        db,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

// Load загружает факты продаж чанками. Чанки фиксируются строго
// последовательно; при ошибке возвращается ChunkError с границами
// неприменившегося чанка - все предыдущие чанки уже зафиксированы.
func (l *FactLoader) Load(ctx context.Context, sales []models.CleanSale, keys *SurrogateKeys) (inserted, skipped int, err error) {
	if len(sales) == 0 {
		l.logger.Debug("Нет фактов продаж для загрузки")
		return 0, 0, nil
	}

	startTime := time.Now()
	l.logger.Info("Начало загрузки фактов продаж (всего: %d, размер чанка: %d)", len(sales), l.chunkSize)

	chunkIndex := 0
	for offset := 0; offset < len(sales); offset += l.chunkSize {
		if err := ctx.Err(); err != nil {
			return inserted, skipped, fmt.Errorf("загрузка фактов прервана: %w", err)
		}

		end := offset + l.chunkSize
		if end > len(sales) {
			end = len(sales)
		}
		chunk := sales[offset:end]

		chunkInserted, chunkSkipped, err := l.loadChunk(chunk, keys)
		if err != nil {
			return inserted, skipped, &models.ChunkError{
				Chunk:  chunkIndex,
				Offset: offset,
				Size:   len(chunk),
				Err:    err,
			}
		}

		inserted += chunkInserted
		skipped += chunkSkipped
		l.logger.Debug("Чанк %d зафиксирован: вставлено %d, пропущено дубликатов %d",
			chunkIndex, chunkInserted, chunkSkipped)
		chunkIndex++
	}

	l.logger.Info("Загрузка фактов продаж завершена. Вставлено: %d, пропущено дубликатов: %d. Длительность: %v",
		inserted, skipped, time.Since(startTime))

	return inserted, skipped, nil
}

// loadChunk применяет один чанк в отдельной транзакции
func (l *FactLoader) loadChunk(chunk []models.CleanSale, keys *SurrogateKeys) (int, int, error) {
	tx, err := l.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("ошибка при начале транзакции чанка: %w", err)
	}

	// Уже загруженные номера заказов пропускаются: загрузка идемпотентна
	existing, err := l.existingOrderNumbers(tx, chunk)
	if err != nil {
		tx.Rollback()
		return 0, 0, err
	}

	var (
		values  strings.Builder
		args    []interface{}
		rows    int
		skipped int
	)

	// Повторы номера заказа внутри самого чанка тоже пропускаются:
	// вторая строка с тем же номером нарушила бы UNIQUE(order_number)
	seen := make(map[string]bool, len(chunk))

	for _, sale := range chunk {
		if existing[sale.OrderNumber] || seen[sale.OrderNumber] {
			skipped++
			continue
		}
		seen[sale.OrderNumber] = true

		customerID, ok := keys.Customers[sale.CustomerCode]
		if !ok {
			tx.Rollback()
			return 0, 0, fmt.Errorf("суррогатный ключ покупателя %s не разрешен", sale.CustomerCode)
		}
		productID, ok := keys.Products[sale.ProductCode]
		if !ok {
			tx.Rollback()
			return 0, 0, fmt.Errorf("суррогатный ключ товара %s не разрешен", sale.ProductCode)
		}

		// Торговый представитель может отсутствовать, схема допускает NULL
		repID := sql.NullInt64{}
		if sale.RepCode != "" {
			id, ok := keys.SalesReps[sale.RepCode]
			if !ok {
				tx.Rollback()
				return 0, 0, fmt.Errorf("суррогатный ключ представителя %s не разрешен", sale.RepCode)
			}
			repID = sql.NullInt64{Int64: id, Valid: true}
		}

		if rows > 0 {
			values.WriteString(", ")
		}
		values.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			sale.OrderNumber,
			customerID,
			productID,
			repID,
			sale.DateID,
			sale.Quantity,
			sale.UnitPrice,
			sale.Subtotal,
			sale.Discount,
			sale.Tax,
			sale.Total,
			sale.Cost,
			sale.PaymentMethod,
		)
		rows++
	}

	if rows == 0 {
		// Весь чанк состоит из дубликатов
		if err := tx.Commit(); err != nil {
			tx.Rollback()
			return 0, 0, fmt.Errorf("ошибка при фиксации пустого чанка: %w", err)
		}
		return 0, skipped, nil
	}

	// profit_amount и margin_percent - генерируемые колонки хранилища,
	// загрузчик их не записывает
	query := `
		INSERT INTO fact_sales
		(order_number, customer_id, product_id, rep_id, date_id, quantity,
		unit_price, subtotal_amount, discount_amount, tax_amount, total_amount,
		cost_amount, payment_method)
		VALUES ` + values.String()

	if _, err := tx.Exec(query, args...); err != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("ошибка при вставке фактов продаж: %w", err)
	}

	if err := tx.Commit(); err != nil {
		tx.Rollback()
		return 0, 0, fmt.Errorf("ошибка при фиксации чанка фактов: %w", err)
	}

	return rows, skipped, nil
}

// existingOrderNumbers возвращает номера заказов чанка, уже присутствующие
// в fact_sales. Проверка выполняется внутри транзакции чанка.
func (l *FactLoader) existingOrderNumbers(tx *sql.Tx, chunk []models.CleanSale) (map[string]bool, error) {
	orderNumbers := make([]interface{}, len(chunk))
	for i, sale := range chunk {
		orderNumbers[i] = sale.OrderNumber
	}

	query := fmt.Sprintf(
		"SELECT order_number FROM fact_sales WHERE order_number IN (%s)",
		placeholders(len(orderNumbers)),
	)

	rows, err := tx.Query(query, orderNumbers...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при поиске дубликатов заказов: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool)
	for rows.Next() {
		var orderNumber string
		if err := rows.Scan(&orderNumber); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании номера заказа: %w", err)
		}
		existing[orderNumber] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по номерам заказов: %w", err)
	}

	return existing, nil
}
