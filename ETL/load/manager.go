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

// LoadManager отвечает за управление фазой Load: сначала измерения
// (каждое в своей транзакции), затем факты чанками. Порядок обязателен:
// факты ссылаются на суррогатные ключи, полученные при upsert измерений.
type LoadManager struct {
	db     *sql.DB
	logger *utils.ETLLogger

	customerLoader *CustomerLoader
	productLoader  *ProductLoader
	repLoader      *SalesRepLoader
	factLoader     *FactLoader
}

// NewLoadManager создает новый экземпляр LoadManager
func NewLoadManager(db *sql.DB, logger *utils.ETLLogger, chunkSize int) *LoadManager {
	return &LoadManager{
		db:             db,
		logger:         logger,
		customerLoader: NewCustomerLoader(db, logger),
		productLoader:  NewProductLoader(db, logger),
		repLoader:      NewSalesRepLoader(db, logger),
		factLoader:     NewFactLoader(db, logger, chunkSize),
	}
}

// Load выполняет фазу загрузки данных ETL-процесса
func (m *LoadManager) Load(ctx context.Context, data *models.TransformedData) (*models.LoadReport, error) {
	startTime := time.Now()
	m.logger.LogStageStart(models.StageLoad)

	report := &models.LoadReport{}

	// 1. Измерение покупателей
	customerKeys, err := m.customerLoader.Upsert(data.Customers)
	if err != nil {
		return report, fmt.Errorf("ошибка при загрузке измерения покупателей: %w", err)
	}
	report.CustomersUpserted = len(data.Customers)

	// 2. Измерение товаров
	productKeys, err := m.productLoader.Upsert(data.Products)
	if err != nil {
		return report, fmt.Errorf("ошибка при загрузке измерения товаров: %w", err)
	}
	report.ProductsUpserted = len(data.Products)

	// 3. Измерение торговых представителей
	repKeys, err := m.repLoader.Upsert(data.SalesReps)
	if err != nil {
		return report, fmt.Errorf("ошибка при загрузке измерения торговых представителей: %w", err)
	}
	report.SalesRepsUpserted = len(data.SalesReps)

	keys := &SurrogateKeys{
		Customers: customerKeys,
		Products:  productKeys,
		SalesReps: repKeys,
	}

	// Факты могут ссылаться на измерения, загруженные прошлыми запусками:
	// добираем их суррогатные ключи из хранилища
	if err := m.resolveMissingKeys(data.Sales, keys); err != nil {
		return report, err
	}

	// 4. Факты продаж
	inserted, skipped, err := m.factLoader.Load(ctx, data.Sales, keys)
	report.FactsInserted = inserted
	report.DuplicatesSkipped = skipped
	if err != nil {
		return report, fmt.Errorf("ошибка при загрузке фактов продаж: %w", err)
	}

	m.logger.LogStageComplete(models.StageLoad, report.TotalRecords(), time.Since(startTime))
	return report, nil
}

// DimensionKeys возвращает натуральные ключи измерений, уже существующие
// в хранилище. Используется валидатором для проверки ссылок фактов.
func (m *LoadManager) DimensionKeys() (models.DimensionKeys, error) {
	keys := models.NewDimensionKeys()

	queries := []struct {
		query string
		into  map[string]bool
	}{
		{"SELECT customer_code FROM dim_customer", keys.Customers},
		{"SELECT product_code FROM dim_product", keys.Products},
		{"SELECT rep_code FROM dim_sales_rep", keys.SalesReps},
	}

	for _, q := range queries {
		rows, err := m.db.Query(q.query)
		if err != nil {
			return keys, fmt.Errorf("ошибка при получении ключей измерения: %w", err)
		}

		for rows.Next() {
			var code string
			if err := rows.Scan(&code); err != nil {
				rows.Close()
				return keys, fmt.Errorf("ошибка при сканировании ключа измерения: %w", err)
			}
			q.into[strings.ToUpper(code)] = true
		}

		if err := rows.Err(); err != nil {
			rows.Close()
			return keys, fmt.Errorf("ошибка после итерации по ключам измерения: %w", err)
		}
		rows.Close()
	}

	return keys, nil
}

// resolveMissingKeys добирает суррогатные ключи, отсутствующие в батче
func (m *LoadManager) resolveMissingKeys(sales []models.CleanSale, keys *SurrogateKeys) error {
	var missingCustomers, missingProducts, missingReps []string
	seenCustomers := make(map[string]bool)
	seenProducts := make(map[string]bool)
	seenReps := make(map[string]bool)

	for _, sale := range sales {
		if _, ok := keys.Customers[sale.CustomerCode]; !ok && !seenCustomers[sale.CustomerCode] {
			missingCustomers = append(missingCustomers, sale.CustomerCode)
			seenCustomers[sale.CustomerCode] = true
		}
		if _, ok := keys.Products[sale.ProductCode]; !ok && !seenProducts[sale.ProductCode] {
			missingProducts = append(missingProducts, sale.ProductCode)
			seenProducts[sale.ProductCode] = true
		}
		if sale.RepCode != "" {
			if _, ok := keys.SalesReps[sale.RepCode]; !ok && !seenReps[sale.RepCode] {
				missingReps = append(missingReps, sale.RepCode)
				seenReps[sale.RepCode] = true
			}
		}
	}

	if len(missingCustomers) > 0 {
		found, err := m.customerLoader.LookupKeys(missingCustomers)
		if err != nil {
			return fmt.Errorf("ошибка при поиске ключей покупателей: %w", err)
		}
		mergeKeys(keys.Customers, found)
	}
	if len(missingProducts) > 0 {
		found, err := m.productLoader.LookupKeys(missingProducts)
		if err != nil {
			return fmt.Errorf("ошибка при поиске ключей товаров: %w", err)
		}
		mergeKeys(keys.Products, found)
	}
	if len(missingReps) > 0 {
		found, err := m.repLoader.LookupKeys(missingReps)
		if err != nil {
			return fmt.Errorf("ошибка при поиске ключей представителей: %w", err)
		}
		mergeKeys(keys.SalesReps, found)
	}

	return nil
}

func mergeKeys(dst, src map[string]int64) {
	for code, id := range src {
		dst[code] = id
	}
}

// lookupDimensionKeys возвращает соответствие натуральный ключ → суррогатный
// ключ для указанных кодов измерения
func lookupDimensionKeys(db *sql.DB, table, idColumn, codeColumn string, codes []string) (map[string]int64, error) {
	keys := make(map[string]int64, len(codes))
	if len(codes) == 0 {
		return keys, nil
	}

	args := make([]interface{}, len(codes))
	for i, code := range codes {
		args[i] = code
	}

	query := fmt.Sprintf("SELECT %s, %s FROM %s WHERE %s IN (%s)",
		codeColumn, idColumn, table, codeColumn, placeholders(len(codes)))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе ключей %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var code string
		var id int64
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("ошибка при сканировании ключа %s: %w", table, err)
		}
		keys[code] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка после итерации по ключам %s: %w", table, err)
	}

	return keys, nil
}

// placeholders возвращает строку вида "?, ?, ?" из n плейсхолдеров
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
