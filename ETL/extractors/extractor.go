package extractors

import (
	"errors"
	"fmt"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// Имена файлов-источников
const (
	CustomersFile = "customers.csv"
	ProductsFile  = "products.csv"
	SalesRepsFile = "sales_reps.csv"
	SalesFile     = "sales_transactions.csv"
)

// Виды записей
const (
	KindCustomer = "customer"
	KindProduct  = "product"
	KindSalesRep = "sales_rep"
	KindSale     = "sale"
)

// Ожидаемые наборы колонок для каждого вида записей
var (
	CustomerColumns = []string{"customer_code", "customer_name", "email", "city", "region", "segment"}
	ProductColumns  = []string{"product_code", "product_name", "category", "unit_price", "unit_cost"}
	SalesRepColumns = []string{"rep_code", "rep_name", "region", "hire_date"}
	SalesColumns    = []string{
		"order_number", "order_date", "customer_code", "product_code", "rep_code",
		"quantity", "unit_price", "discount_amount", "tax_amount", "cost_amount", "payment_method",
	}
)

// Extractor координирует извлечение всех видов записей из каталога источника
type Extractor struct {
	source *CSVSource
	logger *utils.ETLLogger
}

// NewExtractor создает новый экземпляр Extractor для каталога dataPath
func NewExtractor(dataPath string, logger *utils.ETLLogger) *Extractor {
	return &Extractor{
		source: NewCSVSource(dataPath, logger),
		logger: logger,
	}
}

// Extract извлекает все четыре вида записей. Пустой источник - предупреждение,
// запуск продолжается без его записей; недоступный источник прерывает запуск.
func (e *Extractor) Extract() (*models.ExtractedData, error) {
	startTime := time.Now()
	e.logger.LogStageStart(models.StageExtract)

	var data models.ExtractedData
	var err error
	data.SourceDir = e.source.dataPath

	data.Customers, err = e.readOptionalEmpty(KindCustomer, CustomersFile, CustomerColumns)
	if err != nil {
		return nil, err
	}

	data.Products, err = e.readOptionalEmpty(KindProduct, ProductsFile, ProductColumns)
	if err != nil {
		return nil, err
	}

	data.SalesReps, err = e.readOptionalEmpty(KindSalesRep, SalesRepsFile, SalesRepColumns)
	if err != nil {
		return nil, err
	}

	data.Sales, err = e.readOptionalEmpty(KindSale, SalesFile, SalesColumns)
	if err != nil {
		return nil, err
	}

	e.logger.LogStageComplete(models.StageExtract, data.TotalRecords(), time.Since(startTime))
	return &data, nil
}

// readOptionalEmpty читает один источник, превращая ErrSourceEmpty
// в предупреждение с пустым результатом
func (e *Extractor) readOptionalEmpty(kind, filename string, columns []string) ([]models.RawRecord, error) {
	records, err := e.source.ReadRecords(kind, filename, columns)
	if err != nil {
		if errors.Is(err, models.ErrSourceEmpty) {
			e.logger.Info("Предупреждение: %v - запуск продолжается без записей %s", err, kind)
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка извлечения %s: %w", kind, err)
	}
	return records, nil
}
