package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/extractors"
	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// Диапазон дат, покрываемый измерением dim_date
var (
	minOrderDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	maxOrderDate = time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
)

// DateLayout - формат дат в исходных файлах
const DateLayout = "2006-01-02"

// Validator проверяет структурную и ссылочную корректность сырых записей.
// Отклоненные записи логируются с причиной, но не прерывают запуск:
// одна плохая строка не должна блокировать весь батч.
type Validator struct {
	logger *utils.ETLLogger
}

// NewValidator создает новый экземпляр Validator
func NewValidator(logger *utils.ETLLogger) *Validator {
	return &Validator{
		logger: logger,
	}
}

// Validate разбивает извлеченные записи на прошедшие проверку и отклоненные.
// knownKeys - натуральные ключи измерений, уже существующие в хранилище;
// к ним добавляются ключи из записей измерений текущего батча.
func (v *Validator) Validate(data *models.ExtractedData, knownKeys models.DimensionKeys) (*models.ValidatedData, error) {
	result := &models.ValidatedData{}

	// Сначала измерения: их ключи пополняют множества для проверки ссылок фактов
	for _, rec := range data.Customers {
		if reason, ok := v.checkCustomer(rec); !ok {
			v.reject(result, extractors.KindCustomer, rec, reason)
			continue
		}
		result.Customers = append(result.Customers, rec)
		knownKeys.Customers[normalizeCode(rec.Get("customer_code"))] = true
	}

	for _, rec := range data.Products {
		if reason, ok := v.checkProduct(rec); !ok {
			v.reject(result, extractors.KindProduct, rec, reason)
			continue
		}
		result.Products = append(result.Products, rec)
		knownKeys.Products[normalizeCode(rec.Get("product_code"))] = true
	}

	for _, rec := range data.SalesReps {
		if reason, ok := v.checkSalesRep(rec); !ok {
			v.reject(result, extractors.KindSalesRep, rec, reason)
			continue
		}
		result.SalesReps = append(result.SalesReps, rec)
		knownKeys.SalesReps[normalizeCode(rec.Get("rep_code"))] = true
	}

	for _, rec := range data.Sales {
		if reason, ok := v.checkSale(rec, knownKeys); !ok {
			v.reject(result, extractors.KindSale, rec, reason)
			continue
		}
		result.Sales = append(result.Sales, rec)
	}

	v.logger.Info("Валидация завершена: прошло %d записей, отклонено %d",
		result.TotalValid(), len(result.Rejected))

	return result, nil
}

func (v *Validator) reject(result *models.ValidatedData, kind string, rec models.RawRecord, reason string) {
	v.logger.LogReject(kind, rec.Line, reason)
	result.Rejected = append(result.Rejected, models.RejectedRecord{
		Kind:   kind,
		Line:   rec.Line,
		Reason: reason,
		Fields: rec.Fields,
	})
}

func (v *Validator) checkCustomer(rec models.RawRecord) (string, bool) {
	if reason, ok := requireFields(rec, "customer_code", "customer_name"); !ok {
		return reason, false
	}
	return "", true
}

func (v *Validator) checkProduct(rec models.RawRecord) (string, bool) {
	if reason, ok := requireFields(rec, "product_code", "product_name"); !ok {
		return reason, false
	}
	if reason, ok := requireNonNegativeFloat(rec, "unit_price"); !ok {
		return reason, false
	}
	if reason, ok := requireNonNegativeFloat(rec, "unit_cost"); !ok {
		return reason, false
	}
	return "", true
}

func (v *Validator) checkSalesRep(rec models.RawRecord) (string, bool) {
	if reason, ok := requireFields(rec, "rep_code", "rep_name"); !ok {
		return reason, false
	}
	if hire := rec.Get("hire_date"); hire != "" {
		if _, err := time.Parse(DateLayout, hire); err != nil {
			return fmt.Sprintf("поле hire_date не является датой: %q", hire), false
		}
	}
	return "", true
}

func (v *Validator) checkSale(rec models.RawRecord, keys models.DimensionKeys) (string, bool) {
	if reason, ok := requireFields(rec, "order_number", "order_date", "customer_code", "product_code", "quantity", "unit_price"); !ok {
		return reason, false
	}

	// Числовые поля должны разбираться
	if _, err := strconv.Atoi(rec.Get("quantity")); err != nil {
		return fmt.Sprintf("поле quantity не является числом: %q", rec.Get("quantity")), false
	}
	for _, field := range []string{"unit_price", "discount_amount", "tax_amount", "cost_amount"} {
		value := rec.Get(field)
		if value == "" {
			continue // пустые денежные поля трактуются как ноль на фазе Transform
		}
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Sprintf("поле %s не является числом: %q", field, value), false
		}
	}

	// Дата заказа должна попадать в диапазон измерения дат
	orderDate, err := time.Parse(DateLayout, rec.Get("order_date"))
	if err != nil {
		return fmt.Sprintf("поле order_date не является датой: %q", rec.Get("order_date")), false
	}
	if orderDate.Before(minOrderDate) || orderDate.After(maxOrderDate) {
		return fmt.Sprintf("дата заказа %s вне диапазона измерения дат", rec.Get("order_date")), false
	}

	// Ссылочная целостность: натуральные ключи должны разрешаться.
	// Коды приводятся к верхнему регистру, как это делает загрузчик
	if code := normalizeCode(rec.Get("customer_code")); !keys.Customers[code] {
		return fmt.Sprintf("покупатель %s не найден в измерении", code), false
	}
	if code := normalizeCode(rec.Get("product_code")); !keys.Products[code] {
		return fmt.Sprintf("товар %s не найден в измерении", code), false
	}
	// rep_code допускает NULL в схеме, но непустое значение должно разрешаться
	if code := normalizeCode(rec.Get("rep_code")); code != "" && !keys.SalesReps[code] {
		return fmt.Sprintf("торговый представитель %s не найден в измерении", code), false
	}

	return "", true
}

// normalizeCode приводит натуральный ключ к регистру, в котором коды
// хранятся в измерениях хранилища
func normalizeCode(code string) string {
	return strings.ToUpper(code)
}

// requireFields проверяет, что обязательные поля присутствуют и непусты
func requireFields(rec models.RawRecord, fields ...string) (string, bool) {
	for _, field := range fields {
		if rec.Get(field) == "" {
			return fmt.Sprintf("отсутствует обязательное поле %s", field), false
		}
	}
	return "", true
}

// requireNonNegativeFloat проверяет, что поле - неотрицательное число
func requireNonNegativeFloat(rec models.RawRecord, field string) (string, bool) {
	value := rec.Get(field)
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Sprintf("поле %s не является числом: %q", field, value), false
	}
	if parsed < 0 {
		return fmt.Sprintf("поле %s не может быть отрицательным: %v", field, parsed), false
	}
	return "", true
}
