package models

import (
	"strings"
	"time"
)

// RawRecord представляет необработанную строку из источника данных.
// Значения хранятся как строки и индексируются по имени колонки источника.
type RawRecord struct {
	Line   int
	Fields map[string]string
}

// Get возвращает значение поля с обрезанными пробелами
func (r RawRecord) Get(column string) string {
	return strings.TrimSpace(r.Fields[column])
}

// ExtractedData содержит все сырые записи, извлеченные за один запуск
type ExtractedData struct {
	Customers []RawRecord
	Products  []RawRecord
	SalesReps []RawRecord
	Sales     []RawRecord
	SourceDir string
}

// TotalRecords возвращает общее количество извлеченных записей
func (d *ExtractedData) TotalRecords() int {
	return len(d.Customers) + len(d.Products) + len(d.SalesReps) + len(d.Sales)
}

// ValidatedData содержит записи, прошедшие валидацию, и счетчик отклоненных
type ValidatedData struct {
	Customers []RawRecord
	Products  []RawRecord
	SalesReps []RawRecord
	Sales     []RawRecord
	Rejected  []RejectedRecord
}

// TotalValid возвращает количество записей, прошедших валидацию
func (d *ValidatedData) TotalValid() int {
	return len(d.Customers) + len(d.Products) + len(d.SalesReps) + len(d.Sales)
}

// CustomerDimension представляет измерение покупателей в хранилище
type CustomerDimension struct {
	ID      int64
	Code    string // натуральный ключ (customer_code)
	Name    string
	Email   string
	City    string
	Region  string
	Segment string
}

// ProductDimension представляет измерение товаров в хранилище
type ProductDimension struct {
	ID        int64
	Code      string // натуральный ключ (product_code)
	Name      string
	Category  string
	UnitPrice float64
	UnitCost  float64
}

// SalesRepDimension представляет измерение торговых представителей
type SalesRepDimension struct {
	ID       int64
	Code     string // натуральный ключ (rep_code)
	Name     string
	Region   string
	HireDate time.Time
}

// CleanSale представляет очищенную и типизированную транзакцию продажи.
// Инвариант: Total = Subtotal - Discount + Tax; Profit = Total - Cost;
// Margin = 0 при Total = 0, иначе Profit / Total * 100.
type CleanSale struct {
	OrderNumber   string
	CustomerCode  string
	ProductCode   string
	RepCode       string // может быть пустым, схема допускает NULL
	DateID        int    // ключ измерения дат в формате YYYYMMDD
	Quantity      int
	UnitPrice     float64
	Subtotal      float64
	Discount      float64
	Tax           float64
	Total         float64
	Cost          float64
	Profit        float64
	Margin        float64
	PaymentMethod string
}

// TransformedData содержит результат фазы Transform
type TransformedData struct {
	Customers []CustomerDimension
	Products  []ProductDimension
	SalesReps []SalesRepDimension
	Sales     []CleanSale
}

// TotalRecords возвращает общее количество преобразованных записей
func (d *TransformedData) TotalRecords() int {
	return len(d.Customers) + len(d.Products) + len(d.SalesReps) + len(d.Sales)
}

// DimensionKeys содержит известные натуральные ключи измерений.
// Используется валидатором для проверки ссылочной целостности до загрузки.
type DimensionKeys struct {
	Customers map[string]bool
	Products  map[string]bool
	SalesReps map[string]bool
}

// NewDimensionKeys создает пустой набор известных ключей
func NewDimensionKeys() DimensionKeys {
	return DimensionKeys{
		Customers: make(map[string]bool),
		Products:  make(map[string]bool),
		SalesReps: make(map[string]bool),
	}
}

// RejectedRecord описывает запись, отклоненную валидатором или трансформатором.
// Отклонение не прерывает запуск: запись логируется и исключается из загрузки.
type RejectedRecord struct {
	Kind   string            `json:"kind"`
	Line   int               `json:"line"`
	Reason string            `json:"reason"`
	Fields map[string]string `json:"fields,omitempty"`
}

// LoadReport содержит итоги фазы Load
type LoadReport struct {
	CustomersUpserted int
	ProductsUpserted  int
	SalesRepsUpserted int
	FactsInserted     int
	DuplicatesSkipped int
}

// TotalRecords возвращает общее количество записей, отраженных в хранилище
func (r *LoadReport) TotalRecords() int {
	return r.CustomersUpserted + r.ProductsUpserted + r.SalesRepsUpserted +
		r.FactsInserted + r.DuplicatesSkipped
}

// RunSummary - итог одного запуска пайплайна, возвращаемый вызывающей стороне
type RunSummary struct {
	RunID        string    `json:"run_id"`
	Pipeline     string    `json:"pipeline"`
	Status       string    `json:"status"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Extracted    int       `json:"extracted"`
	Rejected     int       `json:"rejected"`
	Transformed  int       `json:"transformed"`
	Loaded       int       `json:"loaded"`
	Duplicates   int       `json:"duplicates"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// Duration возвращает длительность запуска
func (s *RunSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// DateID вычисляет ключ измерения дат в формате YYYYMMDD
func DateID(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}
