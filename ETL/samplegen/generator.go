// Package samplegen генерирует согласованные тестовые CSV-файлы для
// режима источника sample. Генератор - тонкая обертка, в логику
// пайплайна не входит.
package samplegen

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/extractors"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

var (
	cities   = []string{"Москва", "Санкт-Петербург", "Новосибирск", "Екатеринбург", "Казань"}
	regions  = []string{"Центральный", "Северо-Западный", "Сибирский", "Уральский", "Приволжский"}
	segments = []string{"Retail", "Wholesale", "Online"}

	categories = []string{"Электроника", "Бытовая техника", "Одежда", "Спорт", "Книги"}
	payments   = []string{"Card", "Cash", "Transfer", ""}
)

// Generate записывает четыре CSV-файла с примерами данных в каталог dir
func Generate(dir string, customers, products, reps, sales int, seed int64, logger *utils.ETLLogger) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("ошибка при создании каталога данных: %w", err)
	}

	rng := rand.New(rand.NewSource(seed))

	if err := writeCustomers(dir, customers, rng); err != nil {
		return err
	}
	if err := writeProducts(dir, products, rng); err != nil {
		return err
	}
	if err := writeSalesReps(dir, reps, rng); err != nil {
		return err
	}
	if err := writeSales(dir, sales, customers, products, reps, rng); err != nil {
		return err
	}

	logger.Info("Сгенерированы примеры данных в %s: %d покупателей, %d товаров, %d представителей, %d транзакций",
		dir, customers, products, reps, sales)
	return nil
}

func writeCSV(dir, filename string, header []string, rows [][]string) error {
	file, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return fmt.Errorf("ошибка при создании файла %s: %w", filename, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("ошибка при записи заголовка %s: %w", filename, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("ошибка при записи строк %s: %w", filename, err)
	}
	writer.Flush()
	return writer.Error()
}

func writeCustomers(dir string, n int, rng *rand.Rand) error {
	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		region := rng.Intn(len(regions))
		rows = append(rows, []string{
			fmt.Sprintf("CUST-%03d", i),
			fmt.Sprintf("Покупатель %d", i),
			fmt.Sprintf("customer%d@example.com", i),
			cities[region],
			regions[region],
			segments[rng.Intn(len(segments))],
		})
	}
	return writeCSV(dir, extractors.CustomersFile, extractors.CustomerColumns, rows)
}

func writeProducts(dir string, n int, rng *rand.Rand) error {
	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		price := 100 + rng.Float64()*900
		rows = append(rows, []string{
			fmt.Sprintf("PROD-%03d", i),
			fmt.Sprintf("Товар %d", i),
			categories[rng.Intn(len(categories))],
			fmt.Sprintf("%.2f", price),
			fmt.Sprintf("%.2f", price*(0.5+rng.Float64()*0.3)),
		})
	}
	return writeCSV(dir, extractors.ProductsFile, extractors.ProductColumns, rows)
}

func writeSalesReps(dir string, n int, rng *rand.Rand) error {
	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		hire := time.Date(2018+rng.Intn(6), time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)
		rows = append(rows, []string{
			fmt.Sprintf("REP-%02d", i),
			fmt.Sprintf("Представитель %d", i),
			regions[rng.Intn(len(regions))],
			hire.Format("2006-01-02"),
		})
	}
	return writeCSV(dir, extractors.SalesRepsFile, extractors.SalesRepColumns, rows)
}

func writeSales(dir string, n, customers, products, reps int, rng *rand.Rand) error {
	rows := make([][]string, 0, n)
	for i := 1; i <= n; i++ {
		quantity := 1 + rng.Intn(10)
		unitPrice := 100 + rng.Float64()*900
		subtotal := float64(quantity) * unitPrice
		discount := 0.0
		if rng.Intn(4) == 0 {
			discount = subtotal * 0.1
		}
		date := time.Date(2024, time.Month(1+rng.Intn(12)), 1+rng.Intn(28), 0, 0, 0, 0, time.UTC)

		// REP не назначается примерно каждой десятой транзакции
		repCode := fmt.Sprintf("REP-%02d", 1+rng.Intn(reps))
		if rng.Intn(10) == 0 {
			repCode = ""
		}

		rows = append(rows, []string{
			fmt.Sprintf("ORD-%05d", i),
			date.Format("2006-01-02"),
			fmt.Sprintf("CUST-%03d", 1+rng.Intn(customers)),
			fmt.Sprintf("PROD-%03d", 1+rng.Intn(products)),
			repCode,
			fmt.Sprintf("%d", quantity),
			fmt.Sprintf("%.2f", unitPrice),
			fmt.Sprintf("%.2f", discount),
			fmt.Sprintf("%.2f", subtotal*0.2),
			fmt.Sprintf("%.2f", subtotal*0.6),
			payments[rng.Intn(len(payments))],
		})
	}
	return writeCSV(dir, extractors.SalesFile, extractors.SalesColumns, rows)
}
