package extractors

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// CSVSource читает сырые записи одного вида из CSV-файла
type CSVSource struct {
	dataPath string
	logger   *utils.ETLLogger
}

// NewCSVSource создает новый экземпляр CSVSource
func NewCSVSource(dataPath string, logger *utils.ETLLogger) *CSVSource {
	return &CSVSource{
		dataPath: dataPath,
		logger:   logger,
	}
}

// ReadRecords читает записи вида kind из файла filename и проверяет наличие
// обязательных колонок. Отсутствующий или нечитаемый файл - ErrSourceUnavailable,
// файл без строк данных - ErrSourceEmpty.
func (s *CSVSource) ReadRecords(kind, filename string, requiredColumns []string) ([]models.RawRecord, error) {
	path := filepath.Join(s.dataPath, filename)

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", models.ErrSourceUnavailable, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	// Читаем заголовок
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s", models.ErrSourceEmpty, path)
		}
		return nil, fmt.Errorf("%w: ошибка чтения заголовка %s (%v)", models.ErrSourceUnavailable, path, err)
	}

	columnIndex := make(map[string]int, len(header))
	for i, name := range header {
		columnIndex[name] = i
	}

	// Источник без ожидаемого набора колонок непригоден для извлечения
	for _, column := range requiredColumns {
		if _, ok := columnIndex[column]; !ok {
			return nil, fmt.Errorf("%w: в файле %s отсутствует колонка %q",
				models.ErrSourceUnavailable, path, column)
		}
	}

	var records []models.RawRecord
	line := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: ошибка чтения строки %d файла %s (%v)",
				models.ErrSourceUnavailable, line, path, err)
		}

		fields := make(map[string]string, len(columnIndex))
		for name, idx := range columnIndex {
			if idx < len(row) {
				fields[name] = row[idx]
			}
		}
		records = append(records, models.RawRecord{Line: line, Fields: fields})
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrSourceEmpty, path)
	}

	s.logger.Info("Извлечено %d записей %s из %s", len(records), kind, filename)
	return records, nil
}
