package utils

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/golang/snappy"
)

// RejectWriter пишет отклоненные записи в сжатый snappy архив формата
// JSON Lines. Архив создается отдельно для каждого запуска и служит
// для последующего разбора плохих строк операторами.
type RejectWriter struct {
	mu   sync.Mutex
	file *os.File
	w    *snappy.Writer
}

// NewRejectWriter создает архив отклоненных записей для запуска runID
func NewRejectWriter(dir, runID string) (*RejectWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("ошибка при создании каталога архива отклоненных записей: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("rejects_%s.jsonl.snappy", runID))
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка при создании архива отклоненных записей: %w", err)
	}

	return &RejectWriter{
		file: file,
		w:    snappy.NewBufferedWriter(file),
	}, nil
}

// Write добавляет отклоненную запись в архив
func (rw *RejectWriter) Write(rec models.RejectedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка при сериализации отклоненной записи: %w", err)
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if _, err := rw.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("ошибка при записи в архив отклоненных записей: %w", err)
	}
	return nil
}

// WriteAll добавляет набор отклоненных записей в архив
func (rw *RejectWriter) WriteAll(recs []models.RejectedRecord) error {
	for _, rec := range recs {
		if err := rw.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close сбрасывает буферы и закрывает архив
func (rw *RejectWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	if err := rw.w.Close(); err != nil {
		rw.file.Close()
		return fmt.Errorf("ошибка при закрытии snappy-потока: %w", err)
	}
	return rw.file.Close()
}
