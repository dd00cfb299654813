package routes

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/pipeline"
)

// Ответ API для записей аудита
type RunsResponse struct {
	Days    int                 `json:"days"`
	Entries []models.AuditEntry `json:"entries"`
}

// Запрос на очистку журнала аудита
type PurgeRequest struct {
	RetentionDays int `json:"retention_days"`
}

// Ответ API для очистки журнала
type PurgeResponse struct {
	Deleted int64 `json:"deleted"`
}

// Ответ API для состояния пайплайна
type StatusResponse struct {
	Pipeline string `json:"pipeline"`
	State    string `json:"state"`
}

// GetRunsHandler возвращает записи аудита за последние N дней
// (параметры: days и sort из списка start_time, end_time, duration_seconds, pipeline_name)
func GetRunsHandler(audit models.AuditRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 7
		if daysStr := r.URL.Query().Get("days"); daysStr != "" {
			parsed, err := strconv.Atoi(daysStr)
			if err != nil || parsed <= 0 {
				http.Error(w, "Неверный формат параметра days", http.StatusBadRequest)
				return
			}
			days = parsed
		}

		entries, err := audit.RunsForDays(days, r.URL.Query().Get("sort"))
		if err != nil {
			log.Printf("❌ Ошибка при запросе записей аудита: %v", err)
			http.Error(w, "Ошибка при получении записей аудита", http.StatusInternalServerError)
			return
		}

		writeJSON(w, RunsResponse{Days: days, Entries: entries})
	}
}

// GetLastFailureHandler возвращает последний сбой пайплайна
func GetLastFailureHandler(audit models.AuditRepository, p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("pipeline")
		if name == "" {
			name = p.Name()
		}

		entry, err := audit.LastFailure(name)
		if err != nil {
			log.Printf("❌ Ошибка при запросе последнего сбоя: %v", err)
			http.Error(w, "Ошибка при получении последнего сбоя", http.StatusInternalServerError)
			return
		}
		if entry == nil {
			http.Error(w, "Сбоев не зафиксировано", http.StatusNotFound)
			return
		}

		writeJSON(w, entry)
	}
}

// PurgeHandler удаляет записи аудита старше указанного срока хранения
func PurgeHandler(audit models.AuditRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PurgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Неверный формат тела запроса", http.StatusBadRequest)
			return
		}
		if req.RetentionDays <= 0 {
			http.Error(w, "Поле retention_days должно быть положительным", http.StatusBadRequest)
			return
		}

		deleted, err := audit.Purge(req.RetentionDays)
		if err != nil {
			log.Printf("❌ Ошибка при очистке журнала аудита: %v", err)
			http.Error(w, "Ошибка при очистке журнала аудита", http.StatusInternalServerError)
			return
		}

		log.Printf("✅ Очистка журнала аудита: удалено %d записей старше %d дней", deleted, req.RetentionDays)
		writeJSON(w, PurgeResponse{Deleted: deleted})
	}
}

// RunHandler запускает пайплайн в фоне. Если запуск уже выполняется,
// возвращается 409 Conflict.
func RunHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Быстрая проверка до запуска горутины
		switch p.State() {
		case pipeline.StateIdle, pipeline.StateCompleted, pipeline.StateFailed:
		default:
			http.Error(w, "Запуск пайплайна уже выполняется", http.StatusConflict)
			return
		}

		go func() {
			summary, err := p.Run(context.Background())
			if err != nil {
				if errors.Is(err, models.ErrRunInProgress) {
					log.Printf("⚠️ Параллельный запуск пайплайна %s отклонен", p.Name())
					return
				}
				log.Printf("❌ Запуск пайплайна %s завершился с ошибкой: %v", p.Name(), err)
				return
			}
			log.Printf("✅ Запуск %s пайплайна %s завершен", summary.RunID, summary.Pipeline)
		}()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		if err := json.NewEncoder(w).Encode(StatusResponse{Pipeline: p.Name(), State: string(p.State())}); err != nil {
			log.Printf("❌ Ошибка при кодировании JSON: %v", err)
		}
	}
}

// StatusHandler возвращает текущее состояние конечного автомата пайплайна
func StatusHandler(p *pipeline.Pipeline) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, StatusResponse{Pipeline: p.Name(), State: string(p.State())})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("❌ Ошибка при кодировании JSON: %v", err)
	}
}
