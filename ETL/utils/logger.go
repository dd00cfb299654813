package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// ETLLogger представляет логгер для ETL-процесса
type ETLLogger struct {
	infoLogger  *log.Logger
	errorLogger *log.Logger
	debugLogger *log.Logger
	isVerbose   bool
}

// NewETLLogger создает новый экземпляр логгера для ETL.
// Сообщения пишутся в файл etl_log_<дата>.log и дублируются в stdout.
func NewETLLogger(verbose bool) *ETLLogger {
	currentTime := time.Now().Format("2006-01-02")
	logFileName := fmt.Sprintf("etl_log_%s.log", currentTime)

	var out io.Writer
	file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		// Без файла лога продолжаем работать только со стандартным выводом
		log.Printf("Не удалось открыть файл лога %s: %v", logFileName, err)
		out = os.Stdout
	} else {
		out = io.MultiWriter(file, os.Stdout)
	}

	return &ETLLogger{
		infoLogger:  log.New(out, "INFO: ", log.Ldate|log.Ltime),
		errorLogger: log.New(out, "ERROR: ", log.Ldate|log.Ltime),
		debugLogger: log.New(out, "DEBUG: ", log.Ldate|log.Ltime),
		isVerbose:   verbose,
	}
}

// Info логирует информационное сообщение
func (l *ETLLogger) Info(format string, v ...interface{}) {
	l.infoLogger.Println(fmt.Sprintf(format, v...))
}

// Error логирует сообщение об ошибке
func (l *ETLLogger) Error(format string, v ...interface{}) {
	l.errorLogger.Println(fmt.Sprintf(format, v...))
}

// Debug логирует отладочное сообщение (только если включен verbose режим)
func (l *ETLLogger) Debug(format string, v ...interface{}) {
	if !l.isVerbose {
		return
	}
	l.debugLogger.Println(fmt.Sprintf(format, v...))
}

// LogRunStart логирует начало запуска пайплайна
func (l *ETLLogger) LogRunStart(pipeline, runID string) {
	l.Info("Запуск пайплайна %s (run_id=%s)", pipeline, runID)
}

// LogStageStart логирует начало фазы
func (l *ETLLogger) LogStageStart(stage string) {
	l.Info("Начало фазы %s", stage)
}

// LogStageComplete логирует успешное завершение фазы
func (l *ETLLogger) LogStageComplete(stage string, records int, duration time.Duration) {
	l.Info("Фаза %s завершена. Обработано записей: %d. Длительность: %v", stage, records, duration)
}

// LogStageFailed логирует сбой фазы
func (l *ETLLogger) LogStageFailed(stage string, err error) {
	l.Error("Фаза %s завершилась с ошибкой: %v", stage, err)
}

// LogReject логирует отклоненную запись
func (l *ETLLogger) LogReject(kind string, line int, reason string) {
	l.Debug("Отклонена запись %s (строка %d): %s", kind, line, reason)
}
