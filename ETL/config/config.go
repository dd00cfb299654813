package config

import (
	"os"
	"time"
)

// ETLConfig содержит конфигурацию ETL-процесса. Передается в оркестратор
// при создании явно, без глобального состояния процесса.
type ETLConfig struct {
	// Конфигурация подключения к хранилищу (OLAP)
	WarehouseConfig DatabaseConfig `json:"warehouse_config"`

	// Каталоги с исходными CSV-файлами
	SampleDataPath string `json:"sample_data_path"`
	RawDataPath    string `json:"raw_data_path"`

	// Каталог для архивов отклоненных записей
	RejectDir string `json:"reject_dir"`

	// Размер чанка фазы Load (строк на одну транзакцию)
	ChunkSize int `json:"chunk_size"`

	// Политика повторов для временных ошибок хранилища
	MaxRetries   int           `json:"max_retries"`
	RetryBackoff time.Duration `json:"retry_backoff"`

	// Интервал запуска ETL в режиме scheduled
	RunInterval time.Duration `json:"run_interval"`

	// Срок хранения записей журнала аудита (в днях)
	AuditRetentionDays int `json:"audit_retention_days"`

	// Адрес HTTP API операторов
	HTTPAddr string `json:"http_addr"`

	// Включение/отключение подробного логирования
	EnableDetailedLogging bool `json:"enable_detailed_logging"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver       string        `json:"driver"`
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	User         string        `json:"user"`
	Password     string        `json:"password"`
	DBName       string        `json:"dbname"`
	ConnTimeout  time.Duration `json:"conn_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Режимы источника данных
const (
	SourceSample = "sample"
	SourceRaw    = "raw"
)

// Значения конфигурации по умолчанию
var (
	DefaultWarehouseConfig = DatabaseConfig{
		Driver:       "mysql",
		Host:         "localhost",
		Port:         3306,
		User:         "root",
		Password:     "",
		DBName:       "sales_analytics",
		ConnTimeout:  5 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	DefaultETLConfig = ETLConfig{
		WarehouseConfig:       DefaultWarehouseConfig,
		SampleDataPath:        "data/sample",
		RawDataPath:           "data/raw",
		RejectDir:             "logs/rejects",
		ChunkSize:             500,
		MaxRetries:            3,
		RetryBackoff:          2 * time.Second,
		RunInterval:           24 * time.Hour,
		AuditRetentionDays:    90,
		HTTPAddr:              ":8080",
		EnableDetailedLogging: true,
	}
)

// GetConfig возвращает конфигурацию ETL. Учетные данные БД можно
// переопределить переменными окружения DB_HOST, DB_USER, DB_PASSWORD, DB_NAME.
func GetConfig() ETLConfig {
	config := DefaultETLConfig

	if host := os.Getenv("DB_HOST"); host != "" {
		config.WarehouseConfig.Host = host
	}
	if user := os.Getenv("DB_USER"); user != "" {
		config.WarehouseConfig.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		config.WarehouseConfig.Password = password
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		config.WarehouseConfig.DBName = dbname
	}

	return config
}

// ValidSource сообщает, известен ли режим источника данных.
// Вызывающая сторона обязана проверить режим до обращения к DataPath.
func ValidSource(sourceMode string) bool {
	return sourceMode == SourceSample || sourceMode == SourceRaw
}

// DataPath возвращает каталог с данными для выбранного режима источника
func (c ETLConfig) DataPath(sourceMode string) string {
	if sourceMode == SourceRaw {
		return c.RawDataPath
	}
	return c.SampleDataPath
}
