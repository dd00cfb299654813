package config

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// buildDSN собирает строку подключения MySQL. Таймауты соединения и операций
// задаются на уровне DSN, чтобы ни один запрос хранилища не блокировался
// бесконечно: истекший таймаут трактуется как временная ошибка.
func buildDSN(cfg DatabaseConfig, withDBName bool) string {
	dbName := ""
	if withDBName {
		dbName = cfg.DBName
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&timeout=%s&readTimeout=%s&writeTimeout=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		dbName,
		cfg.ConnTimeout,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
	)
}

// ConnectWarehouse устанавливает подключение к хранилищу
func ConnectWarehouse(cfg DatabaseConfig) (*sql.DB, error) {
	return connect(cfg, true)
}

// ConnectServer устанавливает подключение к серверу MySQL без выбора базы.
// Используется режимом setup до создания схемы хранилища.
func ConnectServer(cfg DatabaseConfig) (*sql.DB, error) {
	return connect(cfg, false)
}

func connect(cfg DatabaseConfig, withDBName bool) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, buildDSN(cfg, withDBName))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к хранилищу: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с хранилищем: %w", err)
	}

	log.Println("Успешное подключение к хранилищу")
	return db, nil
}

// CloseWarehouse закрывает подключение к хранилищу
func CloseWarehouse(db *sql.DB) {
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		log.Printf("Ошибка при закрытии соединения с хранилищем: %v", err)
		return
	}
	log.Println("Соединение с хранилищем закрыто")
}
