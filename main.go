// main.go
package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/config"
	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/pipeline"
	"github.com/dkurbatov/sales_analytics/ETL/samplegen"
	"github.com/dkurbatov/sales_analytics/ETL/setup"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
	"github.com/dkurbatov/sales_analytics/routes"
	"github.com/go-co-op/gocron"
	"github.com/gorilla/mux"
)

func main() {
	// Параметры командной строки
	modePtr := flag.String("mode", "once", "Режим работы: once, scheduled, serve, setup или generate")
	sourcePtr := flag.String("source", config.SourceSample, "Режим источника данных: sample или raw")
	pipelinePtr := flag.String("pipeline", "sales_analytics_etl", "Имя пайплайна")
	intervalPtr := flag.Duration("interval", 0, "Интервал запуска для режима scheduled (по умолчанию из конфигурации)")
	seedPtr := flag.Int64("seed", time.Now().UnixNano(), "Зерно генератора для режима generate")

	flag.Parse()

	if !config.ValidSource(*sourcePtr) {
		log.Fatalf("❌ Неизвестный режим источника данных %q. Доступные режимы: %s, %s",
			*sourcePtr, config.SourceSample, config.SourceRaw)
	}

	cfg := config.GetConfig()
	if *intervalPtr > 0 {
		cfg.RunInterval = *intervalPtr
	}

	logger := utils.NewETLLogger(cfg.EnableDetailedLogging)
	log.Println("Запуск ETL Runner в режиме:", *modePtr)

	switch *modePtr {
	case "once":
		runOnce(cfg, logger, *pipelinePtr, *sourcePtr)
	case "scheduled":
		runScheduled(cfg, logger, *pipelinePtr, *sourcePtr)
	case "serve":
		runServer(cfg, logger, *pipelinePtr, *sourcePtr)
	case "setup":
		runSetup(cfg, logger)
	case "generate":
		if err := samplegen.Generate(cfg.SampleDataPath, 20, 15, 5, 200, *seedPtr, logger); err != nil {
			log.Fatalf("❌ Ошибка при генерации примеров данных: %v", err)
		}
	default:
		log.Println("Неизвестный режим работы:", *modePtr)
		log.Println("Доступные режимы: once, scheduled, serve, setup, generate")
		os.Exit(1)
	}

	log.Println("ETL Runner завершил работу")
}

// connect подключается к хранилищу и готовит журнал аудита
func connect(cfg config.ETLConfig) (*sql.DB, *models.MySQLAuditRepository) {
	db, err := config.ConnectWarehouse(cfg.WarehouseConfig)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к хранилищу: %v", err)
	}

	auditRepo := models.NewMySQLAuditRepository(db)
	if err := auditRepo.CreateAuditTable(); err != nil {
		config.CloseWarehouse(db)
		log.Fatalf("❌ Не удалось создать таблицу журнала аудита: %v", err)
	}

	return db, auditRepo
}

// runOnce выполняет один запуск пайплайна; код завершения ненулевой при сбое
func runOnce(cfg config.ETLConfig, logger *utils.ETLLogger, name, source string) {
	db, _ := connect(cfg)
	defer config.CloseWarehouse(db)

	p := pipeline.New(name, cfg, logger, db, source)

	summary, err := p.Run(context.Background())
	if err != nil {
		log.Printf("❌ Пайплайн завершился с ошибкой: %v", err)
		config.CloseWarehouse(db)
		os.Exit(1)
	}

	log.Printf("✅ Пайплайн %s завершен: извлечено %d, отклонено %d, загружено %d, дубликатов %d",
		summary.Pipeline, summary.Extracted, summary.Rejected, summary.Loaded, summary.Duplicates)
}

// runScheduled запускает пайплайн по расписанию до сигнала завершения
func runScheduled(cfg config.ETLConfig, logger *utils.ETLLogger, name, source string) {
	db, auditRepo := connect(cfg)
	defer config.CloseWarehouse(db)

	p := pipeline.New(name, cfg, logger, db, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Обработка сигналов завершения
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("⚠️ Получен сигнал завершения. Останавливаем ETL Runner...")
		cancel()
	}()

	scheduler := gocron.NewScheduler(time.UTC)
	logger.Info("Запуск планировщика ETL с интервалом %v", cfg.RunInterval)

	_, err := scheduler.Every(cfg.RunInterval).Do(func() {
		logger.Info("Запланированный запуск пайплайна %s", name)
		if _, err := p.Run(ctx); err != nil {
			logger.Error("Ошибка при выполнении запланированного запуска: %v", err)
		}

		// Ротация журнала аудита между запусками
		purged, err := auditRepo.Purge(cfg.AuditRetentionDays)
		if err != nil {
			logger.Error("Ошибка при очистке журнала аудита: %v", err)
		} else if purged > 0 {
			logger.Info("Из журнала аудита удалено %d записей старше %d дней", purged, cfg.AuditRetentionDays)
		}
	})
	if err != nil {
		log.Fatalf("❌ Ошибка при настройке планировщика: %v", err)
	}

	scheduler.StartAsync()

	<-ctx.Done()
	scheduler.Stop()
	logger.Info("Планировщик ETL остановлен")
}

// runServer поднимает HTTP API операторов с доступом к журналу аудита
func runServer(cfg config.ETLConfig, logger *utils.ETLLogger, name, source string) {
	db, auditRepo := connect(cfg)
	defer config.CloseWarehouse(db)

	p := pipeline.New(name, cfg, logger, db, source)

	router := mux.NewRouter()
	routes.SetupRoutes(router, auditRepo, p)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("✅ API операторов запущен на http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Ошибка запуска сервера: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("⚠️ Получен сигнал завершения, закрываем соединения...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Ошибка при остановке сервера: %v", err)
	}

	log.Println("👋 Сервер остановлен")
}

// runSetup создает схему хранилища и заполняет измерение дат
func runSetup(cfg config.ETLConfig, logger *utils.ETLLogger) {
	// schema.sql сам создает базу, поэтому подключаемся без выбора базы
	server, err := config.ConnectServer(cfg.WarehouseConfig)
	if err != nil {
		log.Fatalf("❌ Не удалось подключиться к серверу MySQL: %v", err)
	}

	if err := setup.SetupWarehouse(context.Background(), server, logger, "database/schema.sql", "database/views.sql"); err != nil {
		config.CloseWarehouse(server)
		log.Fatalf("❌ Ошибка при инициализации хранилища: %v", err)
	}
	config.CloseWarehouse(server)

	// Таблица аудита живет в созданной базе, поэтому переподключаемся к ней
	db, _ := connect(cfg)
	config.CloseWarehouse(db)

	log.Println("✅ Хранилище инициализировано")
}
