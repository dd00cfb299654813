package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/config"
	"github.com/dkurbatov/sales_analytics/ETL/extractors"
	"github.com/dkurbatov/sales_analytics/ETL/load"
	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/transform"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
	"github.com/dkurbatov/sales_analytics/ETL/validate"
	"github.com/google/uuid"
)

// Extractor - фаза извлечения сырых записей
type Extractor interface {
	Extract() (*models.ExtractedData, error)
}

// Validator - проверка структурной и ссылочной корректности
type Validator interface {
	Validate(data *models.ExtractedData, knownKeys models.DimensionKeys) (*models.ValidatedData, error)
}

// Transformer - преобразование в типизированные записи хранилища
type Transformer interface {
	Transform(data *models.ValidatedData) (*models.TransformedData, []models.RejectedRecord, error)
}

// Loader - загрузка в хранилище и доступ к известным ключам измерений
type Loader interface {
	Load(ctx context.Context, data *models.TransformedData) (*models.LoadReport, error)
	DimensionKeys() (models.DimensionKeys, error)
}

// Запуски одного и того же пайплайна сериализуются: блокировки на уровне
// процесса индексируются именем пайплайна. Разные пайплайны независимы.
var runLocks sync.Map

func runLock(name string) *sync.Mutex {
	lock, _ := runLocks.LoadOrStore(name, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

// Pipeline - оркестратор ETL-процесса. Последовательно выполняет фазы
// Extract → Validate → Transform → Load, записывая начало и исход каждой
// фазы в журнал аудита независимо от результата.
type Pipeline struct {
	name        string
	cfg         config.ETLConfig
	logger      *utils.ETLLogger
	audit       models.AuditRepository
	extractor   Extractor
	validator   Validator
	transformer Transformer
	loader      Loader

	mu    sync.Mutex
	state State
}

// NewPipeline создает оркестратор с явно заданными фазами
func NewPipeline(name string, cfg config.ETLConfig, logger *utils.ETLLogger, audit models.AuditRepository,
	extractor Extractor, validator Validator, transformer Transformer, loader Loader) *Pipeline {
	return &Pipeline{
		name:        name,
		cfg:         cfg,
		logger:      logger,
		audit:       audit,
		extractor:   extractor,
		validator:   validator,
		transformer: transformer,
		loader:      loader,
		state:       StateIdle,
	}
}

// New создает оркестратор со стандартными фазами поверх хранилища db.
// sourceMode выбирает каталог источника (sample или raw).
func New(name string, cfg config.ETLConfig, logger *utils.ETLLogger, db *sql.DB, sourceMode string) *Pipeline {
	return NewPipeline(
		name,
		cfg,
		logger,
		models.NewMySQLAuditRepository(db),
		extractors.NewExtractor(cfg.DataPath(sourceMode), logger),
		validate.NewValidator(logger),
		transform.NewTransformer(logger),
		load.NewLoadManager(db, logger, cfg.ChunkSize),
	)
}

// Name возвращает имя пайплайна
func (p *Pipeline) Name() string {
	return p.name
}

// State возвращает текущее состояние конечного автомата
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Run выполняет один запуск пайплайна. Если запуск этого пайплайна уже
// выполняется, возвращается ErrRunInProgress. Повторный запуск с теми же
// исходными данными безопасен: измерения переобновляются по натуральным
// ключам, дубликаты фактов пропускаются.
func (p *Pipeline) Run(ctx context.Context) (*models.RunSummary, error) {
	lock := runLock(p.name)
	if !lock.TryLock() {
		return nil, fmt.Errorf("пайплайн %s: %w", p.name, models.ErrRunInProgress)
	}
	defer lock.Unlock()

	runID := uuid.NewString()
	summary := &models.RunSummary{
		RunID:     runID,
		Pipeline:  p.name,
		StartTime: time.Now(),
	}
	p.logger.LogRunStart(p.name, runID)

	// --- Фаза Extract (включая валидацию) ---
	p.setState(StateExtracting)
	auditID, err := p.audit.Begin(p.name, models.StageExtract, time.Now())
	if err != nil {
		return p.fail(summary, 0, models.StageExtract, fmt.Errorf("ошибка при открытии записи аудита Extract: %w", err))
	}

	extracted, err := p.extractor.Extract()
	if err != nil {
		return p.fail(summary, auditID, models.StageExtract, fmt.Errorf("ошибка в фазе Extract: %w", err))
	}
	summary.Extracted = extracted.TotalRecords()
	p.logger.Info("Извлечено %d записей из каталога %s", summary.Extracted, extracted.SourceDir)

	p.setState(StateValidating)
	var knownKeys models.DimensionKeys
	err = withRetry(ctx, p.logger, p.cfg.MaxRetries, p.cfg.RetryBackoff, models.StageExtract, func() error {
		var keysErr error
		knownKeys, keysErr = p.loader.DimensionKeys()
		return keysErr
	})
	if err != nil {
		return p.fail(summary, auditID, models.StageExtract, fmt.Errorf("ошибка при получении ключей измерений: %w", err))
	}

	validated, err := p.validator.Validate(extracted, knownKeys)
	if err != nil {
		return p.fail(summary, auditID, models.StageExtract, fmt.Errorf("ошибка при валидации: %w", err))
	}
	summary.Rejected = len(validated.Rejected)

	p.completeAudit(auditID, models.StatusSuccess, extracted.TotalRecords(), "")

	// --- Фаза Transform ---
	p.setState(StateTransforming)
	auditID, err = p.audit.Begin(p.name, models.StageTransform, time.Now())
	if err != nil {
		return p.fail(summary, 0, models.StageTransform, fmt.Errorf("ошибка при открытии записи аудита Transform: %w", err))
	}

	transformed, ruleRejects, err := p.transformer.Transform(validated)
	if err != nil {
		return p.fail(summary, auditID, models.StageTransform, fmt.Errorf("ошибка в фазе Transform: %w", err))
	}
	summary.Rejected += len(ruleRejects)
	summary.Transformed = transformed.TotalRecords()

	p.completeAudit(auditID, models.StatusSuccess, transformed.TotalRecords(), "")

	// Архив отклоненных записей для последующего разбора
	p.archiveRejects(runID, validated.Rejected, ruleRejects)

	// --- Фаза Load ---
	p.setState(StateLoading)
	auditID, err = p.audit.Begin(p.name, models.StageLoad, time.Now())
	if err != nil {
		return p.fail(summary, 0, models.StageLoad, fmt.Errorf("ошибка при открытии записи аудита Load: %w", err))
	}

	var report *models.LoadReport
	err = withRetry(ctx, p.logger, p.cfg.MaxRetries, p.cfg.RetryBackoff, models.StageLoad, func() error {
		var loadErr error
		report, loadErr = p.loader.Load(ctx, transformed)
		return loadErr
	})
	if report != nil {
		summary.Loaded = report.TotalRecords() - report.DuplicatesSkipped
		summary.Duplicates = report.DuplicatesSkipped
	}
	if err != nil {
		return p.fail(summary, auditID, models.StageLoad, fmt.Errorf("ошибка в фазе Load: %w", err))
	}

	p.completeAudit(auditID, models.StatusSuccess, report.TotalRecords(), "")

	// --- Завершение ---
	p.setState(StateCompleted)
	summary.Status = string(StateCompleted)
	summary.EndTime = time.Now()

	p.logger.Info("Пайплайн %s завершен. Извлечено: %d, отклонено: %d, загружено: %d, дубликатов пропущено: %d. Длительность: %v",
		p.name, summary.Extracted, summary.Rejected, summary.Loaded, summary.Duplicates, summary.Duration())

	return summary, nil
}

// fail переводит автомат в состояние Failed, закрывает открытую запись
// аудита со статусом Failed и возвращает итог с ошибкой
func (p *Pipeline) fail(summary *models.RunSummary, auditID int64, stage string, err error) (*models.RunSummary, error) {
	if auditID != 0 {
		p.completeAudit(auditID, models.StatusFailed, 0, err.Error())
	}

	p.setState(StateFailed)
	summary.Status = string(StateFailed)
	summary.ErrorMessage = err.Error()
	summary.EndTime = time.Now()

	p.logger.LogStageFailed(stage, err)
	p.logger.Error("Пайплайн %s завершился с ошибкой: %v", p.name, err)
	return summary, err
}

// completeAudit закрывает запись аудита; ошибка записи журнала не должна
// менять исход уже выполненной фазы, поэтому только логируется
func (p *Pipeline) completeAudit(auditID int64, status string, records int, errMsg string) {
	if err := p.audit.Complete(auditID, status, records, errMsg, time.Now()); err != nil {
		p.logger.Error("Ошибка при закрытии записи аудита %d: %v", auditID, err)
	}
}

// archiveRejects пишет отклоненные записи запуска в сжатый архив.
// Сбой архивации не влияет на исход запуска.
func (p *Pipeline) archiveRejects(runID string, sets ...[]models.RejectedRecord) {
	total := 0
	for _, set := range sets {
		total += len(set)
	}
	if total == 0 {
		return
	}

	writer, err := utils.NewRejectWriter(p.cfg.RejectDir, runID)
	if err != nil {
		p.logger.Error("Ошибка при создании архива отклоненных записей: %v", err)
		return
	}

	for _, set := range sets {
		if err := writer.WriteAll(set); err != nil {
			p.logger.Error("Ошибка при записи архива отклоненных записей: %v", err)
			break
		}
	}

	if err := writer.Close(); err != nil {
		p.logger.Error("Ошибка при закрытии архива отклоненных записей: %v", err)
		return
	}

	p.logger.Info("Отклоненные записи (%d) сохранены в архив запуска %s", total, runID)
}
