package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// withRetry выполняет fn с ограниченным числом повторов для временных ошибок
// хранилища. Невременные ошибки (нарушения целостности, отклонения
// валидации) не повторяются никогда.
func withRetry(ctx context.Context, logger *utils.ETLLogger, maxRetries int, backoff time.Duration, stage string, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !models.IsTransient(err) || attempt >= maxRetries {
			return err
		}

		wait := backoff * time.Duration(attempt+1)
		logger.Info("Временная ошибка фазы %s (попытка %d из %d): %v. Повтор через %v",
			stage, attempt+1, maxRetries, err, wait)

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("повтор фазы %s прерван: %w", stage, ctx.Err())
		}
	}
}
