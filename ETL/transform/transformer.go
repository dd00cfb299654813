package transform

import (
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/models"
	"github.com/dkurbatov/sales_analytics/ETL/utils"
)

// Transformer координирует преобразование прошедших валидацию записей
// в типизированные записи хранилища. Преобразование чистое: результат для
// одной записи не зависит от других записей батча, нарушение бизнес-правила
// отправляет запись в отклоненные, а не прерывает запуск.
type Transformer struct {
	logger *utils.ETLLogger
}

// NewTransformer создает новый экземпляр Transformer
func NewTransformer(logger *utils.ETLLogger) *Transformer {
	return &Transformer{
		logger: logger,
	}
}

// Transform преобразует все виды записей и возвращает очищенные данные
// вместе с записями, отклоненными бизнес-правилами
func (t *Transformer) Transform(data *models.ValidatedData) (*models.TransformedData, []models.RejectedRecord, error) {
	startTime := time.Now()
	t.logger.LogStageStart(models.StageTransform)

	transformed := &models.TransformedData{}
	var rejected []models.RejectedRecord

	for _, rec := range data.Customers {
		customer, reject := transformCustomer(rec)
		if reject != nil {
			t.logger.LogReject(reject.Kind, reject.Line, reject.Reason)
			rejected = append(rejected, *reject)
			continue
		}
		transformed.Customers = append(transformed.Customers, customer)
	}

	for _, rec := range data.Products {
		product, reject := transformProduct(rec)
		if reject != nil {
			t.logger.LogReject(reject.Kind, reject.Line, reject.Reason)
			rejected = append(rejected, *reject)
			continue
		}
		transformed.Products = append(transformed.Products, product)
	}

	for _, rec := range data.SalesReps {
		rep, reject := transformSalesRep(rec)
		if reject != nil {
			t.logger.LogReject(reject.Kind, reject.Line, reject.Reason)
			rejected = append(rejected, *reject)
			continue
		}
		transformed.SalesReps = append(transformed.SalesReps, rep)
	}

	for _, rec := range data.Sales {
		sale, reject := TransformSale(rec)
		if reject != nil {
			t.logger.LogReject(reject.Kind, reject.Line, reject.Reason)
			rejected = append(rejected, *reject)
			continue
		}
		transformed.Sales = append(transformed.Sales, sale)
	}

	t.logger.LogStageComplete(models.StageTransform, transformed.TotalRecords(), time.Since(startTime))
	return transformed, rejected, nil
}
