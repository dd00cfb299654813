package transform

import (
	"strconv"
	"strings"
	"time"

	"github.com/dkurbatov/sales_analytics/ETL/extractors"
	"github.com/dkurbatov/sales_analytics/ETL/models"
)

// transformCustomer преобразует сырую запись покупателя в запись измерения
func transformCustomer(rec models.RawRecord) (models.CustomerDimension, *models.RejectedRecord) {
	return models.CustomerDimension{
		Code:    strings.ToUpper(rec.Get("customer_code")),
		Name:    rec.Get("customer_name"),
		Email:   strings.ToLower(rec.Get("email")),
		City:    rec.Get("city"),
		Region:  rec.Get("region"),
		Segment: rec.Get("segment"),
	}, nil
}

// transformProduct преобразует сырую запись товара в запись измерения
func transformProduct(rec models.RawRecord) (models.ProductDimension, *models.RejectedRecord) {
	unitPrice, err := strconv.ParseFloat(rec.Get("unit_price"), 64)
	if err != nil {
		return models.ProductDimension{}, ruleViolation(extractors.KindProduct, rec, "поле unit_price не является числом")
	}
	unitCost, err := strconv.ParseFloat(rec.Get("unit_cost"), 64)
	if err != nil {
		return models.ProductDimension{}, ruleViolation(extractors.KindProduct, rec, "поле unit_cost не является числом")
	}

	return models.ProductDimension{
		Code:      strings.ToUpper(rec.Get("product_code")),
		Name:      rec.Get("product_name"),
		Category:  rec.Get("category"),
		UnitPrice: unitPrice,
		UnitCost:  unitCost,
	}, nil
}

// transformSalesRep преобразует сырую запись торгового представителя
func transformSalesRep(rec models.RawRecord) (models.SalesRepDimension, *models.RejectedRecord) {
	var hireDate time.Time
	if hire := rec.Get("hire_date"); hire != "" {
		parsed, err := time.Parse("2006-01-02", hire)
		if err != nil {
			return models.SalesRepDimension{}, ruleViolation(extractors.KindSalesRep, rec, "поле hire_date не является датой")
		}
		hireDate = parsed
	}

	return models.SalesRepDimension{
		Code:     strings.ToUpper(rec.Get("rep_code")),
		Name:     rec.Get("rep_name"),
		Region:   rec.Get("region"),
		HireDate: hireDate,
	}, nil
}

// ruleViolation формирует отклонение записи из-за нарушения бизнес-правила
func ruleViolation(kind string, rec models.RawRecord, reason string) *models.RejectedRecord {
	return &models.RejectedRecord{
		Kind:   kind,
		Line:   rec.Line,
		Reason: reason,
		Fields: rec.Fields,
	}
}
